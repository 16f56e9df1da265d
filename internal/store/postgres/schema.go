package postgres

// schema is applied on every start; each statement is idempotent.
// batch_id carries no foreign key: places are written before their batch.
const schema = `
CREATE TABLE IF NOT EXISTS import_batches (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	source            TEXT NOT NULL,
	imported_count    INTEGER NOT NULL DEFAULT 0 CHECK (imported_count >= 0),
	skipped_count     INTEGER NOT NULL DEFAULT 0 CHECK (skipped_count >= 0),
	invalid_count     INTEGER NOT NULL DEFAULT 0 CHECK (invalid_count >= 0),
	enriched_count    INTEGER NOT NULL DEFAULT 0 CHECK (enriched_count >= 0),
	categorized_count INTEGER NOT NULL DEFAULT 0 CHECK (categorized_count >= 0),
	enrichment_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (enrichment_status IN ('pending', 'running', 'completed', 'failed')),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS import_batches_user_created_idx
	ON import_batches (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS import_batches_status_idx
	ON import_batches (enrichment_status);

CREATE TABLE IF NOT EXISTS saved_places (
	user_id    TEXT NOT NULL,
	place_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	detail_url TEXT,
	rating     SMALLINT NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
	batch_id   TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, place_id)
);

CREATE INDEX IF NOT EXISTS saved_places_batch_idx
	ON saved_places (batch_id) WHERE batch_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS saved_places_pending_idx
	ON saved_places (created_at) WHERE category = '';
`
