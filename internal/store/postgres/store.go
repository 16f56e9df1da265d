// Package postgres is the relational store backend, built on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/matjip/internal/connect"
	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/store"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const placeColumns = `user_id, place_id, name, category, address, lat, lng,
	COALESCE(detail_url, ''), rating, COALESCE(batch_id, ''), created_at`

const batchColumns = `id, user_id, source, imported_count, skipped_count, invalid_count,
	enriched_count, categorized_count, enrichment_status, created_at`

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, retrying per policy, then applies the schema.
func Open(ctx context.Context, dsn string, policy connect.Policy, log logger.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	addr := fmt.Sprintf("%s:%d/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database)
	if err := connect.WithRetry(ctx, "postgres", addr, policy, pool.Ping, log); err != nil {
		pool.Close()
		return nil, err
	}

	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool and migrates the schema.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ─────────────────────────────────────────────────────────────────
// Places
// ─────────────────────────────────────────────────────────────────

func (s *Store) InsertPlace(ctx context.Context, p *domain.SavedPlace) error {
	const q = `INSERT INTO saved_places
		(user_id, place_id, name, category, address, lat, lng, detail_url, rating, batch_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), $11)`

	_, err := s.pool.Exec(ctx, q,
		p.UserID, p.ID.String(), p.Name, p.Category, p.Address, p.Lat, p.Lng,
		p.DetailURL, p.Rating, p.BatchID, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to insert place: %w", err)
	}
	return nil
}

func (s *Store) ListPlaces(ctx context.Context, userID string) ([]*domain.SavedPlace, error) {
	return s.queryPlaces(ctx,
		`SELECT `+placeColumns+` FROM saved_places WHERE user_id = $1 ORDER BY created_at, place_id`,
		userID)
}

func (s *Store) ListBatchPlaces(ctx context.Context, batchID string) ([]*domain.SavedPlace, error) {
	return s.queryPlaces(ctx,
		`SELECT `+placeColumns+` FROM saved_places WHERE batch_id = $1 ORDER BY created_at, place_id`,
		batchID)
}

func (s *Store) ListUnresolved(ctx context.Context, limit int) ([]*domain.SavedPlace, error) {
	q := `SELECT ` + placeColumns + ` FROM saved_places
		WHERE category = '' AND starts_with(place_id, $1)
		ORDER BY created_at, place_id`
	if limit > 0 {
		return s.queryPlaces(ctx, q+` LIMIT $2`, domain.SyntheticPrefix, limit)
	}
	return s.queryPlaces(ctx, q, domain.SyntheticPrefix)
}

func (s *Store) ResolvePlace(ctx context.Context, userID string, from, to domain.PlaceID, category, detailURL string) error {
	const q = `UPDATE saved_places
		SET place_id = $3, category = $4, detail_url = NULLIF($5, '')
		WHERE user_id = $1 AND place_id = $2`

	tag, err := s.pool.Exec(ctx, q, userID, from.String(), to.String(), category, detailURL)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to resolve place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetPlaceCategory(ctx context.Context, userID string, id domain.PlaceID, category string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_places SET category = $3 WHERE user_id = $1 AND place_id = $2`,
		userID, id.String(), category)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) queryPlaces(ctx context.Context, q string, args ...any) ([]*domain.SavedPlace, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.SavedPlace, 0)
	for rows.Next() {
		var (
			p  domain.SavedPlace
			id string
		)
		if err := rows.Scan(&p.UserID, &id, &p.Name, &p.Category, &p.Address, &p.Lat, &p.Lng,
			&p.DetailURL, &p.Rating, &p.BatchID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		if p.ID, err = domain.ParsePlaceID(id); err != nil {
			return nil, fmt.Errorf("stored place id %q: %w", id, err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during places iteration: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────
// Batches
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateBatch(ctx context.Context, b *domain.ImportBatch) error {
	const q = `INSERT INTO import_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		b.ID, b.UserID, b.Source, b.ImportedCount, b.SkippedCount, b.InvalidCount,
		b.EnrichedCount, b.CategorizedCount, string(b.EnrichmentStatus), b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, userID string) ([]*domain.ImportBatch, error) {
	return s.queryBatches(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
}

func (s *Store) ListBatchesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error) {
	return s.queryBatches(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE enrichment_status = $1 ORDER BY created_at DESC`,
		string(status))
}

func (s *Store) SetBatchStatus(ctx context.Context, id string, status domain.EnrichmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_batches SET enrichment_status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateBatchEnrichment(ctx context.Context, id string, status domain.EnrichmentStatus, counts domain.BatchCounts) error {
	const q = `UPDATE import_batches SET
		enrichment_status = $2,
		enriched_count    = LEAST(GREATEST($3::int, 0), imported_count),
		categorized_count = LEAST(GREATEST($4::int, 0), imported_count)
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, string(status), counts.Enriched, counts.Categorized)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CountBatch(ctx context.Context, batchID string) (domain.BatchCounts, error) {
	const q = `SELECT
		count(*) FILTER (WHERE NOT starts_with(place_id, $2)),
		count(*) FILTER (WHERE category <> '')
		FROM saved_places WHERE batch_id = $1`

	var c domain.BatchCounts
	if err := s.pool.QueryRow(ctx, q, batchID, domain.SyntheticPrefix).Scan(&c.Enriched, &c.Categorized); err != nil {
		return domain.BatchCounts{}, fmt.Errorf("failed to count batch: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteBatch(ctx context.Context, id string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM import_batches WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrNotFound
	}

	deleted, err := tx.Exec(ctx, `DELETE FROM saved_places WHERE batch_id = $1 AND rating = 0`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch places: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE saved_places SET batch_id = NULL WHERE batch_id = $1`, id); err != nil {
		return 0, fmt.Errorf("failed to detach rated places: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit batch delete: %w", err)
	}
	return int(deleted.RowsAffected()), nil
}

func (s *Store) queryBatches(ctx context.Context, q string, args ...any) ([]*domain.ImportBatch, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ImportBatch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during batches iteration: %w", err)
	}
	return out, nil
}

func scanBatch(row pgx.Row) (*domain.ImportBatch, error) {
	var (
		b      domain.ImportBatch
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Source, &b.ImportedCount, &b.SkippedCount, &b.InvalidCount,
		&b.EnrichedCount, &b.CategorizedCount, &status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.EnrichmentStatus = domain.EnrichmentStatus(status)
	if !b.EnrichmentStatus.Valid() {
		return nil, fmt.Errorf("batch %s: unknown enrichment status %q", b.ID, status)
	}
	return &b, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
