package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
	"github.com/MrSnakeDoc/matjip/internal/store/memory"
)

func newImporter(t *testing.T, st Store) *Importer {
	t.Helper()
	im := New(st, nil, logger.NewNop())
	im.newID = func() string { return "batch-1" }
	return im
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	// Already saved by hand, 10 m from the incoming copy
	require.NoError(t, st.InsertPlace(ctx, &domain.SavedPlace{
		UserID: "u1", ID: domain.Resolved("26338954"), Name: "을지면옥", Lat: 37.56620, Lng: 126.99110,
	}))

	bookmarks := []domain.SourceBookmark{
		{Name: "을지면옥", Lat: 37.56629, Lng: 126.99110},
		{Name: "명동교자", Lat: 37.5625, Lng: 126.9856, Address: "서울 중구"},
		{Name: "우래옥", Lat: 37.5683, Lng: 126.9986},
	}

	batch, err := newImporter(t, st).Import(ctx, "u1", "naver", bookmarks, 2)
	require.NoError(t, err)

	assert.Equal(t, "batch-1", batch.ID)
	assert.Equal(t, domain.StatusPending, batch.EnrichmentStatus)
	assert.Equal(t, 2, batch.ImportedCount)
	assert.Equal(t, 1, batch.SkippedCount)
	assert.Equal(t, 2, batch.InvalidCount)

	stored, err := st.GetBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, batch.ImportedCount, stored.ImportedCount)

	places, err := st.ListBatchPlaces(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "명동교자", places[0].Name)
	assert.Equal(t, "우래옥", places[1].Name)
	for _, p := range places {
		assert.False(t, p.ID.IsResolved())
		assert.Equal(t, domain.Unrated, p.Rating)
		assert.Empty(t, p.Category)
	}
}

func TestImport_SameCoordinatesCollapse(t *testing.T) {
	st := memory.New()
	bookmarks := []domain.SourceBookmark{
		{Name: "명동교자", Lat: 37.5625, Lng: 126.9856},
		{Name: "명동교자 2호", Lat: 37.5625, Lng: 126.9856},
	}

	batch, err := newImporter(t, st).Import(context.Background(), "u1", "naver", bookmarks, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.ImportedCount)
	assert.Equal(t, 1, batch.SkippedCount, "synthetic id clash counts as skipped")
}

func TestImport_NothingNewCreatesNoBatch(t *testing.T) {
	st := memory.New()

	batch, err := newImporter(t, st).Import(context.Background(), "u1", "naver", nil, 3)
	require.NoError(t, err)

	assert.Empty(t, batch.ID)
	assert.Equal(t, 3, batch.InvalidCount)
	assert.Equal(t, domain.StatusCompleted, batch.EnrichmentStatus)

	batches, err := st.ListBatches(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)
}

// flakyStore fails InsertPlace from the failAt-th call on, or every
// CreateBatch when batchErr is set.
type flakyStore struct {
	*memory.Store
	failAt    int
	insertErr error
	batchErr  error
	inserts   int
}

func (f *flakyStore) InsertPlace(ctx context.Context, p *domain.SavedPlace) error {
	f.inserts++
	if f.failAt > 0 && f.inserts >= f.failAt {
		return f.insertErr
	}
	return f.Store.InsertPlace(ctx, p)
}

func (f *flakyStore) CreateBatch(ctx context.Context, b *domain.ImportBatch) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	return f.Store.CreateBatch(ctx, b)
}

func assertNothingLeft(t *testing.T, st *memory.Store) {
	t.Helper()
	batches, err := st.ListBatches(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Zero(t, st.Count(), "no orphan places")
}

var threeBookmarks = []domain.SourceBookmark{
	{Name: "a", Lat: 37.50, Lng: 127},
	{Name: "b", Lat: 37.51, Lng: 127},
	{Name: "c", Lat: 37.52, Lng: 127},
}

func TestImport_InsertErrorRollsBack(t *testing.T) {
	st := &flakyStore{Store: memory.New(), failAt: 3, insertErr: errors.New("connection reset")}

	_, err := newImporter(t, st).Import(context.Background(), "u1", "naver", threeBookmarks, 0)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 3, st.inserts)
	assertNothingLeft(t, st.Store)
}

func TestImport_CreateBatchErrorWritesNothing(t *testing.T) {
	st := &flakyStore{Store: memory.New(), batchErr: errors.New("boom")}

	_, err := newImporter(t, st).Import(context.Background(), "u1", "naver", threeBookmarks, 0)
	assert.ErrorContains(t, err, "create batch: boom")
	assert.Zero(t, st.inserts, "places are written only under an existing batch")
	assertNothingLeft(t, st.Store)
}

func TestImport_ConcurrentDuplicateIsReported(t *testing.T) {
	st := &flakyStore{Store: memory.New(), failAt: 2, insertErr: domain.ErrDuplicate}

	_, err := newImporter(t, st).Import(context.Background(), "u1", "naver", threeBookmarks, 0)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assertNothingLeft(t, st.Store)
}

func TestImport_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	im := New(memory.New(), m, logger.NewNop())
	_, err = im.Import(context.Background(), "u1", "naver",
		[]domain.SourceBookmark{{Name: "a", Lat: 37.5, Lng: 127}}, 1)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "matjip_import_bookmarks_total" {
			found = true
			assert.Len(t, f.GetMetric(), 2, "imported and invalid")
		}
	}
	assert.True(t, found)
}

func TestUndo(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	im := newImporter(t, st)

	_, err := im.Import(ctx, "u1", "naver", []domain.SourceBookmark{
		{Name: "a", Lat: 37.50, Lng: 127},
		{Name: "b", Lat: 37.51, Lng: 127},
	}, 0)
	require.NoError(t, err)

	_, err = im.Undo(ctx, "u2", "batch-1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = im.Undo(ctx, "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := im.Undo(ctx, "u1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Zero(t, st.Count())
}
