// Package storetest is a conformance suite shared by every store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/store"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run exercises every store.Store operation against fresh stores.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertPlaceRejectsDuplicate", testInsertDuplicate},
		{"ListPlacesPerUser", testListPlacesPerUser},
		{"ResolvePlaceReplacesID", testResolvePlace},
		{"ResolvePlaceConflict", testResolveConflict},
		{"ResolvePlaceMissing", testResolveMissing},
		{"ResolvePlaceMovesOnce", testResolveMovesOnce},
		{"SetPlaceCategory", testSetCategory},
		{"ListUnresolved", testListUnresolved},
		{"BatchLifecycle", testBatchLifecycle},
		{"ListBatchesNewestFirst", testListBatchesOrder},
		{"CountBatch", testCountBatch},
		{"DeleteBatchKeepsRatedPlaces", testDeleteBatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testResolveMovesOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)

	p := place(user, "명동교자", 37.5625, 126.9856, "")
	require.NoError(t, s.InsertPlace(ctx, p))
	require.NoError(t, s.ResolvePlace(ctx, user, p.ID, domain.Resolved("10332413"), "음식점", ""))

	// The place lives under one key only
	list, err := s.ListPlaces(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "10332413", list[0].ID.String())

	unresolved, err := s.ListUnresolved(ctx, 0)
	require.NoError(t, err)
	for _, u := range unresolved {
		assert.NotEqual(t, user, u.UserID, "resolved place still listed as unresolved")
	}

	// A second pass working from a stale copy finds nothing to move
	err = s.ResolvePlace(ctx, user, p.ID, domain.Resolved("10332413"), "음식점", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// testUser returns a user id unique to the test so shared backends
// (a real Redis or Postgres) do not leak state between cases.
func testUser(t *testing.T) string {
	return "user-" + uuid.NewString()
}

func place(userID string, name string, lat, lng float64, batchID string) *domain.SavedPlace {
	return &domain.SavedPlace{
		UserID:    userID,
		ID:        domain.Unresolved(lat, lng),
		Name:      name,
		Lat:       lat,
		Lng:       lng,
		BatchID:   batchID,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func batch(userID string, imported int, createdAt time.Time) *domain.ImportBatch {
	return &domain.ImportBatch{
		ID:               uuid.NewString(),
		UserID:           userID,
		Source:           "naver",
		ImportedCount:    imported,
		EnrichmentStatus: domain.StatusPending,
		CreatedAt:        createdAt.UTC().Truncate(time.Millisecond),
	}
}

func findPlace(t *testing.T, s store.Store, userID, id string) *domain.SavedPlace {
	t.Helper()
	list, err := s.ListPlaces(context.Background(), userID)
	require.NoError(t, err)
	for _, p := range list {
		if p.ID.String() == id {
			return p
		}
	}
	return nil
}

func testInsertDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)

	p := place(user, "을지면옥", 37.5663, 126.9913, "")
	require.NoError(t, s.InsertPlace(ctx, p))

	err := s.InsertPlace(ctx, place(user, "을지면옥", 37.5663, 126.9913, ""))
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// Same id for another user is fine
	assert.NoError(t, s.InsertPlace(ctx, place(testUser(t), "을지면옥", 37.5663, 126.9913, "")))
}

func testListPlacesPerUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice, bob := testUser(t), testUser(t)

	require.NoError(t, s.InsertPlace(ctx, place(alice, "a", 37.1, 127.1, "")))
	require.NoError(t, s.InsertPlace(ctx, place(alice, "b", 37.2, 127.2, "")))
	require.NoError(t, s.InsertPlace(ctx, place(bob, "c", 37.3, 127.3, "")))

	list, err := s.ListPlaces(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Returned values are copies
	list[0].Name = "mutated"
	again, err := s.ListPlaces(ctx, alice)
	require.NoError(t, err)
	for _, p := range again {
		assert.NotEqual(t, "mutated", p.Name)
	}
}

func testResolvePlace(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	b := batch(user, 1, time.Now())
	require.NoError(t, s.CreateBatch(ctx, b))

	p := place(user, "을지면옥", 37.5663, 126.9913, b.ID)
	require.NoError(t, s.InsertPlace(ctx, p))

	canonical := domain.Resolved("26338954")
	err := s.ResolvePlace(ctx, user, p.ID, canonical, "음식점 > 한식 > 냉면", "http://place.map.kakao.com/26338954")
	require.NoError(t, err)

	assert.Nil(t, findPlace(t, s, user, p.ID.String()))
	got := findPlace(t, s, user, canonical.String())
	require.NotNil(t, got)
	assert.True(t, got.ID.IsResolved())
	assert.Equal(t, "을지면옥", got.Name)
	assert.Equal(t, "음식점 > 한식 > 냉면", got.Category)
	assert.Equal(t, "http://place.map.kakao.com/26338954", got.DetailURL)
	assert.Equal(t, b.ID, got.BatchID)

	inBatch, err := s.ListBatchPlaces(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, inBatch, 1)
	assert.Equal(t, canonical, inBatch[0].ID)
}

func testResolveConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)

	existing := &domain.SavedPlace{UserID: user, ID: domain.Resolved("26338954"), Name: "을지면옥", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.InsertPlace(ctx, existing))

	p := place(user, "을지면옥", 37.5663, 126.9913, "")
	require.NoError(t, s.InsertPlace(ctx, p))

	err := s.ResolvePlace(ctx, user, p.ID, existing.ID, "x", "y")
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// Synthetic record untouched
	got := findPlace(t, s, user, p.ID.String())
	require.NotNil(t, got)
	assert.Empty(t, got.Category)
}

func testResolveMissing(t *testing.T, s store.Store) {
	err := s.ResolvePlace(context.Background(), testUser(t), domain.Unresolved(1, 1), domain.Resolved("1"), "x", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSetCategory(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	p := place(user, "카페", 37.5, 127.0, "")
	require.NoError(t, s.InsertPlace(ctx, p))

	require.NoError(t, s.SetPlaceCategory(ctx, user, p.ID, "음식점 > 카페"))

	got := findPlace(t, s, user, p.ID.String())
	require.NotNil(t, got)
	assert.Equal(t, "음식점 > 카페", got.Category)
	assert.False(t, got.ID.IsResolved())
	assert.Empty(t, got.DetailURL)

	err := s.SetPlaceCategory(ctx, user, domain.Unresolved(1, 2), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testListUnresolved(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)

	pending := place(user, "pending", 37.11, 127.11, "")
	categorized := place(user, "categorized", 37.12, 127.12, "")
	categorized.Category = "음식점"
	resolved := &domain.SavedPlace{UserID: user, ID: domain.Resolved("r-" + uuid.NewString()), Name: "resolved", CreatedAt: time.Now().UTC()}

	for _, p := range []*domain.SavedPlace{pending, categorized, resolved} {
		require.NoError(t, s.InsertPlace(ctx, p))
	}

	list, err := s.ListUnresolved(ctx, 0)
	require.NoError(t, err)

	var mine []*domain.SavedPlace
	for _, p := range list {
		if p.UserID == user {
			mine = append(mine, p)
		}
	}
	require.Len(t, mine, 1)
	assert.Equal(t, pending.ID, mine[0].ID)

	limited, err := s.ListUnresolved(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testBatchLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	b := batch(user, 3, time.Now())
	b.SkippedCount = 2
	b.InvalidCount = 1

	require.NoError(t, s.CreateBatch(ctx, b))
	assert.ErrorIs(t, s.CreateBatch(ctx, b), domain.ErrDuplicate)

	got, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, 3, got.ImportedCount)
	assert.Equal(t, 2, got.SkippedCount)
	assert.Equal(t, 1, got.InvalidCount)
	assert.Equal(t, domain.StatusPending, got.EnrichmentStatus)

	require.NoError(t, s.SetBatchStatus(ctx, b.ID, domain.StatusRunning))
	running, err := s.ListBatchesByStatus(ctx, domain.StatusRunning)
	require.NoError(t, err)
	assert.True(t, containsBatch(running, b.ID))

	require.NoError(t, s.UpdateBatchEnrichment(ctx, b.ID, domain.StatusCompleted,
		domain.BatchCounts{Enriched: 2, Categorized: 5}))
	got, err = s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.EnrichmentStatus)
	assert.Equal(t, 2, got.EnrichedCount)
	assert.Equal(t, 3, got.CategorizedCount, "counts are clamped to imported")

	_, err = s.GetBatch(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.SetBatchStatus(ctx, uuid.NewString(), domain.StatusRunning), domain.ErrNotFound)
}

func testListBatchesOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	now := time.Now()

	older := batch(user, 1, now.Add(-time.Hour))
	newer := batch(user, 1, now)
	other := batch(testUser(t), 1, now)
	for _, b := range []*domain.ImportBatch{older, newer, other} {
		require.NoError(t, s.CreateBatch(ctx, b))
	}

	list, err := s.ListBatches(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func testCountBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	b := batch(user, 3, time.Now())
	require.NoError(t, s.CreateBatch(ctx, b))

	a := place(user, "a", 37.1, 127.1, b.ID)
	c := place(user, "c", 37.2, 127.2, b.ID)
	d := place(user, "d", 37.3, 127.3, b.ID)
	for _, p := range []*domain.SavedPlace{a, c, d} {
		require.NoError(t, s.InsertPlace(ctx, p))
	}

	require.NoError(t, s.ResolvePlace(ctx, user, a.ID, domain.Resolved("k-"+uuid.NewString()), "음식점", "u"))
	require.NoError(t, s.SetPlaceCategory(ctx, user, c.ID, "카페"))

	counts, err := s.CountBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCounts{Enriched: 1, Categorized: 2}, counts)
}

func testDeleteBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	user := testUser(t)
	b := batch(user, 2, time.Now())
	require.NoError(t, s.CreateBatch(ctx, b))

	wish := place(user, "wish", 37.1, 127.1, b.ID)
	visited := place(user, "visited", 37.2, 127.2, b.ID)
	visited.Rating = 4
	organic := place(user, "organic", 37.3, 127.3, "")
	for _, p := range []*domain.SavedPlace{wish, visited, organic} {
		require.NoError(t, s.InsertPlace(ctx, p))
	}

	deleted, err := s.DeleteBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.Nil(t, findPlace(t, s, user, wish.ID.String()))
	kept := findPlace(t, s, user, visited.ID.String())
	require.NotNil(t, kept)
	assert.Empty(t, kept.BatchID)
	assert.NotNil(t, findPlace(t, s, user, organic.ID.String()))

	_, err = s.GetBatch(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.DeleteBatch(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func containsBatch(list []*domain.ImportBatch, id string) bool {
	for _, b := range list {
		if b.ID == id {
			return true
		}
	}
	return false
}
