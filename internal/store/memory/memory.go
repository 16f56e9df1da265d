package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/store"
)

type placeKey struct {
	userID string
	id     string
}

// Store keeps places and batches in process memory.
// Values are copied on the way in and out so callers never share state.
type Store struct {
	mu      sync.RWMutex
	places  map[placeKey]*domain.SavedPlace // (user, id) -> place
	batches map[string]*domain.ImportBatch  // batch id -> batch
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store
func New() *Store {
	return &Store{
		places:  make(map[placeKey]*domain.SavedPlace),
		batches: make(map[string]*domain.ImportBatch),
	}
}

// ─────────────────────────────────────────────────────────────────
// Places
// ─────────────────────────────────────────────────────────────────

func (s *Store) InsertPlace(_ context.Context, p *domain.SavedPlace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := placeKey{p.UserID, p.ID.String()}
	if _, exists := s.places[key]; exists {
		return domain.ErrDuplicate
	}
	s.places[key] = p.Clone()
	return nil
}

func (s *Store) ListPlaces(_ context.Context, userID string) ([]*domain.SavedPlace, error) {
	return s.filterPlaces(func(p *domain.SavedPlace) bool { return p.UserID == userID }, 0), nil
}

func (s *Store) ListBatchPlaces(_ context.Context, batchID string) ([]*domain.SavedPlace, error) {
	return s.filterPlaces(func(p *domain.SavedPlace) bool { return p.BatchID == batchID }, 0), nil
}

func (s *Store) ListUnresolved(_ context.Context, limit int) ([]*domain.SavedPlace, error) {
	return s.filterPlaces(func(p *domain.SavedPlace) bool {
		return !p.ID.IsResolved() && p.Category == ""
	}, limit), nil
}

func (s *Store) ResolvePlace(_ context.Context, userID string, from, to domain.PlaceID, category, detailURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.places[placeKey{userID, from.String()}]
	if !ok {
		return domain.ErrNotFound
	}
	dst := placeKey{userID, to.String()}
	if from != to {
		if _, exists := s.places[dst]; exists {
			return domain.ErrDuplicate
		}
	}

	updated := src.Clone()
	updated.ID = to
	updated.Category = category
	updated.DetailURL = detailURL

	delete(s.places, placeKey{userID, from.String()})
	s.places[dst] = updated
	return nil
}

func (s *Store) SetPlaceCategory(_ context.Context, userID string, id domain.PlaceID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.places[placeKey{userID, id.String()}]
	if !ok {
		return domain.ErrNotFound
	}
	p.Category = category
	return nil
}

// filterPlaces returns copies ordered by creation time then id.
func (s *Store) filterPlaces(keep func(*domain.SavedPlace) bool, limit int) []*domain.SavedPlace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SavedPlace, 0)
	for _, p := range s.places {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Batches
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateBatch(_ context.Context, b *domain.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[b.ID]; exists {
		return domain.ErrDuplicate
	}
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBatches(_ context.Context, userID string) ([]*domain.ImportBatch, error) {
	return s.filterBatches(func(b *domain.ImportBatch) bool { return b.UserID == userID }), nil
}

func (s *Store) ListBatchesByStatus(_ context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error) {
	return s.filterBatches(func(b *domain.ImportBatch) bool { return b.EnrichmentStatus == status }), nil
}

func (s *Store) SetBatchStatus(_ context.Context, id string, status domain.EnrichmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.EnrichmentStatus = status
	return nil
}

func (s *Store) UpdateBatchEnrichment(_ context.Context, id string, status domain.EnrichmentStatus, counts domain.BatchCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.EnrichmentStatus = status
	b.Apply(counts)
	return nil
}

func (s *Store) CountBatch(_ context.Context, batchID string) (domain.BatchCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c domain.BatchCounts
	for _, p := range s.places {
		if p.BatchID != batchID {
			continue
		}
		if p.ID.IsResolved() {
			c.Enriched++
		}
		if p.Category != "" {
			c.Categorized++
		}
	}
	return c, nil
}

func (s *Store) DeleteBatch(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[id]; !ok {
		return 0, domain.ErrNotFound
	}

	deleted := 0
	for key, p := range s.places {
		if p.BatchID != id {
			continue
		}
		if p.IsVisited() {
			p.BatchID = ""
			continue
		}
		delete(s.places, key)
		deleted++
	}
	delete(s.batches, id)
	return deleted, nil
}

// filterBatches returns copies, newest first.
func (s *Store) filterBatches(keep func(*domain.ImportBatch) bool) []*domain.ImportBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ImportBatch, 0)
	for _, b := range s.batches {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Count returns the number of stored places
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.places)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
