package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/store"
)

// scanCount is the COUNT hint for SCAN sweeps
const scanCount = 200

// Store persists places and import batches in Redis.
// Uniqueness of (user, place id) is enforced with SETNX on the place key.
type Store struct {
	client *redis.Client
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// ─────────────────────────────────────────────────────────────────
// Places
// ─────────────────────────────────────────────────────────────────

// InsertPlace stores a place if the user does not have it yet
func (s *Store) InsertPlace(ctx context.Context, p *domain.SavedPlace) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}

	key := PlaceKey(p.UserID, p.ID.String())
	ok, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save place: %w", err)
	}
	if !ok {
		return domain.ErrDuplicate
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, UserPlacesKey(p.UserID), p.ID.String())
		if p.BatchID != "" {
			pipe.SAdd(ctx, BatchPlacesKey(p.BatchID), key)
		}
		if needsEnrichment(p) {
			pipe.SAdd(ctx, KeyUnresolved, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index place: %w", err)
	}
	return nil
}

// ListPlaces returns every place of a user
func (s *Store) ListPlaces(ctx context.Context, userID string) ([]*domain.SavedPlace, error) {
	ids, err := s.client.SMembers(ctx, UserPlacesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get place ids: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = PlaceKey(userID, id)
	}
	return s.getPlaces(ctx, keys, 0)
}

// ListBatchPlaces returns the places still attached to a batch
func (s *Store) ListBatchPlaces(ctx context.Context, batchID string) ([]*domain.SavedPlace, error) {
	keys, err := s.client.SMembers(ctx, BatchPlacesKey(batchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch places: %w", err)
	}
	return s.getPlaces(ctx, keys, 0)
}

// ListUnresolved returns places waiting for enrichment across all users
func (s *Store) ListUnresolved(ctx context.Context, limit int) ([]*domain.SavedPlace, error) {
	keys, err := s.client.SMembers(ctx, KeyUnresolved).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get unresolved places: %w", err)
	}
	return s.getPlaces(ctx, keys, limit)
}

// ResolvePlace moves a place to its canonical id. Both keys are watched so
// the move is all-or-nothing and a concurrent writer of the target fails it.
func (s *Store) ResolvePlace(ctx context.Context, userID string, from, to domain.PlaceID, category, detailURL string) error {
	fromKey := PlaceKey(userID, from.String())
	toKey := PlaceKey(userID, to.String())

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, fromKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get place: %w", err)
		}
		var p domain.SavedPlace
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("failed to unmarshal place: %w", err)
		}

		if toKey != fromKey {
			n, err := tx.Exists(ctx, toKey).Result()
			if err != nil {
				return fmt.Errorf("failed to check resolved place: %w", err)
			}
			if n > 0 {
				return domain.ErrDuplicate
			}
		}

		p.ID = to
		p.Category = category
		p.DetailURL = detailURL
		data, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("failed to marshal place: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, toKey, data, 0)
			pipe.SRem(ctx, KeyUnresolved, fromKey)
			if toKey == fromKey {
				return nil
			}
			pipe.Del(ctx, fromKey)
			pipe.SRem(ctx, UserPlacesKey(userID), from.String())
			pipe.SAdd(ctx, UserPlacesKey(userID), to.String())
			if p.BatchID != "" {
				pipe.SRem(ctx, BatchPlacesKey(p.BatchID), fromKey)
				pipe.SAdd(ctx, BatchPlacesKey(p.BatchID), toKey)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to move place: %w", err)
		}
		return nil
	}, fromKey, toKey)
}

// SetPlaceCategory updates the category of a place in place
func (s *Store) SetPlaceCategory(ctx context.Context, userID string, id domain.PlaceID, category string) error {
	key := PlaceKey(userID, id.String())
	p, err := s.getPlace(ctx, key)
	if err != nil {
		return err
	}
	p.Category = category

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetXX(ctx, key, data, 0)
		if needsEnrichment(p) {
			pipe.SAdd(ctx, KeyUnresolved, key)
		} else {
			pipe.SRem(ctx, KeyUnresolved, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	return nil
}

func (s *Store) getPlace(ctx context.Context, key string) (*domain.SavedPlace, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	var p domain.SavedPlace
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal place: %w", err)
	}
	return &p, nil
}

// getPlaces loads keys with MGET, skipping missing ones, ordered by creation time.
func (s *Store) getPlaces(ctx context.Context, keys []string, limit int) ([]*domain.SavedPlace, error) {
	out := make([]*domain.SavedPlace, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get places: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p domain.SavedPlace
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal place %s: %w", keys[i], err)
		}
		out = append(out, &p)
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
	return out, nil
}

func needsEnrichment(p *domain.SavedPlace) bool {
	return !p.ID.IsResolved() && p.Category == ""
}

// ─────────────────────────────────────────────────────────────────
// Batches
// ─────────────────────────────────────────────────────────────────

// CreateBatch stores a new import batch
func (s *Store) CreateBatch(ctx context.Context, b *domain.ImportBatch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	ok, err := s.client.SetNX(ctx, ImportKey(b.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	if !ok {
		return domain.ErrDuplicate
	}

	err = s.client.ZAdd(ctx, UserImportsKey(b.UserID), redis.Z{
		Score:  float64(b.CreatedAt.UnixMilli()),
		Member: b.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by id
func (s *Store) GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error) {
	data, err := s.client.Get(ctx, ImportKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	var b domain.ImportBatch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &b, nil
}

// ListBatches returns the user's batches, newest first
func (s *Store) ListBatches(ctx context.Context, userID string) ([]*domain.ImportBatch, error) {
	ids, err := s.client.ZRevRange(ctx, UserImportsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get batch ids: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ImportKey(id)
	}
	return s.getBatches(ctx, keys)
}

// ListBatchesByStatus sweeps every batch key with SCAN
func (s *Store) ListBatchesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, importScanPattern, scanCount).Iterator()
	for iter.Next(ctx) {
		if isBatchKey(iter.Val()) {
			keys = append(keys, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan batches: %w", err)
	}

	all, err := s.getBatches(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ImportBatch, 0, len(all))
	for _, b := range all {
		if b.EnrichmentStatus == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetBatchStatus changes only the enrichment status
func (s *Store) SetBatchStatus(ctx context.Context, id string, status domain.EnrichmentStatus) error {
	return s.updateBatch(ctx, id, func(b *domain.ImportBatch) {
		b.EnrichmentStatus = status
	})
}

// UpdateBatchEnrichment writes status and recomputed counts
func (s *Store) UpdateBatchEnrichment(ctx context.Context, id string, status domain.EnrichmentStatus, counts domain.BatchCounts) error {
	return s.updateBatch(ctx, id, func(b *domain.ImportBatch) {
		b.EnrichmentStatus = status
		b.Apply(counts)
	})
}

// updateBatch is an optimistic read-modify-write guarded by WATCH
func (s *Store) updateBatch(ctx context.Context, id string, mutate func(*domain.ImportBatch)) error {
	key := ImportKey(id)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get batch: %w", err)
		}

		var b domain.ImportBatch
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("failed to unmarshal batch: %w", err)
		}
		mutate(&b)

		updated, err := json.Marshal(&b)
		if err != nil {
			return fmt.Errorf("failed to marshal batch: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetXX(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

// CountBatch derives enrichment counts from the batch's places
func (s *Store) CountBatch(ctx context.Context, batchID string) (domain.BatchCounts, error) {
	list, err := s.ListBatchPlaces(ctx, batchID)
	if err != nil {
		return domain.BatchCounts{}, err
	}
	var c domain.BatchCounts
	for _, p := range list {
		if p.ID.IsResolved() {
			c.Enriched++
		}
		if p.Category != "" {
			c.Categorized++
		}
	}
	return c, nil
}

// DeleteBatch removes unrated places of the batch, detaches rated ones,
// then removes the batch itself
func (s *Store) DeleteBatch(ctx context.Context, id string) (int, error) {
	b, err := s.GetBatch(ctx, id)
	if err != nil {
		return 0, err
	}
	list, err := s.ListBatchPlaces(ctx, id)
	if err != nil {
		return 0, err
	}

	deleted := 0
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range list {
			key := PlaceKey(p.UserID, p.ID.String())
			if p.IsVisited() {
				p.BatchID = ""
				data, err := json.Marshal(p)
				if err != nil {
					return fmt.Errorf("failed to marshal place: %w", err)
				}
				pipe.SetXX(ctx, key, data, 0)
				continue
			}
			pipe.Del(ctx, key)
			pipe.SRem(ctx, UserPlacesKey(p.UserID), p.ID.String())
			pipe.SRem(ctx, KeyUnresolved, key)
			deleted++
		}
		pipe.Del(ctx, BatchPlacesKey(id), ImportKey(id))
		pipe.ZRem(ctx, UserImportsKey(b.UserID), id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch: %w", err)
	}
	return deleted, nil
}

func (s *Store) getBatches(ctx context.Context, keys []string) ([]*domain.ImportBatch, error) {
	out := make([]*domain.ImportBatch, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get batches: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var b domain.ImportBatch
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch %s: %w", keys[i], err)
		}
		out = append(out, &b)
	}
	return out, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the client
func (s *Store) Close() error {
	return s.client.Close()
}
