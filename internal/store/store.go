// Package store defines the persistence capabilities used by imports and
// enrichment. Backends live in the memory, redis and postgres subpackages.
package store

import (
	"context"

	"github.com/MrSnakeDoc/matjip/internal/domain"
)

// Places is the saved-place collection.
type Places interface {
	// InsertPlace fails with domain.ErrDuplicate when (UserID, ID) exists.
	InsertPlace(ctx context.Context, p *domain.SavedPlace) error

	ListPlaces(ctx context.Context, userID string) ([]*domain.SavedPlace, error)
	ListBatchPlaces(ctx context.Context, batchID string) ([]*domain.SavedPlace, error)

	// ListUnresolved returns uncategorized places with a synthetic id,
	// across all users, at most limit of them (0 = no limit).
	ListUnresolved(ctx context.Context, limit int) ([]*domain.SavedPlace, error)

	// ResolvePlace replaces the id of a place and sets category and detail
	// URL. It fails with domain.ErrDuplicate when the user already has a
	// place with id to, and domain.ErrNotFound when from does not exist.
	ResolvePlace(ctx context.Context, userID string, from, to domain.PlaceID, category, detailURL string) error

	// SetPlaceCategory only touches the category.
	SetPlaceCategory(ctx context.Context, userID string, id domain.PlaceID, category string) error
}

// Batches is the import-batch collection.
type Batches interface {
	CreateBatch(ctx context.Context, b *domain.ImportBatch) error
	GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error)

	// ListBatches returns the user's batches, newest first.
	ListBatches(ctx context.Context, userID string) ([]*domain.ImportBatch, error)
	ListBatchesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error)

	SetBatchStatus(ctx context.Context, id string, status domain.EnrichmentStatus) error

	// UpdateBatchEnrichment writes the terminal status with recomputed counts.
	UpdateBatchEnrichment(ctx context.Context, id string, status domain.EnrichmentStatus, counts domain.BatchCounts) error

	// CountBatch derives counts from the places currently in the batch.
	CountBatch(ctx context.Context, batchID string) (domain.BatchCounts, error)

	// DeleteBatch undoes an import: unrated places of the batch are
	// deleted, rated ones are detached, then the batch is removed.
	// It returns the number of deleted places.
	DeleteBatch(ctx context.Context, id string) (int, error)
}

// Store is everything a backend provides.
type Store interface {
	Places
	Batches

	Ping(ctx context.Context) error
	Close() error
}
