// Package importer persists externally sourced bookmarks as provisional
// places grouped in an import batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
)

// Import results reported to metrics.
const (
	ResultImported = "imported"
	ResultSkipped  = "skipped"
	ResultInvalid  = "invalid"
)

const rollbackTimeout = 5 * time.Second

// ErrForbidden is returned when a user touches a batch they do not own.
var ErrForbidden = errors.New("batch belongs to another user")

// Store is the persistence subset used by imports and undo.
type Store interface {
	InsertPlace(ctx context.Context, p *domain.SavedPlace) error
	ListPlaces(ctx context.Context, userID string) ([]*domain.SavedPlace, error)
	CreateBatch(ctx context.Context, b *domain.ImportBatch) error
	GetBatch(ctx context.Context, id string) (*domain.ImportBatch, error)
	DeleteBatch(ctx context.Context, id string) (int, error)
}

type Importer struct {
	store   Store
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

func New(st Store, m *metrics.Metrics, log logger.Logger) *Importer {
	return &Importer{
		store:   st,
		metrics: m,
		logger:  log.With(logger.Component("importer")),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Import filters duplicates against the user's saved places, records a
// pending batch and inserts the rest with synthetic ids under it.
//
// When nothing is left to import no batch is persisted; the returned
// summary then has an empty ID and a completed status. A failed insert
// removes the batch and the places already written for it.
func (im *Importer) Import(ctx context.Context, userID, source string, bookmarks []domain.SourceBookmark, invalid int) (*domain.ImportBatch, error) {
	existing, err := im.store.ListPlaces(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}

	toInsert, skipped := domain.FilterDuplicates(bookmarks, existing)

	// Synthetic ids clash for bookmarks sharing coordinates
	taken := make(map[domain.PlaceID]bool, len(existing)+len(toInsert))
	for _, p := range existing {
		taken[p.ID] = true
	}

	batchID := im.newID()
	now := im.now().UTC()
	planned := make([]*domain.SavedPlace, 0, len(toInsert))
	for _, b := range toInsert {
		id := domain.Unresolved(b.Lat, b.Lng)
		if taken[id] {
			skipped++
			continue
		}
		taken[id] = true
		planned = append(planned, &domain.SavedPlace{
			UserID:  userID,
			ID:      id,
			Name:    b.Name,
			Address: b.Address,
			Lat:     b.Lat,
			Lng:     b.Lng,
			Rating:  domain.Unrated,
			BatchID: batchID,
			// Keep export order stable for stores ordering by creation time
			CreatedAt: now.Add(time.Duration(len(planned)) * time.Microsecond),
		})
	}

	batch := &domain.ImportBatch{
		UserID:           userID,
		Source:           source,
		ImportedCount:    len(planned),
		SkippedCount:     skipped,
		InvalidCount:     invalid,
		EnrichmentStatus: domain.StatusCompleted,
		CreatedAt:        now,
	}
	if len(planned) == 0 {
		im.report(batch)
		im.logger.Info("import had nothing new",
			logger.String("user_id", userID),
			logger.Int("skipped", skipped),
			logger.Int("invalid", invalid))
		return batch, nil
	}

	batch.ID = batchID
	batch.EnrichmentStatus = domain.StatusPending
	if err := im.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	for _, p := range planned {
		if err := im.store.InsertPlace(ctx, p); err != nil {
			im.rollback(ctx, batchID)
			return nil, fmt.Errorf("insert place %q: %w", p.Name, err)
		}
	}

	im.report(batch)
	im.logger.Info("import saved",
		logger.String("user_id", userID),
		logger.String("batch_id", batchID),
		logger.String("source", source),
		logger.Int("imported", batch.ImportedCount),
		logger.Int("skipped", skipped),
		logger.Int("invalid", invalid))

	return batch, nil
}

func (im *Importer) report(b *domain.ImportBatch) {
	im.metrics.Imported(ResultImported, b.ImportedCount)
	im.metrics.Imported(ResultSkipped, b.SkippedCount)
	im.metrics.Imported(ResultInvalid, b.InvalidCount)
}

// rollback runs even when ctx is already cancelled.
func (im *Importer) rollback(ctx context.Context, batchID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	deleted, err := im.store.DeleteBatch(ctx, batchID)
	if err != nil {
		im.logger.Error("failed to roll back import",
			logger.String("batch_id", batchID),
			logger.Error(err))
		return
	}
	im.logger.Warn("import rolled back",
		logger.String("batch_id", batchID),
		logger.Int("deleted", deleted))
}

// Undo removes a batch and the unrated places it created. Places rated
// since the import stay and lose their batch reference.
func (im *Importer) Undo(ctx context.Context, userID, batchID string) (int, error) {
	b, err := im.store.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if b.UserID != userID {
		return 0, ErrForbidden
	}

	deleted, err := im.store.DeleteBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete batch %s: %w", batchID, err)
	}

	im.logger.Info("import undone",
		logger.String("user_id", userID),
		logger.String("batch_id", batchID),
		logger.Int("deleted", deleted))
	return deleted, nil
}
