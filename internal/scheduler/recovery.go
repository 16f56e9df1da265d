package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

// BatchLister lists batches by enrichment status.
type BatchLister interface {
	ListBatchesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error)
}

// Spawner starts background enrichment of a batch.
type Spawner interface {
	Spawn(ctx context.Context, batchID string) error
}

// BatchRecovery restarts enrichment of batches a previous process left
// unfinished.
type BatchRecovery struct {
	store   BatchLister
	spawner Spawner
	logger  logger.Logger
}

// NewBatchRecovery creates a new startup recovery
func NewBatchRecovery(
	store BatchLister,
	spawner Spawner,
	log logger.Logger,
) *BatchRecovery {
	return &BatchRecovery{
		store:   store,
		spawner: spawner,
		logger:  log.With(logger.Component("recovery")),
	}
}

// Recover respawns running and pending batches and returns how many were started
func (br *BatchRecovery) Recover(ctx context.Context) (int, error) {
	br.logger.Info("recovering unfinished import batches")

	var batches []*domain.ImportBatch
	for _, status := range []domain.EnrichmentStatus{domain.StatusRunning, domain.StatusPending} {
		found, err := br.store.ListBatchesByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		batches = append(batches, found...)
	}

	if len(batches) == 0 {
		br.logger.Info("no unfinished batches found")
		return 0, nil
	}

	started := 0
	for _, b := range batches {
		if err := br.spawner.Spawn(ctx, b.ID); err != nil {
			br.logger.Warn("failed to respawn batch",
				logger.String("batch_id", b.ID),
				logger.Error(err))
			continue
		}
		started++
	}

	br.logger.Info("recovered unfinished batches",
		logger.Int("count", started))

	return started, nil
}
