package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

const (
	// DefaultReenrichLimit caps the records picked up by one sweep
	DefaultReenrichLimit = 200
)

// ReenrichStore lists places that still need enrichment and the batches
// whose own task still owns them.
type ReenrichStore interface {
	ListUnresolved(ctx context.Context, limit int) ([]*domain.SavedPlace, error)
	ListBatchesByStatus(ctx context.Context, status domain.EnrichmentStatus) ([]*domain.ImportBatch, error)
}

// Reenricher periodically retries places left without an id or category,
// across every user and batch.
type Reenricher struct {
	store         ReenrichStore
	enricher      Enricher
	busy          func(batchID string) bool
	logger        logger.Logger
	interval      time.Duration
	limit         int
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewReenricher creates a new re-enrichment sweep. busy reports batches
// already owned by a running task; their records are left out. It may be nil.
func NewReenricher(
	store ReenrichStore,
	enricher Enricher,
	busy func(batchID string) bool,
	log logger.Logger,
	interval time.Duration,
	limit int,
	manualTrigger chan struct{},
) *Reenricher {
	if limit <= 0 {
		limit = DefaultReenrichLimit
	}
	return &Reenricher{
		store:         store,
		enricher:      enricher,
		busy:          busy,
		logger:        log.With(logger.Component("reenricher")),
		interval:      interval,
		limit:         limit,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic sweep. The first sweep waits for a tick or a
// manual trigger so startup recovery goes first.
func (re *Reenricher) Start(ctx context.Context) error {
	ticker := time.NewTicker(re.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				re.sweepAndLog(ctx)
			case <-re.manualTrigger:
				re.logger.Info("manual re-enrichment triggered")
				re.sweepAndLog(ctx)
			case <-re.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweep loop
func (re *Reenricher) Stop() {
	close(re.stopCh)
}

func (re *Reenricher) sweepAndLog(ctx context.Context) {
	if _, err := re.Sweep(ctx); err != nil {
		re.logger.Error("re-enrichment sweep failed",
			logger.Error(err))
	}
}

// Sweep runs one pass and returns the number of records handed to the
// enricher. Records of pending or running batches are left to the batch task.
func (re *Reenricher) Sweep(ctx context.Context) (int, error) {
	active, err := re.activeBatches(ctx)
	if err != nil {
		return 0, err
	}
	records, err := re.store.ListUnresolved(ctx, re.limit)
	if err != nil {
		return 0, err
	}

	pending := records[:0]
	for _, rec := range records {
		if rec.BatchID != "" && (active[rec.BatchID] || (re.busy != nil && re.busy(rec.BatchID))) {
			continue
		}
		pending = append(pending, rec)
	}

	if len(pending) == 0 {
		re.logger.Debug("nothing to re-enrich")
		return 0, nil
	}

	res, err := re.enricher.EnrichBatch(ctx, nil, pending)
	if err != nil {
		return res.Processed, err
	}

	re.logger.Info("re-enrichment sweep completed",
		logger.Int("records", len(pending)),
		logger.Int("resolved", res.Resolved),
		logger.Int("categorized", res.Categorized),
		logger.Int("failed", res.Failed))

	return len(pending), nil
}

func (re *Reenricher) activeBatches(ctx context.Context) (map[string]bool, error) {
	active := make(map[string]bool)
	for _, status := range []domain.EnrichmentStatus{domain.StatusPending, domain.StatusRunning} {
		batches, err := re.store.ListBatchesByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("list %s batches: %w", status, err)
		}
		for _, b := range batches {
			active[b.ID] = true
		}
	}
	return active, nil
}
