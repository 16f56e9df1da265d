package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/enrich"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

// statusWriteTimeout bounds the failed-status write after a task dies.
const statusWriteTimeout = 5 * time.Second

// Enricher runs one enrichment pass.
type Enricher interface {
	EnrichBatch(ctx context.Context, batchID *string, records []*domain.SavedPlace) (enrich.Result, error)
}

// RunnerStore is what the runner needs besides the enricher.
type RunnerStore interface {
	ListBatchPlaces(ctx context.Context, batchID string) ([]*domain.SavedPlace, error)
	SetBatchStatus(ctx context.Context, id string, status domain.EnrichmentStatus) error
}

// EnrichmentRunner executes batch enrichment in background goroutines
// bound to a process-wide context, so a finished HTTP request never
// cancels the work it started.
type EnrichmentRunner struct {
	base     context.Context
	store    RunnerStore
	enricher Enricher
	logger   logger.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEnrichmentRunner creates a runner whose tasks stop when base is cancelled
func NewEnrichmentRunner(base context.Context, st RunnerStore, e Enricher, log logger.Logger) *EnrichmentRunner {
	return &EnrichmentRunner{
		base:     base,
		store:    st,
		enricher: e,
		logger:   log.With(logger.Component("runner")),
		inflight: make(map[string]struct{}),
	}
}

// Spawn marks the batch running and enriches it in the background.
// A batch already being enriched by this process is left alone.
func (r *EnrichmentRunner) Spawn(ctx context.Context, batchID string) error {
	r.mu.Lock()
	if _, busy := r.inflight[batchID]; busy {
		r.mu.Unlock()
		return nil
	}
	r.inflight[batchID] = struct{}{}
	r.mu.Unlock()

	if err := r.store.SetBatchStatus(ctx, batchID, domain.StatusRunning); err != nil {
		r.release(batchID)
		return fmt.Errorf("mark batch %s running: %w", batchID, err)
	}

	r.wg.Add(1)
	go r.run(batchID)
	return nil
}

// Busy reports whether batchID is being enriched by this process.
func (r *EnrichmentRunner) Busy(batchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[batchID]
	return ok
}

// Stop waits for in-flight tasks until ctx expires.
// Cancel the base context first to make tasks return early.
func (r *EnrichmentRunner) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enrichment tasks still running: %w", ctx.Err())
	}
}

func (r *EnrichmentRunner) run(batchID string) {
	defer r.wg.Done()
	defer r.release(batchID)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("enrichment task panicked",
				logger.String("batch_id", batchID),
				logger.Any("panic", p))
			r.markFailed(batchID)
		}
	}()

	start := time.Now()
	records, err := r.store.ListBatchPlaces(r.base, batchID)
	if err == nil {
		var res enrich.Result
		res, err = r.enricher.EnrichBatch(r.base, &batchID, records)
		if err == nil {
			r.logger.Info("batch enriched",
				logger.String("batch_id", batchID),
				logger.String("status", string(res.Status())),
				logger.Int("enriched", res.Enriched),
				logger.Int("failed", res.Failed),
				logger.Duration("took", time.Since(start)))
			return
		}
	}

	if r.base.Err() != nil {
		// Shutdown: the batch stays running and is picked up on restart
		r.logger.Info("enrichment interrupted",
			logger.String("batch_id", batchID))
		return
	}

	r.logger.Error("batch enrichment failed",
		logger.String("batch_id", batchID),
		logger.Error(err))
	r.markFailed(batchID)
}

func (r *EnrichmentRunner) markFailed(batchID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.base), statusWriteTimeout)
	defer cancel()

	if err := r.store.SetBatchStatus(ctx, batchID, domain.StatusFailed); err != nil {
		r.logger.Error("failed to mark batch failed",
			logger.String("batch_id", batchID),
			logger.Error(err))
	}
}

func (r *EnrichmentRunner) release(batchID string) {
	r.mu.Lock()
	delete(r.inflight, batchID)
	r.mu.Unlock()
}
