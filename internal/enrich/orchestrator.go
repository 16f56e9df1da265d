// Package enrich resolves provisional places of an import against the
// place-search provider and records the outcome on the batch.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
	"github.com/MrSnakeDoc/matjip/internal/places"
)

// DefaultThrottle is the pause after each record that reached the provider.
const DefaultThrottle = 100 * time.Millisecond

// Store is the persistence subset the orchestrator writes to.
type Store interface {
	ResolvePlace(ctx context.Context, userID string, from, to domain.PlaceID, category, detailURL string) error
	SetPlaceCategory(ctx context.Context, userID string, id domain.PlaceID, category string) error
	CountBatch(ctx context.Context, batchID string) (domain.BatchCounts, error)
	UpdateBatchEnrichment(ctx context.Context, id string, status domain.EnrichmentStatus, counts domain.BatchCounts) error
}

// Matcher finds provider data for one bookmark.
type Matcher interface {
	ResolveMatch(ctx context.Context, name string, lat, lng float64) *places.Candidate
	ResolveCategoryByCoordinates(ctx context.Context, lat, lng float64) string
}

// CategoryMapper rewrites provider category labels before they are stored.
type CategoryMapper interface {
	Map(label string) string
}

// Result summarizes one EnrichBatch run.
type Result struct {
	Processed   int // records that reached the provider
	Skipped     int // already resolved or categorized, or gone from the store
	Resolved    int // id replaced by a provider id
	Categorized int // category set without an id change
	Enriched    int // Resolved + Categorized
	Failed      int // store errors
}

// Status is the terminal batch status implied by the result.
func (r Result) Status() domain.EnrichmentStatus {
	if r.Enriched == 0 && r.Failed > 0 {
		return domain.StatusFailed
	}
	return domain.StatusCompleted
}

type Orchestrator struct {
	store    Store
	matcher  Matcher
	mapper   CategoryMapper
	throttle time.Duration
	metrics  *metrics.Metrics
	logger   logger.Logger
}

type Option func(*Orchestrator)

// WithThrottle overrides DefaultThrottle. Zero disables the pause.
func WithThrottle(d time.Duration) Option {
	return func(o *Orchestrator) { o.throttle = d }
}

func WithCategoryMapper(m CategoryMapper) Option {
	return func(o *Orchestrator) { o.mapper = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func New(st Store, m Matcher, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		matcher:  m,
		throttle: DefaultThrottle,
		logger:   log.With(logger.Component("enrich")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnrichBatch processes records sequentially. Per-record store errors are
// counted and never stop the loop. Records are updated in place when their
// id or category changes.
//
// When batchID is non-nil the batch counts are recomputed from the store
// and its terminal status is written; only that bookkeeping can fail the
// call. A cancelled ctx stops the loop and returns ctx.Err() without
// touching the batch.
func (o *Orchestrator) EnrichBatch(ctx context.Context, batchID *string, records []*domain.SavedPlace) (Result, error) {
	var res Result
	start := time.Now()

	for _, rec := range records {
		if rec == nil || rec.ID.IsResolved() || rec.Category != "" {
			res.Skipped++
			o.metrics.RecordOutcome(metrics.OutcomeSkipped)
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		outcome, err := o.enrichOne(ctx, rec)
		switch {
		case err != nil:
			res.Failed++
			outcome = metrics.OutcomeFailed
			o.logger.Warn("failed to enrich place",
				logger.String("user_id", rec.UserID),
				logger.String("place_id", rec.ID.String()),
				logger.String("name", rec.Name),
				logger.Error(err))
		case outcome == metrics.OutcomeResolved:
			res.Resolved++
			res.Enriched++
		case outcome == metrics.OutcomeCategorized:
			res.Categorized++
			res.Enriched++
		case outcome == metrics.OutcomeSkipped:
			res.Skipped++
		}
		o.metrics.RecordOutcome(outcome)

		if err := o.pause(ctx); err != nil {
			return res, err
		}
	}

	o.logger.Info("enrichment pass finished",
		logger.String("batch_id", deref(batchID)),
		logger.Int("records", len(records)),
		logger.Int("skipped", res.Skipped),
		logger.Int("resolved", res.Resolved),
		logger.Int("categorized", res.Categorized),
		logger.Int("failed", res.Failed),
		logger.Duration("took", time.Since(start)))

	if batchID == nil {
		return res, nil
	}

	counts, err := o.store.CountBatch(ctx, *batchID)
	if err != nil {
		return res, fmt.Errorf("count batch %s: %w", *batchID, err)
	}
	status := res.Status()
	if err := o.store.UpdateBatchEnrichment(ctx, *batchID, status, counts); err != nil {
		return res, fmt.Errorf("update batch %s: %w", *batchID, err)
	}
	o.metrics.BatchFinished(string(status))
	return res, nil
}

// enrichOne returns the metrics outcome of a record, or a store error.
// A record that is gone from the store was handled or undone elsewhere and
// counts as skipped.
func (o *Orchestrator) enrichOne(ctx context.Context, rec *domain.SavedPlace) (string, error) {
	if match := o.matcher.ResolveMatch(ctx, rec.Name, rec.Lat, rec.Lng); match != nil {
		category := o.mapCategory(match.CategoryLabel)
		to := domain.Resolved(match.ID)

		err := o.store.ResolvePlace(ctx, rec.UserID, rec.ID, to, category, match.DetailURL)
		switch {
		case err == nil:
			rec.ID = to
			rec.Category = category
			rec.DetailURL = match.DetailURL
			return metrics.OutcomeResolved, nil
		case errors.Is(err, domain.ErrNotFound):
			return metrics.OutcomeSkipped, nil
		case errors.Is(err, domain.ErrDuplicate):
			// The user already saved the canonical place; keep the
			// synthetic record and only categorize it, from the
			// coordinates when the match has no label.
			if category != "" {
				return o.categorize(ctx, rec, category)
			}
		default:
			return "", err
		}
	}

	label := o.matcher.ResolveCategoryByCoordinates(ctx, rec.Lat, rec.Lng)
	category := o.mapCategory(label)
	if category == "" {
		return metrics.OutcomeUnmatched, nil
	}
	return o.categorize(ctx, rec, category)
}

func (o *Orchestrator) categorize(ctx context.Context, rec *domain.SavedPlace, category string) (string, error) {
	err := o.store.SetPlaceCategory(ctx, rec.UserID, rec.ID, category)
	switch {
	case err == nil:
		rec.Category = category
		return metrics.OutcomeCategorized, nil
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeSkipped, nil
	}
	return "", err
}

func (o *Orchestrator) mapCategory(label string) string {
	if o.mapper == nil || label == "" {
		return label
	}
	return o.mapper.Map(label)
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.throttle <= 0 {
		return nil
	}
	t := time.NewTimer(o.throttle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
