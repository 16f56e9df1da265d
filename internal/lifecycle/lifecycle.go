package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// Failure messages surfaced in the failed phase.
const (
	MsgEnrichmentFailed = "enrichment failed"
	MsgBatchGone        = "import batch no longer exists"
)

type Option func(*Lifecycle)

func WithPollInterval(d time.Duration) Option {
	return func(l *Lifecycle) { l.interval = d }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.fetchTimeout = d }
}

// poll is the handle of the single enrichment poller.
type poll struct {
	batchID string
	cancel  context.CancelFunc
}

// Lifecycle stores the current Phase and notifies subscribers on change.
// Transitions come from the caller; the only ones it makes on its own are
// the startup recovery and the end of a polled enrichment.
type Lifecycle struct {
	history      HistorySource
	logger       logger.Logger
	interval     time.Duration
	fetchTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	phase   Phase
	poll    *poll
	subs    map[int]func(Phase)
	nextSub int
	closed  bool
}

// New creates an idle lifecycle and starts a one-time recovery scan for a
// batch still being enriched.
func New(history HistorySource, log logger.Logger, opts ...Option) *Lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lifecycle{
		history:      history,
		logger:       log.With(logger.Component("lifecycle")),
		interval:     DefaultPollInterval,
		fetchTimeout: DefaultFetchTimeout,
		ctx:          ctx,
		cancel:       cancel,
		phase:        Phase{Kind: KindIdle},
		subs:         make(map[int]func(Phase)),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.recoverRunning()
	return l
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Subscribe registers fn for every phase change. fn runs on the goroutine
// making the transition and must not block.
func (l *Lifecycle) Subscribe(fn func(Phase)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// StartFetching begins a new import cycle, abandoning any tracked enrichment.
func (l *Lifecycle) StartFetching() { l.transition(Phase{Kind: KindFetching}) }

func (l *Lifecycle) StartSaving(total int) {
	l.transition(Phase{Kind: KindSaving, Total: total})
}

// StartEnriching tracks batchID and polls history until it ends.
func (l *Lifecycle) StartEnriching(batchID string) {
	l.transition(Phase{Kind: KindEnriching, BatchID: batchID})
}

func (l *Lifecycle) Complete(importedCount int) {
	l.transition(Phase{Kind: KindCompleted, ImportedCount: importedCount})
}

func (l *Lifecycle) Fail(message string) {
	l.transition(Phase{Kind: KindFailed, Message: message})
}

// Dismiss returns to idle.
func (l *Lifecycle) Dismiss() { l.transition(Phase{Kind: KindIdle}) }

// Close stops the poller and recovery and waits for them to exit.
// Later transitions are ignored.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.stopPollLocked()
		l.cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Lifecycle) transition(next Phase) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	subs := l.applyLocked(next)
	l.mu.Unlock()

	notify(subs, next)
}

// applyLocked stores next, replaces the poller if needed and returns the
// subscribers to notify. Callers hold l.mu.
func (l *Lifecycle) applyLocked(next Phase) []func(Phase) {
	l.stopPollLocked()
	l.phase = next
	if next.Kind == KindEnriching {
		l.startPollLocked(next.BatchID)
	}

	l.logger.Debug("import phase changed", logger.String("phase", next.String()))

	subs := make([]func(Phase), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Phase), p Phase) {
	for _, fn := range subs {
		fn(p)
	}
}

func (l *Lifecycle) startPollLocked(batchID string) {
	ctx, cancel := context.WithCancel(l.ctx)
	p := &poll{batchID: batchID, cancel: cancel}
	l.poll = p

	l.wg.Add(1)
	go l.runPoll(ctx, p)
}

func (l *Lifecycle) stopPollLocked() {
	if l.poll != nil {
		l.poll.cancel()
		l.poll = nil
	}
}

func (l *Lifecycle) runPoll(ctx context.Context, p *poll) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batches, err := l.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("failed to poll import history",
				logger.String("batch_id", p.batchID),
				logger.Error(err))
			continue
		}

		next, done := outcome(p.batchID, batches)
		if done {
			l.finishPoll(p, next)
			return
		}
	}
}

// outcome maps the polled batch to a terminal phase, if it has one.
func outcome(batchID string, batches []*domain.ImportBatch) (Phase, bool) {
	for _, b := range batches {
		if b == nil || b.ID != batchID {
			continue
		}
		switch b.EnrichmentStatus {
		case domain.StatusCompleted:
			return Phase{Kind: KindCompleted, ImportedCount: b.ImportedCount}, true
		case domain.StatusFailed:
			return Phase{Kind: KindFailed, Message: MsgEnrichmentFailed}, true
		}
		return Phase{}, false
	}
	return Phase{Kind: KindFailed, Message: MsgBatchGone}, true
}

// finishPoll applies next only if p is still the active poller.
func (l *Lifecycle) finishPoll(p *poll, next Phase) {
	l.mu.Lock()
	if l.closed || l.poll != p {
		l.mu.Unlock()
		return
	}
	subs := l.applyLocked(next)
	l.mu.Unlock()

	notify(subs, next)
}

func (l *Lifecycle) recoverRunning() {
	defer l.wg.Done()

	batches, err := l.fetch(l.ctx)
	if err != nil {
		if l.ctx.Err() == nil {
			l.logger.Warn("import recovery skipped", logger.Error(err))
		}
		return
	}

	for _, b := range batches {
		if b == nil || b.EnrichmentStatus != domain.StatusRunning {
			continue
		}

		next := Phase{Kind: KindEnriching, BatchID: b.ID}
		l.mu.Lock()
		if l.closed || l.phase.Kind != KindIdle {
			l.mu.Unlock()
			return
		}
		subs := l.applyLocked(next)
		l.mu.Unlock()

		l.logger.Info("resumed tracking of running import",
			logger.String("batch_id", b.ID))
		notify(subs, next)
		return
	}
}

func (l *Lifecycle) fetch(ctx context.Context) ([]*domain.ImportBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	defer cancel()
	return l.history.History(ctx)
}
