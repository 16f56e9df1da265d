package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	tick    = 10 * time.Millisecond
	waitFor = 2 * time.Second
)

// fakeHistory serves a mutable batch list and counts fetches.
type fakeHistory struct {
	mu      sync.Mutex
	batches []*domain.ImportBatch
	err     error
	calls   int
}

func (f *fakeHistory) History(context.Context) ([]*domain.ImportBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.ImportBatch, len(f.batches))
	for i, b := range f.batches {
		cp := *b
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeHistory) set(batches ...*domain.ImportBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = batches
	f.err = nil
}

func (f *fakeHistory) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func batch(id string, status domain.EnrichmentStatus, imported int) *domain.ImportBatch {
	return &domain.ImportBatch{ID: id, ImportedCount: imported, EnrichmentStatus: status}
}

func newLifecycle(t *testing.T, h HistorySource) *Lifecycle {
	t.Helper()
	l := New(h, logger.NewNop(), WithPollInterval(tick))
	t.Cleanup(l.Close)
	return l
}

func eventuallyPhase(t *testing.T, l *Lifecycle, want Phase) {
	t.Helper()
	assert.Eventually(t, func() bool { return l.Phase() == want }, waitFor, tick,
		"phase = %s, want %s", l.Phase(), want)
}

func TestHappyPath(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	var mu sync.Mutex
	var seen []Kind
	unsubscribe := l.Subscribe(func(p Phase) {
		mu.Lock()
		seen = append(seen, p.Kind)
		mu.Unlock()
	})
	defer unsubscribe()

	l.StartFetching()
	l.StartSaving(12)
	assert.Equal(t, Phase{Kind: KindSaving, Total: 12}, l.Phase())

	h.set(batch("b1", domain.StatusRunning, 10))
	l.StartEnriching("b1")

	h.set(batch("b1", domain.StatusCompleted, 10))
	eventuallyPhase(t, l, Phase{Kind: KindCompleted, ImportedCount: 10})

	l.Dismiss()
	assert.Equal(t, KindIdle, l.Phase().Kind)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindFetching, KindSaving, KindEnriching, KindCompleted, KindIdle}, seen)
}

func TestPollObservesFailure(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	h.set(batch("b1", domain.StatusFailed, 3))
	l.StartEnriching("b1")

	eventuallyPhase(t, l, Phase{Kind: KindFailed, Message: MsgEnrichmentFailed})
}

func TestPollFetchErrorsKeepEnriching(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	h.fail(errors.New("network down"))
	l.StartEnriching("b1")

	assert.Eventually(t, func() bool { return h.count() >= 4 }, waitFor, tick)
	assert.Equal(t, Phase{Kind: KindEnriching, BatchID: "b1"}, l.Phase())

	h.set(batch("b1", domain.StatusCompleted, 2))
	eventuallyPhase(t, l, Phase{Kind: KindCompleted, ImportedCount: 2})
}

func TestPollMissingBatchFails(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	h.set(batch("other", domain.StatusRunning, 1))
	l.StartEnriching("b1")

	eventuallyPhase(t, l, Phase{Kind: KindFailed, Message: MsgBatchGone})
}

func TestStartFetchingCancelsPoll(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	h.set(batch("b1", domain.StatusRunning, 1))
	l.StartEnriching("b1")
	l.StartFetching()

	// A completion of the abandoned batch must not leak into the new cycle
	h.set(batch("b1", domain.StatusCompleted, 1))
	before := h.count()
	time.Sleep(10 * tick)

	assert.Equal(t, Phase{Kind: KindFetching}, l.Phase())
	assert.LessOrEqual(t, h.count()-before, 1, "cancelled poll stopped fetching")
}

func TestSingleActivePoller(t *testing.T) {
	h := &fakeHistory{}
	l := newLifecycle(t, h)

	h.set(batch("b1", domain.StatusRunning, 1), batch("b2", domain.StatusRunning, 5))
	l.StartEnriching("b1")
	l.StartEnriching("b2")

	h.set(batch("b1", domain.StatusCompleted, 1), batch("b2", domain.StatusRunning, 5))
	time.Sleep(10 * tick)
	assert.Equal(t, Phase{Kind: KindEnriching, BatchID: "b2"}, l.Phase(), "b1 poller was replaced")

	h.set(batch("b2", domain.StatusCompleted, 5))
	eventuallyPhase(t, l, Phase{Kind: KindCompleted, ImportedCount: 5})
}

func TestRecoveryResumesRunningBatch(t *testing.T) {
	h := &fakeHistory{}
	h.set(batch("old", domain.StatusCompleted, 4), batch("b7", domain.StatusRunning, 9))
	l := newLifecycle(t, h)

	eventuallyPhase(t, l, Phase{Kind: KindEnriching, BatchID: "b7"})

	h.set(batch("b7", domain.StatusCompleted, 9))
	eventuallyPhase(t, l, Phase{Kind: KindCompleted, ImportedCount: 9})
}

func TestRecoveryFailureStaysIdle(t *testing.T) {
	h := &fakeHistory{}
	h.fail(errors.New("unauthorized"))
	l := newLifecycle(t, h)

	assert.Eventually(t, func() bool { return h.count() >= 1 }, waitFor, tick)
	time.Sleep(5 * tick)
	assert.Equal(t, KindIdle, l.Phase().Kind)
}

// blockingHistory holds the recovery scan until released.
type blockingHistory struct {
	release chan struct{}
	batches []*domain.ImportBatch
}

func (b *blockingHistory) History(ctx context.Context) ([]*domain.ImportBatch, error) {
	select {
	case <-b.release:
		return b.batches, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRecoveryDoesNotOverrideActiveImport(t *testing.T) {
	h := &blockingHistory{
		release: make(chan struct{}),
		batches: []*domain.ImportBatch{batch("b1", domain.StatusRunning, 1)},
	}
	l := newLifecycle(t, h)

	l.StartFetching()
	close(h.release)
	time.Sleep(5 * tick)

	assert.Equal(t, Phase{Kind: KindFetching}, l.Phase())
}

func TestCloseStopsEverything(t *testing.T) {
	h := &blockingHistory{release: make(chan struct{})}
	l := New(h, logger.NewNop(), WithPollInterval(tick))

	l.StartEnriching("b1")
	l.Close()
	l.Close()

	l.Complete(3)
	assert.Equal(t, KindEnriching, l.Phase().Kind, "transitions after Close are ignored")
}

func TestUnsubscribe(t *testing.T) {
	l := newLifecycle(t, &fakeHistory{})

	calls := 0
	unsubscribe := l.Subscribe(func(Phase) { calls++ })
	l.StartFetching()
	unsubscribe()
	unsubscribe()
	l.StartSaving(1)

	assert.Equal(t, 1, calls)
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{Phase{}, "idle"},
		{Phase{Kind: KindFetching}, "fetching"},
		{Phase{Kind: KindSaving, Total: 3}, "saving(3)"},
		{Phase{Kind: KindEnriching, BatchID: "b1"}, "enriching(b1)"},
		{Phase{Kind: KindCompleted, ImportedCount: 7}, "completed(7)"},
		{Phase{Kind: KindFailed, Message: "x"}, "failed(x)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
	assert.True(t, Phase{Kind: KindFailed}.Terminal())
	assert.False(t, Phase{Kind: KindEnriching}.Terminal())
}
