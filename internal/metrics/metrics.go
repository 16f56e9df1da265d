package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "matjip"

// Record outcomes reported by the enrichment loop.
const (
	OutcomeSkipped     = "skipped"
	OutcomeResolved    = "resolved"
	OutcomeCategorized = "categorized"
	OutcomeUnmatched   = "unmatched"
	OutcomeFailed      = "failed"
)

// Metrics groups the service collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	records          *prometheus.CounterVec
	batches          *prometheus.CounterVec
	imports          *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerCache    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_records_total",
			Help:      "Records processed by the enrichment loop, by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_batches_total",
			Help:      "Import batches that reached a terminal enrichment status.",
		}, []string{"status"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_bookmarks_total",
			Help:      "Bookmarks received by imports, by result.",
		}, []string{"result"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Place-search provider requests, by endpoint and result.",
		}, []string{"endpoint", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Place-search provider request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		providerCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cache_total",
			Help:      "Place-search response cache lookups, by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.records, m.batches, m.imports, m.providerRequests, m.providerLatency, m.providerCache,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BatchFinished(status string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
}

// Imported counts bookmarks by import result (imported, skipped, invalid).
func (m *Metrics) Imported(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imports.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) ProviderRequest(endpoint, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(endpoint, result).Inc()
	m.providerLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) ProviderCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.providerCache.WithLabelValues(result).Inc()
}
