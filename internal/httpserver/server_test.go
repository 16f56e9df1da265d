package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/enrich"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/mw"
	"github.com/MrSnakeDoc/matjip/internal/importer"
	"github.com/MrSnakeDoc/matjip/internal/kakao"
	"github.com/MrSnakeDoc/matjip/internal/lifecycle"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/matcher"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
	"github.com/MrSnakeDoc/matjip/internal/scheduler"
	"github.com/MrSnakeDoc/matjip/internal/store/memory"
)

const kakaoURL = "https://kakao.test"

const keywordBody = `{
  "meta": {"total_count": 1, "is_end": true},
  "documents": [{
    "id": "26338954",
    "place_name": "을지면옥",
    "category_name": "음식점 > 한식 > 냉면",
    "place_url": "http://place.map.kakao.com/26338954",
    "x": "126.991386",
    "y": "37.566389",
    "distance": "0"
  }]
}`

const naverBody = `{"bookmarkList": [
  {"name": "을지면옥", "px": 126.991386, "py": 37.566389, "address": "서울 중구 충무로14길 2-1"},
  {"name": "", "px": 126.99, "py": 37.56}
]}`

type testEnv struct {
	handler  http.Handler
	store    *memory.Store
	reenrich chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, kakaoURL+"/v2/local/search/keyword.json",
		httpmock.NewStringResponder(http.StatusOK, keywordBody))
	transport.RegisterResponder(http.MethodGet, kakaoURL+"/v2/local/search/category.json",
		httpmock.NewStringResponder(http.StatusOK, `{"meta": {}, "documents": []}`))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	client, err := kakao.New(kakao.Config{
		APIKey:            "test-key",
		BaseURL:           kakaoURL,
		Timeout:           time.Second,
		CacheTTL:          -1,
		RequestsPerSecond: 1000,
		HTTPClient:        &http.Client{Transport: transport},
	}, log, m)
	require.NoError(t, err)

	st := memory.New()
	orch := enrich.New(st, matcher.NewResolver(client, log), log, enrich.WithThrottle(0), enrich.WithMetrics(m))
	runner := scheduler.NewEnrichmentRunner(context.Background(), st, orch, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
	})

	env := &testEnv{store: st, reenrich: make(chan struct{}, 1)}
	env.handler = NewRouter(log, deps.Deps{
		Logger:          log,
		StartTime:       time.Now(),
		StoreKind:       "memory",
		Store:           st,
		Importer:        importer.New(st, m, log),
		Runner:          runner,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReenrichTrigger: env.reenrich,
		ImportRate:      100,
		ImportBurst:     100,
		MaxBodySize:     1 << 20,
	})
	return env
}

func (e *testEnv) do(method, path, user, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if user != "" {
		r.Header.Set(mw.UserHeader, user)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/imports/naver", "", naverBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/imports/naver", "u1", naverBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	batch := decode[domain.ImportBatch](t, rec)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 1, batch.ImportedCount)
	assert.Equal(t, 1, batch.InvalidCount)

	// Enrichment finishes in the background
	assert.Eventually(t, func() bool {
		history := decode[lifecycle.HistoryResponse](t, env.do(http.MethodGet, "/api/imports", "u1", ""))
		return len(history.Batches) == 1 && history.Batches[0].EnrichmentStatus == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	saved, err := env.store.ListPlaces(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "26338954", saved[0].ID.String())
	assert.Equal(t, "음식점 > 한식 > 냉면", saved[0].Category)

	history := decode[lifecycle.HistoryResponse](t, env.do(http.MethodGet, "/api/imports", "u1", ""))
	assert.Equal(t, 1, history.Batches[0].EnrichedCount)
	assert.Equal(t, 1, history.Batches[0].CategorizedCount)

	// Same export again: nothing new
	rec = env.do(http.MethodPost, "/api/imports/naver", "u1", naverBody)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[domain.ImportBatch](t, rec)
	assert.Empty(t, again.ID)
	assert.Equal(t, 1, again.SkippedCount)

	// Undo
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/imports/"+batch.ID, "u2", "").Code)
	rec = env.do(http.MethodDelete, "/api/imports/"+batch.ID, "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["deleted"])

	history = decode[lifecycle.HistoryResponse](t, env.do(http.MethodGet, "/api/imports", "u1", ""))
	assert.Empty(t, history.Batches)
}

func TestImportRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/imports/naver", "u1", "<html>")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	health := decode[map[string]any](t, env.do(http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "memory", health["store"])
	assert.Equal(t, false, health["category_map"])
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "", "").Code)

	infra := decode[map[string]any](t, env.do(http.MethodGet, "/infra", "", ""))
	assert.Equal(t, "ok", infra["status"])

	rec := env.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggers(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/reload", "", "").Code, "no category map configured")

	assert.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/imports/reenrich", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/api/imports/reenrich", "", "").Code)
	<-env.reenrich
}
