// Package kakao implements places.Searcher on top of the Kakao Local REST API.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
	"github.com/MrSnakeDoc/matjip/internal/places"
	"github.com/MrSnakeDoc/matjip/internal/utils"
)

const (
	DefaultBaseURL = "https://dapi.kakao.com"

	keywordPath  = "/v2/local/search/keyword.json"
	categoryPath = "/v2/local/search/category.json"

	// API limits
	maxRadiusMeters = 20000
	maxPageSize     = 15

	// maxBodyBytes caps the decoded response size.
	maxBodyBytes = 1 << 20
)

// ErrMissingAPIKey is returned by New when no REST key is configured.
var ErrMissingAPIKey = errors.New("kakao: REST API key is required")

// Config for the Kakao client. Zero values fall back to DefaultConfig.
type Config struct {
	APIKey  string
	BaseURL string

	// Timeout bounds each request, including rate-limit wait.
	Timeout time.Duration

	// CacheTTL keeps identical searches for a while. Negative disables caching.
	CacheTTL time.Duration

	// RequestsPerSecond is the sustained request rate. Burst is the same value.
	RequestsPerSecond float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           5 * time.Second,
		CacheTTL:          10 * time.Minute,
		RequestsPerSecond: 10,
	}
}

// Client talks to the Kakao Local search endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  logger.Logger
}

var _ places.Searcher = (*Client)(nil)

// New creates a Kakao client.
func New(cfg Config, log logger.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		metrics: m,
		logger:  log.With(logger.Component("kakao")),
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}

	c.logger.Info("kakao client initialized",
		logger.String("base_url", cfg.BaseURL),
		logger.Duration("timeout", cfg.Timeout),
		logger.Duration("cache_ttl", cfg.CacheTTL),
		logger.Float64("rps", cfg.RequestsPerSecond))

	return c, nil
}

// SearchByKeyword queries places by free text around a point.
func (c *Client) SearchByKeyword(ctx context.Context, q places.KeywordQuery) ([]places.Candidate, error) {
	if q.Query == "" {
		return nil, fmt.Errorf("kakao: empty keyword query")
	}
	params := c.baseParams(q.Center.Lat, q.Center.Lng, q.RadiusMeters, q.Sort, q.Limit)
	params.Set("query", q.Query)
	return c.search(ctx, "keyword", keywordPath, params)
}

// SearchByCategory queries places of a category group around a point.
func (c *Client) SearchByCategory(ctx context.Context, q places.CategoryQuery) ([]places.Candidate, error) {
	if q.Code == "" {
		return nil, fmt.Errorf("kakao: empty category code")
	}
	params := c.baseParams(q.Center.Lat, q.Center.Lng, q.RadiusMeters, q.Sort, q.Limit)
	params.Set("category_group_code", q.Code)
	return c.search(ctx, "category", categoryPath, params)
}

// baseParams builds the shared query string. Kakao uses x for longitude
// and y for latitude.
func (c *Client) baseParams(lat, lng float64, radius int, sort string, limit int) url.Values {
	params := url.Values{}
	params.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	if radius > 0 {
		if radius > maxRadiusMeters {
			radius = maxRadiusMeters
		}
		params.Set("radius", strconv.Itoa(radius))
	}
	if sort == "" {
		sort = places.SortByDistance
	}
	params.Set("sort", sort)
	if limit > 0 {
		if limit > maxPageSize {
			limit = maxPageSize
		}
		params.Set("size", strconv.Itoa(limit))
	}
	return params
}

func (c *Client) search(ctx context.Context, endpoint, path string, params url.Values) ([]places.Candidate, error) {
	cacheKey := endpoint + "?" + params.Encode()
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if res, ok := cached.([]places.Candidate); ok {
				c.metrics.ProviderCache(true)
				return cloneCandidates(res), nil
			}
		}
		c.metrics.ProviderCache(false)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := c.do(reqCtx, path, params)
	took := time.Since(start)
	if err != nil {
		c.metrics.ProviderRequest(endpoint, "error", took)
		c.logger.Debug("kakao request failed",
			logger.String("endpoint", endpoint),
			logger.Duration("took", took),
			logger.Error(err))
		return nil, err
	}
	c.metrics.ProviderRequest(endpoint, "ok", took)

	if c.cache != nil {
		c.cache.Set(cacheKey, cloneCandidates(res), cache.DefaultExpiration)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]places.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("kakao: rate limit wait: %w", err)
	}

	endpoint := c.cfg.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kakao: build request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kakao: request %s: %w", path, err)
	}
	defer utils.Close(resp.Body, c.logger)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, &StatusError{Code: resp.StatusCode, Message: apiErr.Message}
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("kakao: decode %s: %w", path, err)
	}

	out := make([]places.Candidate, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		cand, err := doc.candidate()
		if err != nil {
			return nil, fmt.Errorf("kakao: document %q: %w", doc.ID, err)
		}
		out = append(out, cand)
	}
	return out, nil
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kakao: status %d: %s", e.Code, e.Message)
}

func cloneCandidates(in []places.Candidate) []places.Candidate {
	out := make([]places.Candidate, len(in))
	copy(out, in)
	return out
}
