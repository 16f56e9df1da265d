package kakao

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/geo"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/places"
)

const testBaseURL = "https://kakao.test"

const keywordResponse = `{
  "meta": {"total_count": 2, "pageable_count": 2, "is_end": true},
  "documents": [
    {
      "id": "26338954",
      "place_name": "을지면옥",
      "category_name": "음식점 > 한식 > 냉면",
      "category_group_code": "FD6",
      "address_name": "서울 중구 입정동 177-1",
      "road_address_name": "서울 중구 충무로14길 2-1",
      "place_url": "http://place.map.kakao.com/26338954",
      "x": "126.991386",
      "y": "37.566389",
      "distance": "35"
    },
    {
      "id": "11111",
      "place_name": "을지면옥 2호점",
      "category_name": "음식점 > 한식",
      "place_url": "http://place.map.kakao.com/11111",
      "x": "126.9920",
      "y": "37.5670",
      "distance": ""
    }
  ]
}`

func newTestClient(t *testing.T, mutate ...func(*Config)) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	cfg := Config{
		APIKey:            "test-key",
		BaseURL:           testBaseURL,
		Timeout:           time.Second,
		CacheTTL:          -1,
		RequestsPerSecond: 1000,
		HTTPClient:        &http.Client{Transport: transport},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, logger.NewNop(), nil)
	require.NoError(t, err)
	return c, transport
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, logger.NewNop(), nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSearchByKeyword_Success(t *testing.T) {
	c, transport := newTestClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "KakaoAK test-key", req.Header.Get("Authorization"))
			q := req.URL.Query()
			assert.Equal(t, "을지면옥", q.Get("query"))
			assert.Equal(t, "126.9913", q.Get("x"))
			assert.Equal(t, "37.5663", q.Get("y"))
			assert.Equal(t, "300", q.Get("radius"))
			assert.Equal(t, "distance", q.Get("sort"))
			assert.Equal(t, "5", q.Get("size"))
			return httpmock.NewStringResponse(http.StatusOK, keywordResponse), nil
		})

	got, err := c.SearchByKeyword(context.Background(), places.KeywordQuery{
		Query:        "을지면옥",
		Center:       geo.Point{Lat: 37.5663, Lng: 126.9913},
		RadiusMeters: 300,
		Sort:         places.SortByDistance,
		Limit:        5,
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "26338954", got[0].ID)
	assert.Equal(t, "을지면옥", got[0].Name)
	assert.Equal(t, "음식점 > 한식 > 냉면", got[0].CategoryLabel)
	assert.Equal(t, "http://place.map.kakao.com/26338954", got[0].DetailURL)
	assert.InDelta(t, 37.566389, got[0].Lat, 1e-9)
	assert.InDelta(t, 126.991386, got[0].Lng, 1e-9)
	assert.InDelta(t, 35, got[0].DistanceMeters, 0)
	assert.InDelta(t, 0, got[1].DistanceMeters, 0)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSearchByCategory_SendsGroupCode(t *testing.T) {
	c, transport := newTestClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+categoryPath,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, places.CategoryCafe, req.URL.Query().Get("category_group_code"))
			return httpmock.NewStringResponse(http.StatusOK, `{"meta":{},"documents":[]}`), nil
		})

	got, err := c.SearchByCategory(context.Background(), places.CategoryQuery{
		Code:         places.CategoryCafe,
		Center:       geo.Point{Lat: 37.5, Lng: 127.0},
		RadiusMeters: 50,
		Limit:        1,
	})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errorType":"AccessDeniedError","message":"wrong appKey"}`, "wrong appKey"},
		{"rate limited", http.StatusTooManyRequests, `not json`, "Too Many Requests"},
		{"server error", http.StatusInternalServerError, ``, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
				httpmock.NewStringResponder(tt.statusCode, tt.body))

			got, err := c.SearchByKeyword(context.Background(), places.KeywordQuery{Query: "x"})

			require.Error(t, err)
			assert.Nil(t, got)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.statusCode, se.Code)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSearch_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"documents": [`},
		{"bad coordinate", `{"documents":[{"id":"1","place_name":"a","x":"east","y":"37.5"}]}`},
		{"missing id", `{"documents":[{"place_name":"a","x":"127","y":"37.5"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			_, err := c.SearchByKeyword(context.Background(), places.KeywordQuery{Query: "a"})
			assert.Error(t, err)
		})
	}
}

func TestSearch_TransportError(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := c.SearchByKeyword(context.Background(), places.KeywordQuery{Query: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSearch_Timeout(t *testing.T) {
	c, transport := newTestClient(t, func(cfg *Config) {
		cfg.Timeout = 20 * time.Millisecond
	})
	transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
		func(req *http.Request) (*http.Response, error) {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Second):
				return httpmock.NewStringResponse(http.StatusOK, keywordResponse), nil
			}
		})

	_, err := c.SearchByKeyword(context.Background(), places.KeywordQuery{Query: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearch_CachesIdenticalQueries(t *testing.T) {
	c, transport := newTestClient(t, func(cfg *Config) {
		cfg.CacheTTL = time.Minute
	})
	transport.RegisterResponder(http.MethodGet, testBaseURL+keywordPath,
		httpmock.NewStringResponder(http.StatusOK, keywordResponse))

	q := places.KeywordQuery{Query: "을지면옥", Center: geo.Point{Lat: 37.5, Lng: 127}, RadiusMeters: 300, Limit: 5}

	first, err := c.SearchByKeyword(context.Background(), q)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := c.SearchByKeyword(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, transport.GetTotalCallCount())
	assert.Equal(t, "을지면옥", second[0].Name)
}

func TestBaseParamsClampsLimits(t *testing.T) {
	c, _ := newTestClient(t)
	params := c.baseParams(37.5, 127.0, 50000, "", 40)

	assert.Equal(t, "20000", params.Get("radius"))
	assert.Equal(t, "15", params.Get("size"))
	assert.Equal(t, places.SortByDistance, params.Get("sort"))
}
