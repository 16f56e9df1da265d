package lifecycle

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/domain"
)

func TestHTTPHistory(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://matjip.local/api/imports",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(UserHeader) != "u1" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, HistoryResponse{
				Batches: []*domain.ImportBatch{
					{ID: "b1", ImportedCount: 3, EnrichmentStatus: domain.StatusRunning},
				},
			})
		})

	h := &HTTPHistory{
		BaseURL: "http://matjip.local/",
		UserID:  "u1",
		Client:  &http.Client{Transport: transport},
	}
	batches, err := h.History(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "b1", batches[0].ID)
	assert.Equal(t, domain.StatusRunning, batches[0].EnrichmentStatus)
}

func TestHTTPHistoryErrors(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://bad-status/api/imports",
		httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))
	transport.RegisterResponder(http.MethodGet, "http://bad-body/api/imports",
		httpmock.NewStringResponder(http.StatusOK, "{"))

	for _, base := range []string{"http://bad-status", "http://bad-body", "http://unregistered"} {
		t.Run(base, func(t *testing.T) {
			h := &HTTPHistory{BaseURL: base, UserID: "u1", Client: &http.Client{Transport: transport}}
			_, err := h.History(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHTTPHistorySubmitNaver(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, "http://matjip.local/api/imports/naver",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Content-Type") != "application/json" {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusAccepted, domain.ImportBatch{
				ID:               "b2",
				ImportedCount:    2,
				EnrichmentStatus: domain.StatusRunning,
			})
		})

	h := &HTTPHistory{BaseURL: "http://matjip.local", UserID: "u1", Client: &http.Client{Transport: transport}}
	batch, err := h.SubmitNaver(context.Background(), strings.NewReader(`{"bookmarkList":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "b2", batch.ID)
	assert.Equal(t, 2, batch.ImportedCount)

	transport.RegisterResponder(http.MethodPost, "http://rejected/api/imports/naver",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"invalid naver payload"}`))
	h.BaseURL = "http://rejected"
	_, err = h.SubmitNaver(context.Background(), strings.NewReader("{}"))
	assert.ErrorContains(t, err, "unexpected status 400")
}
