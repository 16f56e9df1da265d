package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/matjip/internal/domain"
)

// UserHeader carries the caller identity on API requests.
const UserHeader = "X-User-ID"

// HistorySource returns the current user's import batches.
type HistorySource interface {
	History(ctx context.Context) ([]*domain.ImportBatch, error)
}

// HistoryResponse is the body of GET /api/imports.
type HistoryResponse struct {
	Batches []*domain.ImportBatch `json:"batches"`
}

// HTTPHistory talks to the import API of a running matjip server.
type HTTPHistory struct {
	BaseURL string
	UserID  string
	Client  *http.Client
}

func (h *HTTPHistory) History(ctx context.Context) ([]*domain.ImportBatch, error) {
	var body HistoryResponse
	if err := h.do(ctx, http.MethodGet, "/api/imports", nil, &body, http.StatusOK); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return body.Batches, nil
}

// SubmitNaver uploads a Naver export. The returned batch has an empty ID
// when nothing new was saved.
func (h *HTTPHistory) SubmitNaver(ctx context.Context, payload io.Reader) (*domain.ImportBatch, error) {
	var batch domain.ImportBatch
	if err := h.do(ctx, http.MethodPost, "/api/imports/naver", payload, &batch, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, fmt.Errorf("submit import: %w", err)
	}
	return &batch, nil
}

func (h *HTTPHistory) do(ctx context.Context, method, path string, body io.Reader, out any, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(h.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(UserHeader, h.UserID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if !accepted(resp.StatusCode, accept) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func accepted(code int, want []int) bool {
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}
