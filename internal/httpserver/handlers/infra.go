package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Labels *int   `json:"labels,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":      checkStore(r.Context(), d),
			"categories": checkCategories(d),
		}

		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

// overallStatus: store down is critical, a missing category map only degrades labels.
func overallStatus(components map[string]componentStatus) string {
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	if c, ok := components["categories"]; ok && !c.OK {
		return "degraded"
	}
	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreKind,
			Impact: "imports-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}

func checkCategories(d deps.Deps) componentStatus {
	if d.Categories == nil {
		return componentStatus{OK: true, Mode: "provider-labels"}
	}
	n := d.Categories.Len()
	if n == 0 {
		return componentStatus{
			OK:     false,
			Mode:   "mapped",
			Labels: &n,
			Impact: "provider-labels-stored-as-is",
			Error:  "category map not loaded",
		}
	}
	return componentStatus{OK: true, Mode: "mapped", Labels: &n}
}
