package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/matjip/internal/logger"
)

type triggerResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Reload triggers a manual reload of the category map
func Reload(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.ReloadTrigger, "category reload")
}

// Reenrich triggers a sweep over every place still lacking an id or category
func Reenrich(d deps.Deps) http.HandlerFunc {
	return trigger(d, d.ReenrichTrigger, "re-enrichment")
}

func trigger(d deps.Deps, ch chan struct{}, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ch == nil {
			writeError(w, d.Logger, http.StatusNotFound, what+" is disabled")
			return
		}

		select {
		case ch <- struct{}{}:
			d.Logger.Info("manual trigger via endpoint",
				logger.String("job", what),
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusAccepted, triggerResponse{Triggered: true, Message: what + " triggered"})
		default:
			d.Logger.Warn("job already in progress",
				logger.String("job", what),
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusTooManyRequests, triggerResponse{Message: what + " already in progress"})
		}
	}
}
