package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
)

type buildInfo struct {
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

type healthzResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Store         string    `json:"store"`
	CategoryMap   bool      `json:"category_map"`
	Build         buildInfo `json:"build"`
}

// Healthz is liveness only. It reports configuration, never backend state;
// /readyz pings the store.
func Healthz(d deps.Deps) http.HandlerFunc {
	build := buildInfo{
		Version:   d.Version,
		Commit:    d.Commit,
		BuildDate: d.BuildDate,
		GoVersion: d.GoVersion,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Logger, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(d.StartTime).Seconds(),
			Store:         d.StoreKind,
			CategoryMap:   d.Categories != nil,
			Build:         build,
		})
	}
}
