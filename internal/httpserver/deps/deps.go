package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/matjip/internal/importer"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/sources/categories"
	"github.com/MrSnakeDoc/matjip/internal/store"
)

// Spawner starts background enrichment of a persisted batch.
type Spawner interface {
	Spawn(ctx context.Context, batchID string) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access ops endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	StoreKind  string             // backend name reported by /healthz and /infra
	Store      store.Store        // places and batches
	Importer   *importer.Importer // import and undo
	Runner     Spawner            // background enrichment
	Categories *categories.Holder // nil when no category file is configured
	Metrics    http.Handler       // prometheus exposition

	ReloadTrigger   chan struct{} // manual category reload (nil if category map disabled)
	ReenrichTrigger chan struct{} // manual re-enrichment sweep

	ImportRate  float64 // import requests per second, per client IP
	ImportBurst int
	MaxBodySize int64 // import payload limit in bytes
}
