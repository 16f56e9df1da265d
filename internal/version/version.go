// Package version holds build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"  // -X .../version.Version=v0.3.0
	Commit    = "none" // short sha
	BuildDate = time.Now().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// String renders the metadata on one line for startup logs.
func String() string {
	return fmt.Sprintf("matjip %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
