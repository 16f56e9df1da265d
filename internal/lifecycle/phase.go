// Package lifecycle tracks one client's view of an import as it moves
// through fetch, save and enrichment, and recovers it after a restart.
package lifecycle

import "fmt"

type Kind string

const (
	KindIdle      Kind = "idle"
	KindFetching  Kind = "fetching"
	KindSaving    Kind = "saving"
	KindEnriching Kind = "enriching"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// Phase is the current state. Only the field matching Kind is meaningful.
type Phase struct {
	Kind          Kind   `json:"kind"`
	Total         int    `json:"total,omitempty"`         // saving
	BatchID       string `json:"batchId,omitempty"`       // enriching
	ImportedCount int    `json:"importedCount,omitempty"` // completed
	Message       string `json:"message,omitempty"`       // failed
}

// Terminal reports whether only Dismiss or a new import can leave the phase.
func (p Phase) Terminal() bool {
	return p.Kind == KindCompleted || p.Kind == KindFailed
}

func (p Phase) String() string {
	switch p.Kind {
	case KindSaving:
		return fmt.Sprintf("saving(%d)", p.Total)
	case KindEnriching:
		return fmt.Sprintf("enriching(%s)", p.BatchID)
	case KindCompleted:
		return fmt.Sprintf("completed(%d)", p.ImportedCount)
	case KindFailed:
		return fmt.Sprintf("failed(%s)", p.Message)
	case "":
		return string(KindIdle)
	}
	return string(p.Kind)
}
