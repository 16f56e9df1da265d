package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnrichmentStatus is the durable progress of an import batch.
type EnrichmentStatus string

const (
	StatusPending   EnrichmentStatus = "pending"
	StatusRunning   EnrichmentStatus = "running"
	StatusCompleted EnrichmentStatus = "completed"
	StatusFailed    EnrichmentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s EnrichmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// UnmarshalJSON rejects statuses outside the known set.
func (s *EnrichmentStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if !EnrichmentStatus(v).Valid() {
		return fmt.Errorf("unknown enrichment status %q", v)
	}
	*s = EnrichmentStatus(v)
	return nil
}

// Terminal reports whether no further enrichment is expected.
func (s EnrichmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ImportBatch is one bulk import performed by one user.
// EnrichedCount and CategorizedCount never exceed ImportedCount.
type ImportBatch struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Source string `json:"source"`

	ImportedCount    int `json:"importedCount"`
	SkippedCount     int `json:"skippedCount"`
	InvalidCount     int `json:"invalidCount"`
	EnrichedCount    int `json:"enrichedCount"`
	CategorizedCount int `json:"categorizedCount"`

	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// BatchCounts is derived from current store state for a batch.
type BatchCounts struct {
	// Enriched counts places whose id was resolved.
	Enriched int
	// Categorized counts places with a non-empty category.
	Categorized int
}

// Apply writes counts into the batch, clamped to ImportedCount.
func (b *ImportBatch) Apply(c BatchCounts) {
	b.EnrichedCount = clamp(c.Enriched, b.ImportedCount)
	b.CategorizedCount = clamp(c.Categorized, b.ImportedCount)
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
