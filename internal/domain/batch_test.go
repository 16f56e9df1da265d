package domain

import (
	"encoding/json"
	"testing"
)

func TestEnrichmentStatusValid(t *testing.T) {
	tests := []struct {
		status EnrichmentStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusRunning, true},
		{StatusCompleted, true},
		{StatusFailed, true},
		{"", false},
		{"done", false},
	}
	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("%q.Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestImportBatchDecodeRejectsUnknownStatus(t *testing.T) {
	var b ImportBatch
	if err := json.Unmarshal([]byte(`{"id":"b1","enrichmentStatus":"running"}`), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.EnrichmentStatus != StatusRunning {
		t.Errorf("status = %q, want running", b.EnrichmentStatus)
	}

	if err := json.Unmarshal([]byte(`{"id":"b1","enrichmentStatus":"exploded"}`), &b); err == nil {
		t.Error("expected an error for an unknown status")
	}
}

func TestImportBatchApplyClamps(t *testing.T) {
	b := &ImportBatch{ImportedCount: 2}
	b.Apply(BatchCounts{Enriched: 5, Categorized: -1})
	if b.EnrichedCount != 2 || b.CategorizedCount != 0 {
		t.Errorf("Apply() = %d/%d, want 2/0", b.EnrichedCount, b.CategorizedCount)
	}
}
