package categories

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "categories.yaml")

	yamlContent := `---
- Korean:
    - 한식
    - 냉면
- Cafe:
    - 카페
    - 디저트카페
`

	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	mapper, err := NewLoader(yamlPath).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if mapper.Len() != 4 {
		t.Errorf("Load() indexed %d labels, want 4", mapper.Len())
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/categories.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not a list", "Korean: [한식]"},
		{"empty", "---\n"},
		{"conflicting label", "- Korean: [한식]\n- Other: [한식]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse(%q) should return error", tt.yaml)
			}
		})
	}
}
