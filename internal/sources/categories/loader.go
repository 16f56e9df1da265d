package categories

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the category map file
type Loader struct {
	filePath string
}

// NewLoader creates a new category map loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the category map, then builds a Mapper from it
func (l *Loader) Load() (*Mapper, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Mapper from raw YAML
func Parse(data []byte) (*Mapper, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse category yaml: %w", err)
	}
	return NewMapper(config)
}
