package categories

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// labelSeparator splits provider labels such as "음식점 > 한식 > 냉면".
const labelSeparator = ">"

// Mapper rewrites provider category labels to display categories.
type Mapper struct {
	byLabel map[string]string // provider segment -> category
}

// NewMapper indexes config. A label claimed by two categories is an error.
func NewMapper(config Config) (*Mapper, error) {
	m := &Mapper{byLabel: make(map[string]string)}

	for _, group := range config {
		for category, labels := range group {
			category = strings.TrimSpace(category)
			if category == "" {
				continue
			}
			for _, label := range labels {
				label = strings.TrimSpace(label)
				if label == "" {
					continue
				}
				if prev, ok := m.byLabel[label]; ok && prev != category {
					return nil, fmt.Errorf("label %q mapped to both %q and %q", label, prev, category)
				}
				m.byLabel[label] = category
			}
		}
	}

	if len(m.byLabel) == 0 {
		return nil, fmt.Errorf("no category labels found in config")
	}
	return m, nil
}

// Map walks the label segments from the most specific one and returns the
// first configured category. Unknown labels are returned unchanged.
func (m *Mapper) Map(label string) string {
	if m == nil || label == "" {
		return label
	}
	segments := strings.Split(label, labelSeparator)
	for i := len(segments) - 1; i >= 0; i-- {
		if category, ok := m.byLabel[strings.TrimSpace(segments[i])]; ok {
			return category
		}
	}
	return label
}

// Len returns the number of indexed labels
func (m *Mapper) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byLabel)
}

// Holder serves the current Mapper and lets a reloader swap it.
// A Holder with nothing stored passes labels through.
type Holder struct {
	current atomic.Pointer[Mapper]
}

func (h *Holder) Store(m *Mapper) { h.current.Store(m) }

func (h *Holder) Map(label string) string {
	return h.current.Load().Map(label)
}

func (h *Holder) Len() int {
	return h.current.Load().Len()
}
