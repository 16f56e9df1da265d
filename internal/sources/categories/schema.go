package categories

// Group maps one display category to the provider labels folded into it.
// The YAML structure is: - CategoryName: [label, label, ...]
type Group map[string][]string

// Config is the root structure for the category map file
type Config []Group
