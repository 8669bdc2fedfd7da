// Package llm provides the optional natural-language extraction capability.
// The engine works entirely without it; when configured, the classifier
// merges its output with the rule-based pass.
package llm

import (
	"context"
)

// Entity roles in an extraction.
const (
	RoleSource = "source"
	RoleTarget = "target"
)

// ExtractedEntity is one table mention found in the definition text.
type ExtractedEntity struct {
	Role       string  `json:"role"` // "source" or "target"
	Mention    string  `json:"mention"`
	Confidence float64 `json:"confidence"`
}

// ExtractedFilter is one filter predicate found in the definition text.
// ColumnHint is semantic ("status"), never a physical column name.
type ExtractedFilter struct {
	ColumnHint string  `json:"column_hint"`
	Operator   string  `json:"operator"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the structured result of one extraction call.
type Extraction struct {
	Archetype  string            `json:"archetype,omitempty"` // one of the five archetypes, or empty
	Entities   []ExtractedEntity `json:"entities,omitempty"`
	Filters    []ExtractedFilter `json:"filters,omitempty"`
	Confidence float64           `json:"confidence"`
}

// Extractor is the injected extraction capability. Implementations must be
// safe for concurrent use. Absence of an Extractor is never an error; the
// rule-based classifier carries the load alone.
type Extractor interface {
	// Extract returns candidate entities and filters for a definition text.
	Extract(ctx context.Context, text string) (*Extraction, error)
}
