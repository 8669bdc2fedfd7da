package models

// Archetype is the canonical shape of a reconciliation query.
type Archetype string

const (
	ArchetypeMatched         Archetype = "MATCHED"          // Records present in both tables
	ArchetypeUnmatchedSource Archetype = "UNMATCHED_SOURCE" // Records in source missing from target
	ArchetypeUnmatchedTarget Archetype = "UNMATCHED_TARGET" // Records in target missing from source
	ArchetypeFiltered        Archetype = "FILTERED"         // Predicate-driven selection
	ArchetypeInactiveCount   Archetype = "INACTIVE_COUNT"   // Aggregate count over a status predicate
)

// Valid reports whether a is one of the five known archetypes.
func (a Archetype) Valid() bool {
	switch a {
	case ArchetypeMatched, ArchetypeUnmatchedSource, ArchetypeUnmatchedTarget,
		ArchetypeFiltered, ArchetypeInactiveCount:
		return true
	}
	return false
}

// AntiJoin reports whether the archetype is rendered as a logical anti-join
// (LEFT JOIN ... WHERE right.key IS NULL).
func (a Archetype) AntiJoin() bool {
	return a == ArchetypeUnmatchedSource || a == ArchetypeUnmatchedTarget
}

// FilterMention is a filter extracted from the definition text.
// ColumnHint is a semantic hint ("status", "planner"), never a physical
// column name; the resolver matches it against the real column list.
type FilterMention struct {
	ColumnHint string `json:"column_hint"`
	Operator   string `json:"operator"` // "=", "!=", "<", "<=", ">", ">=", "LIKE", "NOT LIKE"
	Value      string `json:"value"`
}

// QueryIntent is the typed output of intent classification.
// Immutable once produced; consumed by the resolver.
type QueryIntent struct {
	RawText              string          `json:"raw_text"`
	Archetype            Archetype       `json:"archetype"`
	SourceMention        string          `json:"source_mention,omitempty"`
	TargetMention        string          `json:"target_mention,omitempty"`
	FilterMentions       []FilterMention `json:"filter_mentions,omitempty"`
	ExtractionConfidence float64         `json:"extraction_confidence"`
}
