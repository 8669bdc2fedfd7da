package models

// Match strategies, ordered from cheapest to most permissive.
const (
	MatchStrategyExact   = "EXACT"   // Case-insensitive equality with the table name
	MatchStrategyAlias   = "ALIAS"   // Case-insensitive equality with a registered alias
	MatchStrategyPattern = "PATTERN" // Equality after stripping non-alphanumerics
	MatchStrategyFuzzy   = "FUZZY"   // Token-set similarity above the configured floor
)

// ResolvedEntity maps one business-language mention to a physical table.
// ResolvedColumn is set only when the mention carried a column hint.
type ResolvedEntity struct {
	Mention         string  `json:"mention"`
	ResolvedTable   string  `json:"resolved_table"`
	ResolvedColumn  string  `json:"resolved_column,omitempty"`
	MatchStrategy   string  `json:"match_strategy"`
	MatchConfidence float64 `json:"match_confidence"`
}

// ResolvedFilter pairs a filter mention with the physical column it matched.
// Column stays empty when the hint could not be matched; callers must not
// substitute a guessed name.
type ResolvedFilter struct {
	Hint       FilterMention `json:"hint"`
	Table      string        `json:"table,omitempty"`
	Column     string        `json:"column,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Resolution is the resolver's output for a single intent.
// Confidence is capped by the weakest mention so a poor match cannot be
// promoted to a confident result downstream.
type Resolution struct {
	Source     *ResolvedEntity  `json:"source,omitempty"`
	Target     *ResolvedEntity  `json:"target,omitempty"`
	Filters    []ResolvedFilter `json:"filters,omitempty"`
	Confidence float64          `json:"confidence"`
}
