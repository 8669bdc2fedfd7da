package models

import "fmt"

// JoinType is the SQL join operator used between two tables.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// JoinCondition links one column pair between two tables in a plan.
type JoinCondition struct {
	LeftTable   string   `json:"left_table"`
	LeftColumn  string   `json:"left_column"`
	RightTable  string   `json:"right_table"`
	RightColumn string   `json:"right_column"`
	JoinType    JoinType `json:"join_type"`
}

// SelectAll marks a table whose projection is alias.* rather than an
// explicit column list.
const SelectAll = "*"

// FilterClause is a fully resolved predicate ready for rendering.
type FilterClause struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// JoinPlan is the ordered join structure handed to the SQL generator.
// Tables are listed in discovery order; SelectColumns maps table name to an
// explicit column list or to [SelectAll].
type JoinPlan struct {
	Tables        []string            `json:"tables"`
	Joins         []JoinCondition     `json:"joins"`
	SelectColumns map[string][]string `json:"select_columns,omitempty"`
	Filters       []FilterClause      `json:"filters,omitempty"`
	Confidence    float64             `json:"confidence"`
}

// Validate checks the structural invariants of a plan: every table after the
// first must be reachable through a join condition that references a
// previously included table, no condition may reference an unknown table,
// and SelectColumns keys must be a subset of Tables.
func (p *JoinPlan) Validate() error {
	if len(p.Tables) == 0 {
		return fmt.Errorf("plan has no tables")
	}

	known := make(map[string]bool, len(p.Tables))
	for _, t := range p.Tables {
		known[t] = true
	}

	for i, j := range p.Joins {
		if !known[j.LeftTable] || !known[j.RightTable] {
			return fmt.Errorf("join %d references table outside plan: %s / %s", i, j.LeftTable, j.RightTable)
		}
	}

	// Walk tables in order; each one past the first must join to an
	// already-included table.
	included := map[string]bool{p.Tables[0]: true}
	for _, t := range p.Tables[1:] {
		linked := false
		for _, j := range p.Joins {
			if (j.RightTable == t && included[j.LeftTable]) || (j.LeftTable == t && included[j.RightTable]) {
				linked = true
				break
			}
		}
		if !linked {
			return fmt.Errorf("orphan table in plan: %s", t)
		}
		included[t] = true
	}

	for t := range p.SelectColumns {
		if !known[t] {
			return fmt.Errorf("select columns for table outside plan: %s", t)
		}
	}

	return nil
}
