// Package joinpath infers ordered join plans from knowledge graph edges.
// Discovery follows request order, not shortest path, so the same request
// always yields the same plan.
package joinpath

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/apperrors"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/models"
)

// PathError reports the table pair that could not be connected.
type PathError struct {
	FromTable string
	ToTable   string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("no join path between %s and %s", e.FromTable, e.ToTable)
}

func (e *PathError) Unwrap() error {
	return apperrors.ErrNoJoinPath
}

// Planner builds join plans from resolved tables.
type Planner struct {
	logger *zap.Logger
}

// New creates a planner.
func New(logger *zap.Logger) *Planner {
	return &Planner{logger: logger.Named("joinpath")}
}

// Build produces a JoinPlan over the resolved tables in request order.
// Single-table plans carry no joins. For two tables, the relationship must
// be direct; for more, each table must connect to an already-included one
// either directly or through a relationship with any earlier table. When no
// relationship can be found, the planner returns a PathError rather than
// guessing one.
//
// UNMATCHED_* archetypes receive LEFT join metadata; the SQL generator
// renders the IS NULL anti-join predicate from the archetype.
func (p *Planner) Build(tables []string, archetype models.Archetype, graph *kg.Graph) (*models.JoinPlan, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to plan")
	}

	joinType := models.JoinInner
	if archetype.AntiJoin() {
		joinType = models.JoinLeft
	}

	plan := &models.JoinPlan{
		Tables:        append([]string(nil), tables...),
		SelectColumns: make(map[string][]string, len(tables)),
		Confidence:    1.0,
	}
	for _, t := range tables {
		plan.SelectColumns[t] = []string{models.SelectAll}
	}

	for i := 1; i < len(tables); i++ {
		edge, from, err := p.connect(tables[i], tables[:i], graph)
		if err != nil {
			return nil, err
		}

		p.logger.Debug("Join edge selected",
			zap.String("from", from),
			zap.String("to", tables[i]),
			zap.Float64("confidence", edge.Confidence))

		plan.Joins = append(plan.Joins, models.JoinCondition{
			LeftTable:   edge.SourceTable,
			LeftColumn:  edge.SourceColumn,
			RightTable:  edge.TargetTable,
			RightColumn: edge.TargetColumn,
			JoinType:    joinType,
		})
		if edge.Confidence < plan.Confidence {
			plan.Confidence = edge.Confidence
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("planned join is invalid: %w", err)
	}
	return plan, nil
}

// connect finds the edge attaching next to the tables already in the plan.
// The immediate predecessor is tried first (request order matters); the
// remaining included tables serve as two-hop anchors.
func (p *Planner) connect(next string, included []string, graph *kg.Graph) (kg.RelationshipEdge, string, error) {
	predecessor := included[len(included)-1]
	if edge, ok := bestEdge(graph.FindRelationship(predecessor, next)); ok {
		return edge, predecessor, nil
	}

	for _, anchor := range included[:len(included)-1] {
		if edge, ok := bestEdge(graph.FindRelationship(anchor, next)); ok {
			return edge, anchor, nil
		}
	}

	return kg.RelationshipEdge{}, "", &PathError{FromTable: predecessor, ToTable: next}
}

// bestEdge picks the highest-confidence edge; equal scores go to the most
// recently added, which is why the scan keeps the last best.
func bestEdge(edges []kg.RelationshipEdge) (kg.RelationshipEdge, bool) {
	if len(edges) == 0 {
		return kg.RelationshipEdge{}, false
	}

	best := edges[0]
	for _, e := range edges[1:] {
		if e.Confidence >= best.Confidence {
			best = e
		}
	}
	return best, true
}
