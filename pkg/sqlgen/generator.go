package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/models"
)

// Generator renders a join plan into a single SELECT statement for one
// reconciliation archetype.
//
// Anti-join archetypes (UNMATCHED_SOURCE, UNMATCHED_TARGET) are rendered as
// LEFT JOIN with an IS NULL predicate on the excluded side's join key, never
// as NOT IN. The excluded side is always the final table of the plan; the
// caller orders the plan kept-side-first.
type Generator struct {
	limit  int
	logger *zap.Logger
}

// New creates a Generator. limit caps row counts on record-returning
// archetypes; COUNT queries are never limited.
func New(limit int, logger *zap.Logger) *Generator {
	return &Generator{
		limit:  limit,
		logger: logger.Named("sqlgen"),
	}
}

// Generate renders the archetype SQL for a plan in the given dialect.
func (g *Generator) Generate(archetype models.Archetype, plan *models.JoinPlan, dialectName models.DialectName) (string, error) {
	if !archetype.Valid() {
		return "", fmt.Errorf("unknown archetype %q", archetype)
	}
	d, err := ForDialect(dialectName)
	if err != nil {
		return "", err
	}
	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("invalid join plan: %w", err)
	}

	aliases := make(map[string]string, len(plan.Tables))
	for i, t := range plan.Tables {
		aliases[t] = fmt.Sprintf("t%d", i+1)
	}

	for _, f := range plan.Filters {
		if err := screenValue(f.Value); err != nil {
			return "", err
		}
	}

	var sqlText string
	switch archetype {
	case models.ArchetypeMatched, models.ArchetypeFiltered:
		sqlText, err = g.renderSelect(plan, aliases, d, nil)
	case models.ArchetypeUnmatchedSource, models.ArchetypeUnmatchedTarget:
		sqlText, err = g.renderAntiJoin(plan, aliases, d)
	case models.ArchetypeInactiveCount:
		sqlText, err = g.renderCount(plan, aliases, d)
	}
	if err != nil {
		return "", err
	}

	normalized, err := NormalizeStatement(sqlText)
	if err != nil {
		return "", err
	}

	g.logger.Debug("generated sql",
		zap.String("archetype", string(archetype)),
		zap.String("dialect", string(dialectName)),
		zap.Int("tables", len(plan.Tables)))
	return normalized, nil
}

// renderSelect emits a plain projection query over every plan table.
func (g *Generator) renderSelect(plan *models.JoinPlan, aliases map[string]string, d Dialect, extraConds []string) (string, error) {
	return g.renderSelectProjecting(plan, plan.Tables, aliases, d, extraConds)
}

// renderAntiJoin emits the unmatched-records shape: the plan's LEFT joins
// with an IS NULL test on the excluded table's join key. Only kept-side
// tables are projected, and a filter on the excluded table is an error
// because it would silently turn the outer join back into an inner one.
func (g *Generator) renderAntiJoin(plan *models.JoinPlan, aliases map[string]string, d Dialect) (string, error) {
	if len(plan.Tables) < 2 || len(plan.Joins) == 0 {
		return "", fmt.Errorf("anti-join requires at least two joined tables")
	}

	excluded := plan.Tables[len(plan.Tables)-1]
	for _, f := range plan.Filters {
		if f.Table == excluded {
			return "", fmt.Errorf("filter on %s.%s targets the excluded side of an anti-join", f.Table, f.Column)
		}
	}

	last := plan.Joins[len(plan.Joins)-1]
	nullSide := last.RightTable
	nullColumn := last.RightColumn
	if nullSide != excluded {
		nullSide = last.LeftTable
		nullColumn = last.LeftColumn
	}
	nullCond := fmt.Sprintf("%s.%s IS NULL", aliases[nullSide], d.QuoteIdentifier(nullColumn))

	kept := plan.Tables[:len(plan.Tables)-1]
	return g.renderSelectProjecting(plan, kept, aliases, d, []string{nullCond})
}

// renderSelectProjecting renders a SELECT over the plan, projecting only the
// listed tables. extraConds are appended after the plan's filters.
func (g *Generator) renderSelectProjecting(plan *models.JoinPlan, projected []string, aliases map[string]string, d Dialect, extraConds []string) (string, error) {
	cols := g.projection(plan, projected, aliases, d)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(d.SelectModifier(g.limit))
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(g.fromClause(plan, aliases, d))

	conds, err := g.filterConds(plan.Filters, aliases, d)
	if err != nil {
		return "", err
	}
	conds = append(conds, extraConds...)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if clause := d.LimitClause(g.limit); clause != "" {
		b.WriteString(" ")
		b.WriteString(clause)
	}
	return b.String(), nil
}

// renderCount emits the row-count shape. The status predicate must have been
// resolved into the plan's filters; counting without one would report table
// cardinality instead of the asked-for subset.
func (g *Generator) renderCount(plan *models.JoinPlan, aliases map[string]string, d Dialect) (string, error) {
	if len(plan.Filters) == 0 {
		return "", fmt.Errorf("count archetype requires at least one resolved filter")
	}

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) AS ")
	b.WriteString(d.QuoteIdentifier("record_count"))
	b.WriteString(g.fromClause(plan, aliases, d))

	conds, err := g.filterConds(plan.Filters, aliases, d)
	if err != nil {
		return "", err
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conds, " AND "))
	return b.String(), nil
}

// projection expands SelectColumns for the projected tables, in plan order.
func (g *Generator) projection(plan *models.JoinPlan, projected []string, aliases map[string]string, d Dialect) []string {
	var cols []string
	for _, t := range projected {
		alias := aliases[t]
		selected := plan.SelectColumns[t]
		if len(selected) == 0 {
			selected = []string{models.SelectAll}
		}
		for _, c := range selected {
			if c == models.SelectAll {
				cols = append(cols, alias+".*")
				continue
			}
			cols = append(cols, alias+"."+d.QuoteIdentifier(c))
		}
	}
	return cols
}

func (g *Generator) fromClause(plan *models.JoinPlan, aliases map[string]string, d Dialect) string {
	var b strings.Builder
	b.WriteString(" FROM ")
	b.WriteString(d.QuoteIdentifier(plan.Tables[0]))
	b.WriteString(" ")
	b.WriteString(aliases[plan.Tables[0]])

	for _, j := range plan.Joins {
		joinType := string(j.JoinType)
		if joinType == "" {
			joinType = string(models.JoinInner)
		}
		fmt.Fprintf(&b, " %s JOIN %s %s ON %s.%s = %s.%s",
			joinType,
			d.QuoteIdentifier(j.RightTable), aliases[j.RightTable],
			aliases[j.LeftTable], d.QuoteIdentifier(j.LeftColumn),
			aliases[j.RightTable], d.QuoteIdentifier(j.RightColumn))
	}
	return b.String()
}

func (g *Generator) filterConds(filters []models.FilterClause, aliases map[string]string, d Dialect) ([]string, error) {
	var conds []string
	for _, f := range filters {
		alias, ok := aliases[f.Table]
		if !ok {
			return nil, fmt.Errorf("filter references table outside plan: %s", f.Table)
		}
		op, err := normalizeOperator(f.Operator)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("%s.%s %s %s",
			alias, d.QuoteIdentifier(f.Column), op, renderLiteral(f.Value, d)))
	}
	return conds, nil
}

// renderLiteral emits numeric values bare and everything else as a quoted,
// escaped string literal.
func renderLiteral(value string, d Dialect) string {
	if _, err := strconv.ParseFloat(value, 64); err == nil && value != "" {
		return value
	}
	return "'" + d.EscapeLiteral(value) + "'"
}
