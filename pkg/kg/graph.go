// Package kg holds the knowledge graph: tables, their business aliases, and
// inter-table relationship edges with column mappings. The graph is built
// once during ingestion and is read-only for the lifetime of query
// resolution.
package kg

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/glintdata/recon-engine/pkg/models"
)

// DefaultMatchFloor is the minimum confidence for FindTable to report a match.
const DefaultMatchFloor = 0.5

// Confidence assigned per match strategy. Exact name hits outrank alias
// hits, which outrank normalized-pattern hits; fuzzy hits carry their own
// similarity score.
const (
	exactConfidence   = 1.0
	aliasConfidence   = 0.95
	patternConfidence = 0.85
)

// TableNode is one physical table known to the graph.
type TableNode struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// HasColumn reports whether the node has a column with the given name,
// case-insensitively.
func (t *TableNode) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// RelationshipEdge links a column pair between two tables.
// Directed, but logically symmetric when Bidirectional is set.
type RelationshipEdge struct {
	SourceTable      string  `json:"source_table"`
	SourceColumn     string  `json:"source_column"`
	TargetTable      string  `json:"target_table"`
	TargetColumn     string  `json:"target_column"`
	RelationshipType string  `json:"relationship_type"` // "foreign_key", "reconciliation_key", "manual"
	Confidence       float64 `json:"confidence"`
	Bidirectional    bool    `json:"bidirectional"`
}

// Relationship types.
const (
	RelationshipForeignKey        = "foreign_key"        // Discovered from a database FK constraint
	RelationshipReconciliationKey = "reconciliation_key" // Declared in a seed file
	RelationshipManual            = "manual"             // Added by an operator at runtime
)

// TableMatch is one candidate returned by FindTable.
type TableMatch struct {
	Table      *TableNode
	Strategy   string // models.MatchStrategy* value
	Confidence float64
}

// Graph is the knowledge graph for one schema set. Mutated only during
// ingestion; ingestion must complete before the graph is shared with
// resolvers (single writer, then many readers). The mutex exists to make
// late alias registration safe, not to support interleaved mutation during
// resolution.
type Graph struct {
	name       string
	matchFloor float64

	mu     sync.RWMutex
	tables map[string]*TableNode // keyed by lowercase physical name
	order  []string              // insertion order of physical names
	edges  []RelationshipEdge    // insertion order preserved for tie-breaks
}

// New creates an empty graph with the default match floor.
func New(name string) *Graph {
	return &Graph{
		name:       name,
		matchFloor: DefaultMatchFloor,
		tables:     make(map[string]*TableNode),
	}
}

// Name returns the graph identifier supplied at creation.
func (g *Graph) Name() string {
	return g.name
}

// SetMatchFloor overrides the minimum confidence for table matches.
// Call before the graph is shared.
func (g *Graph) SetMatchFloor(floor float64) {
	g.matchFloor = floor
}

// AddTable registers a physical table with its aliases and column list.
// Re-adding an existing table appends any new aliases and replaces the
// column list.
func (g *Graph) AddTable(name string, aliases []string, columns []string) *TableNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.ToLower(name)
	node, ok := g.tables[key]
	if !ok {
		node = &TableNode{Name: name}
		g.tables[key] = node
		g.order = append(g.order, name)
	}

	for _, a := range aliases {
		if a != "" && !containsFold(node.Aliases, a) && !strings.EqualFold(a, node.Name) {
			node.Aliases = append(node.Aliases, a)
		}
	}
	if len(columns) > 0 {
		node.Columns = append([]string(nil), columns...)
	}

	return node
}

// AddRelationship registers an edge. Both endpoint tables must already
// exist and confidence must lie within [0,1].
func (g *Graph) AddRelationship(edge RelationshipEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tables[strings.ToLower(edge.SourceTable)]; !ok {
		return fmt.Errorf("relationship source table not in graph: %s", edge.SourceTable)
	}
	if _, ok := g.tables[strings.ToLower(edge.TargetTable)]; !ok {
		return fmt.Errorf("relationship target table not in graph: %s", edge.TargetTable)
	}
	if edge.Confidence < 0 || edge.Confidence > 1 {
		return fmt.Errorf("relationship confidence out of range: %v", edge.Confidence)
	}

	g.edges = append(g.edges, edge)
	return nil
}

// Table looks up a node by exact physical name (case-insensitive).
func (g *Graph) Table(name string) (*TableNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.tables[strings.ToLower(name)]
	return node, ok
}

// Tables returns all nodes in insertion order.
func (g *Graph) Tables() []*TableNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*TableNode, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.tables[strings.ToLower(name)])
	}
	return out
}

// AllAliases returns the alias list per physical table name.
func (g *Graph) AllAliases() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string][]string, len(g.tables))
	for _, node := range g.tables {
		out[node.Name] = append([]string(nil), node.Aliases...)
	}
	return out
}

// FindTable resolves a business-language mention to candidate tables,
// ordered by confidence descending. Strategies run in order (exact, then
// normalized pattern, then fuzzy token-set similarity) and the first
// strategy producing a match above the floor wins. An empty result means
// the mention is unresolved; callers must not guess.
func (g *Graph) FindTable(mention string) []TableMatch {
	g.mu.RLock()
	defer g.mu.RUnlock()

	mention = strings.TrimSpace(mention)
	if mention == "" {
		return nil
	}

	if matches := g.findExact(mention); len(matches) > 0 {
		return sortMatches(matches)
	}
	if matches := g.findPattern(mention); len(matches) > 0 {
		return sortMatches(matches)
	}
	return sortMatches(g.findFuzzy(mention))
}

func (g *Graph) findExact(mention string) []TableMatch {
	var matches []TableMatch
	for _, name := range g.order {
		node := g.tables[strings.ToLower(name)]
		if strings.EqualFold(node.Name, mention) {
			matches = append(matches, TableMatch{Table: node, Strategy: models.MatchStrategyExact, Confidence: exactConfidence})
			continue
		}
		if containsFold(node.Aliases, mention) {
			matches = append(matches, TableMatch{Table: node, Strategy: models.MatchStrategyAlias, Confidence: aliasConfidence})
		}
	}
	return matches
}

func (g *Graph) findPattern(mention string) []TableMatch {
	normalized := Normalize(mention)
	if normalized == "" {
		return nil
	}

	var matches []TableMatch
	for _, name := range g.order {
		node := g.tables[strings.ToLower(name)]
		if Normalize(node.Name) == normalized {
			matches = append(matches, TableMatch{Table: node, Strategy: models.MatchStrategyPattern, Confidence: patternConfidence})
			continue
		}
		for _, a := range node.Aliases {
			if Normalize(a) == normalized {
				matches = append(matches, TableMatch{Table: node, Strategy: models.MatchStrategyPattern, Confidence: patternConfidence})
				break
			}
		}
	}
	return matches
}

func (g *Graph) findFuzzy(mention string) []TableMatch {
	var matches []TableMatch
	for _, name := range g.order {
		node := g.tables[strings.ToLower(name)]

		best := TokenSetRatio(mention, node.Name)
		for _, a := range node.Aliases {
			if score := TokenSetRatio(mention, a); score > best {
				best = score
			}
		}

		if best >= g.matchFloor {
			matches = append(matches, TableMatch{Table: node, Strategy: models.MatchStrategyFuzzy, Confidence: best})
		}
	}
	return matches
}

// BestEffortScore returns the highest similarity of the mention against any
// table name or alias, with no floor applied. Used to report how close an
// unresolved mention came, so the caller can cap result confidence at that
// score instead of inventing one.
func (g *Graph) BestEffortScore(mention string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best float64
	for _, name := range g.order {
		node := g.tables[strings.ToLower(name)]
		if score := TokenSetRatio(mention, node.Name); score > best {
			best = score
		}
		for _, a := range node.Aliases {
			if score := TokenSetRatio(mention, a); score > best {
				best = score
			}
		}
	}
	return best
}

// FindRelationship returns all edges linking the two tables, in insertion
// order. Reversed edges are considered when marked bidirectional.
func (g *Graph) FindRelationship(tableA, tableB string) []RelationshipEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []RelationshipEdge
	for _, e := range g.edges {
		if strings.EqualFold(e.SourceTable, tableA) && strings.EqualFold(e.TargetTable, tableB) {
			out = append(out, e)
			continue
		}
		if e.Bidirectional && strings.EqualFold(e.SourceTable, tableB) && strings.EqualFold(e.TargetTable, tableA) {
			out = append(out, e.reversed())
		}
	}
	return out
}

// Related reports whether any edge links the two tables.
func (g *Graph) Related(tableA, tableB string) bool {
	return len(g.FindRelationship(tableA, tableB)) > 0
}

func (e RelationshipEdge) reversed() RelationshipEdge {
	return RelationshipEdge{
		SourceTable:      e.TargetTable,
		SourceColumn:     e.TargetColumn,
		TargetTable:      e.SourceTable,
		TargetColumn:     e.SourceColumn,
		RelationshipType: e.RelationshipType,
		Confidence:       e.Confidence,
		Bidirectional:    e.Bidirectional,
	}
}

// Normalize strips non-alphanumerics and lowercases, so "OPS Excel",
// "ops_excel", and "OPS-EXCEL" all compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// sortMatches orders by confidence descending; ties break on table name so
// output is stable run to run.
func sortMatches(matches []TableMatch) []TableMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Table.Name < matches[j].Table.Name
	})
	return matches
}
