package kg

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TableRef identifies a discovered table.
type TableRef struct {
	Schema string
	Name   string
}

// ForeignKeyRef is a discovered FK constraint between two tables.
type ForeignKeyRef struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// SchemaSource supplies physical schema metadata during ingestion.
// Implemented by the per-dialect datasource adapters.
type SchemaSource interface {
	// Tables returns all user tables.
	Tables(ctx context.Context) ([]TableRef, error)

	// Columns returns the ordered column names of one table.
	Columns(ctx context.Context, schema, table string) ([]string, error)

	// ForeignKeys returns all FK constraints, or an empty slice when the
	// backing store does not expose them.
	ForeignKeys(ctx context.Context) ([]ForeignKeyRef, error)
}

// SeedTable declares a table in a seed file, for graphs built without a
// live datasource.
type SeedTable struct {
	Aliases []string `yaml:"aliases"`
	Columns []string `yaml:"columns"`
}

// SeedRelationship declares a relationship edge in a seed file.
type SeedRelationship struct {
	SourceTable   string  `yaml:"source_table"`
	SourceColumn  string  `yaml:"source_column"`
	TargetTable   string  `yaml:"target_table"`
	TargetColumn  string  `yaml:"target_column"`
	Type          string  `yaml:"type"`
	Confidence    float64 `yaml:"confidence"`
	Bidirectional *bool   `yaml:"bidirectional"` // defaults to true
}

// Seed supplies business aliases and declared relationships that schema
// discovery cannot know about.
type Seed struct {
	Tables        map[string]SeedTable `yaml:"tables"`
	Aliases       map[string][]string  `yaml:"aliases"`
	Relationships []SeedRelationship   `yaml:"relationships"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Ingestor builds a knowledge graph from schema discovery plus an optional
// seed file. Ingestion is the only writer: it must finish before the graph
// is handed to resolvers.
type Ingestor struct {
	logger *zap.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(logger *zap.Logger) *Ingestor {
	return &Ingestor{logger: logger.Named("kg-ingest")}
}

// Ingest populates g from the schema source and seed. Either input may be
// nil; passing both nil yields an empty graph. When schemas is non-empty,
// discovery is scoped to those schemas and nothing is guessed for tables
// outside them.
func (i *Ingestor) Ingest(ctx context.Context, g *Graph, src SchemaSource, schemas []string, seed *Seed) error {
	if src != nil {
		if err := i.ingestDiscovered(ctx, g, src, schemas); err != nil {
			return err
		}
	}
	if seed != nil {
		if err := i.ingestSeed(g, seed); err != nil {
			return err
		}
	}

	i.logger.Info("Knowledge graph ingested",
		zap.String("graph", g.Name()),
		zap.Int("tables", len(g.Tables())))
	return nil
}

func (i *Ingestor) ingestDiscovered(ctx context.Context, g *Graph, src SchemaSource, schemas []string) error {
	tables, err := src.Tables(ctx)
	if err != nil {
		return fmt.Errorf("discover tables: %w", err)
	}

	scoped := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		scoped[strings.ToLower(s)] = true
	}

	for _, t := range tables {
		if len(scoped) > 0 && !scoped[strings.ToLower(t.Schema)] {
			continue
		}

		columns, err := src.Columns(ctx, t.Schema, t.Name)
		if err != nil {
			return fmt.Errorf("discover columns for %s: %w", t.Name, err)
		}
		g.AddTable(t.Name, DeriveAliases(t.Name), columns)
	}

	fks, err := src.ForeignKeys(ctx)
	if err != nil {
		return fmt.Errorf("discover foreign keys: %w", err)
	}
	for _, fk := range fks {
		edge := RelationshipEdge{
			SourceTable:      fk.SourceTable,
			SourceColumn:     fk.SourceColumn,
			TargetTable:      fk.TargetTable,
			TargetColumn:     fk.TargetColumn,
			RelationshipType: RelationshipForeignKey,
			Confidence:       1.0,
			Bidirectional:    true,
		}
		if err := g.AddRelationship(edge); err != nil {
			// FK endpoints can fall outside the scoped schemas.
			i.logger.Debug("Skipping foreign key outside graph",
				zap.String("source", fk.SourceTable),
				zap.String("target", fk.TargetTable))
		}
	}

	return nil
}

func (i *Ingestor) ingestSeed(g *Graph, seed *Seed) error {
	for name, decl := range seed.Tables {
		aliases := append(DeriveAliases(name), decl.Aliases...)
		g.AddTable(name, aliases, decl.Columns)
	}

	for name, aliases := range seed.Aliases {
		if _, ok := g.Table(name); !ok {
			i.logger.Warn("Seed aliases reference unknown table", zap.String("table", name))
			continue
		}
		g.AddTable(name, aliases, nil)
	}

	for _, rel := range seed.Relationships {
		confidence := rel.Confidence
		if confidence == 0 {
			confidence = 0.9
		}
		relType := rel.Type
		if relType == "" {
			relType = RelationshipReconciliationKey
		}
		bidirectional := true
		if rel.Bidirectional != nil {
			bidirectional = *rel.Bidirectional
		}

		edge := RelationshipEdge{
			SourceTable:      rel.SourceTable,
			SourceColumn:     rel.SourceColumn,
			TargetTable:      rel.TargetTable,
			TargetColumn:     rel.TargetColumn,
			RelationshipType: relType,
			Confidence:       confidence,
			Bidirectional:    bidirectional,
		}
		if err := g.AddRelationship(edge); err != nil {
			return fmt.Errorf("seed relationship %s -> %s: %w", rel.SourceTable, rel.TargetTable, err)
		}
	}

	return nil
}

// Layer prefixes common in lakehouse naming, stripped when deriving aliases
// so "brz_lnd_RBP_GPU" answers to "RBP GPU".
var layerPrefixes = map[string]bool{
	"brz": true, "slv": true, "gld": true,
	"bronze": true, "silver": true, "gold": true,
	"lnd": true, "stg": true, "raw": true, "src": true,
}

// DeriveAliases produces the automatic aliases for a physical table name:
// the underscore-to-space form, the layer-prefix-stripped form, and
// singular/plural variants of the stripped form.
func DeriveAliases(name string) []string {
	var aliases []string
	add := func(a string) {
		if a == "" || strings.EqualFold(a, name) || containsFold(aliases, a) {
			return
		}
		aliases = append(aliases, a)
	}

	parts := strings.Split(name, "_")
	add(strings.Join(parts, " "))

	// Strip leading layer prefixes.
	stripped := parts
	for len(stripped) > 1 && layerPrefixes[strings.ToLower(stripped[0])] {
		stripped = stripped[1:]
	}
	core := strings.Join(stripped, " ")
	add(core)
	add(strings.Join(stripped, "_"))

	// Singular and plural variants of the business name.
	add(inflection.Singular(core))
	add(inflection.Plural(core))

	return aliases
}
