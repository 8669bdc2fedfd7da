package kg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSchemaSource is an in-memory SchemaSource for ingestion tests.
type fakeSchemaSource struct {
	tables  []TableRef
	columns map[string][]string
	fks     []ForeignKeyRef
}

func (f *fakeSchemaSource) Tables(ctx context.Context) ([]TableRef, error) {
	return f.tables, nil
}

func (f *fakeSchemaSource) Columns(ctx context.Context, schema, table string) ([]string, error) {
	return f.columns[table], nil
}

func (f *fakeSchemaSource) ForeignKeys(ctx context.Context) ([]ForeignKeyRef, error) {
	return f.fks, nil
}

func TestIngest_FromDiscovery(t *testing.T) {
	src := &fakeSchemaSource{
		tables: []TableRef{
			{Schema: "dbo", Name: "brz_lnd_RBP_GPU"},
			{Schema: "dbo", Name: "brz_lnd_OPS_EXCEL_GPU"},
		},
		columns: map[string][]string{
			"brz_lnd_RBP_GPU":       {"Material", "Plant"},
			"brz_lnd_OPS_EXCEL_GPU": {"PLANNING_SKU", "STATUS"},
		},
		fks: []ForeignKeyRef{
			{SourceTable: "brz_lnd_RBP_GPU", SourceColumn: "Material", TargetTable: "brz_lnd_OPS_EXCEL_GPU", TargetColumn: "PLANNING_SKU"},
		},
	}

	g := New("test")
	err := NewIngestor(zap.NewNop()).Ingest(context.Background(), g, src, nil, nil)
	require.NoError(t, err)

	node, ok := g.Table("brz_lnd_RBP_GPU")
	require.True(t, ok)
	assert.Equal(t, []string{"Material", "Plant"}, node.Columns)

	// FK becomes a confidence-1.0 bidirectional edge.
	edges := g.FindRelationship("brz_lnd_OPS_EXCEL_GPU", "brz_lnd_RBP_GPU")
	require.Len(t, edges, 1)
	assert.Equal(t, RelationshipForeignKey, edges[0].RelationshipType)
	assert.Equal(t, 1.0, edges[0].Confidence)
}

func TestIngest_SchemaScoping(t *testing.T) {
	src := &fakeSchemaSource{
		tables: []TableRef{
			{Schema: "sales", Name: "orders"},
			{Schema: "hr", Name: "employees"},
		},
		columns: map[string][]string{"orders": {"id"}, "employees": {"id"}},
	}

	g := New("scoped")
	err := NewIngestor(zap.NewNop()).Ingest(context.Background(), g, src, []string{"sales"}, nil)
	require.NoError(t, err)

	_, ok := g.Table("orders")
	assert.True(t, ok)
	_, ok = g.Table("employees")
	assert.False(t, ok, "tables outside the supplied schema list must not be ingested")
}

func TestIngest_SkipsForeignKeysOutsideScope(t *testing.T) {
	src := &fakeSchemaSource{
		tables:  []TableRef{{Schema: "sales", Name: "orders"}},
		columns: map[string][]string{"orders": {"id", "customer_id"}},
		fks: []ForeignKeyRef{
			{SourceTable: "orders", SourceColumn: "customer_id", TargetTable: "customers", TargetColumn: "id"},
		},
	}

	g := New("scoped")
	err := NewIngestor(zap.NewNop()).Ingest(context.Background(), g, src, []string{"sales"}, nil)
	require.NoError(t, err)

	// The dangling FK is skipped, not an error.
	assert.Empty(t, g.FindRelationship("orders", "customers"))
}

func TestIngest_Seed(t *testing.T) {
	seed := &Seed{
		Tables: map[string]SeedTable{
			"brz_lnd_RBP_GPU":       {Aliases: []string{"RBP"}, Columns: []string{"Material"}},
			"brz_lnd_OPS_EXCEL_GPU": {Aliases: []string{"OPS Excel"}, Columns: []string{"PLANNING_SKU"}},
		},
		Relationships: []SeedRelationship{
			{
				SourceTable:  "brz_lnd_RBP_GPU",
				SourceColumn: "Material",
				TargetTable:  "brz_lnd_OPS_EXCEL_GPU",
				TargetColumn: "PLANNING_SKU",
			},
		},
	}

	g := New("seeded")
	err := NewIngestor(zap.NewNop()).Ingest(context.Background(), g, nil, nil, seed)
	require.NoError(t, err)

	matches := g.FindTable("RBP")
	require.NotEmpty(t, matches)
	assert.Equal(t, "brz_lnd_RBP_GPU", matches[0].Table.Name)

	// Defaults: reconciliation_key, confidence 0.9, bidirectional.
	edges := g.FindRelationship("brz_lnd_OPS_EXCEL_GPU", "brz_lnd_RBP_GPU")
	require.Len(t, edges, 1)
	assert.Equal(t, RelationshipReconciliationKey, edges[0].RelationshipType)
	assert.Equal(t, 0.9, edges[0].Confidence)
}

func TestIngest_SeedRelationshipUnknownTable(t *testing.T) {
	seed := &Seed{
		Relationships: []SeedRelationship{
			{SourceTable: "nope", TargetTable: "missing"},
		},
	}

	g := New("bad")
	err := NewIngestor(zap.NewNop()).Ingest(context.Background(), g, nil, nil, seed)
	require.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	content := `
tables:
  brz_lnd_RBP_GPU:
    aliases: ["RBP"]
    columns: ["Material", "Plant"]
aliases:
  brz_lnd_RBP_GPU: ["RBP GPU feed"]
relationships:
  - source_table: brz_lnd_RBP_GPU
    source_column: Material
    target_table: brz_lnd_RBP_GPU
    target_column: Material
    confidence: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Tables, 1)
	assert.Equal(t, 0.8, seed.Relationships[0].Confidence)

	_, err = LoadSeed(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDeriveAliases(t *testing.T) {
	aliases := DeriveAliases("brz_lnd_RBP_GPU")

	assert.Contains(t, aliases, "brz lnd RBP GPU")
	assert.Contains(t, aliases, "RBP GPU")
	assert.Contains(t, aliases, "RBP_GPU")
}

func TestDeriveAliases_PluralVariants(t *testing.T) {
	aliases := DeriveAliases("stg_product")

	assert.Contains(t, aliases, "product")
	assert.Contains(t, aliases, "products")
}

func TestDeriveAliases_NoSelfAlias(t *testing.T) {
	aliases := DeriveAliases("orders")
	assert.NotContains(t, aliases, "orders")
}
