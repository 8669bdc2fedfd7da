package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/adapters/datasource"
	"github.com/glintdata/recon-engine/pkg/apperrors"
	"github.com/glintdata/recon-engine/pkg/config"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/llm"
	"github.com/glintdata/recon-engine/pkg/models"
)

type mockQuerier struct {
	QueryFunc func(ctx context.Context, sqlText string) (*datasource.QueryResult, error)
}

func (m *mockQuerier) Query(ctx context.Context, sqlText string) (*datasource.QueryResult, error) {
	return m.QueryFunc(ctx, sqlText)
}

func (m *mockQuerier) Ping(ctx context.Context) error { return nil }
func (m *mockQuerier) Close() error                   { return nil }

func okQuerier(rows int) *mockQuerier {
	return &mockQuerier{
		QueryFunc: func(ctx context.Context, sqlText string) (*datasource.QueryResult, error) {
			out := make([]map[string]any, rows)
			for i := range out {
				out[i] = map[string]any{"PLANNING_SKU": i}
			}
			return &datasource.QueryResult{Columns: []string{"PLANNING_SKU"}, Rows: out}, nil
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Dialect: "sqlserver",
		Matching: config.MatchingConfig{
			MinConfidence:    0.5,
			AmbiguityEpsilon: 0.1,
			LowConfidence:    0.3,
		},
		Execution: config.ExecutionConfig{
			LimitRecords:   1000,
			TimeoutSeconds: 5,
			MaxConcurrent:  4,
		},
	}
}

func testGraph(t *testing.T) *kg.Graph {
	t.Helper()

	g := kg.New("finance-recon")
	g.SetMatchFloor(0.5)
	g.AddTable("brz_lnd_RBP_GPU",
		[]string{"RBP", "RBP GPU"},
		[]string{"PLANNING_SKU", "PLANNER", "QTY"})
	g.AddTable("brz_lnd_OPS_EXCEL_GPU",
		[]string{"OPS Excel", "OPS"},
		[]string{"PLANNING_SKU", "STATUS"})
	g.AddTable("hana_master",
		[]string{"HANA", "master data"},
		[]string{"MATERIAL_ID", "record_status"})

	err := g.AddRelationship(kg.RelationshipEdge{
		SourceTable:      "brz_lnd_RBP_GPU",
		SourceColumn:     "PLANNING_SKU",
		TargetTable:      "brz_lnd_OPS_EXCEL_GPU",
		TargetColumn:     "PLANNING_SKU",
		RelationshipType: kg.RelationshipReconciliationKey,
		Confidence:       0.9,
		Bidirectional:    true,
	})
	require.NoError(t, err)
	return g
}

func newTestEngine(t *testing.T, q datasource.Querier) *Engine {
	t.Helper()

	e := New(testConfig(), nil, q, zap.NewNop())
	require.NoError(t, e.RegisterGraph(testGraph(t)))
	return e
}

func TestRun_RejectsInvalidGraphName(t *testing.T) {
	tests := []struct {
		name      string
		graphName string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"default lowercase", "default"},
		{"default uppercase", "DEFAULT"},
		{"default mixed", "Default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			q := &mockQuerier{
				QueryFunc: func(ctx context.Context, sqlText string) (*datasource.QueryResult, error) {
					called = true
					return &datasource.QueryResult{}, nil
				},
			}
			e := newTestEngine(t, q)

			_, err := e.Run(context.Background(), &ReconciliationRequest{
				GraphName:   tt.graphName,
				Definitions: []string{"Show records in RBP not in OPS Excel"},
			})

			assert.ErrorIs(t, err, apperrors.ErrInvalidGraphName)
			assert.False(t, called, "no query may run for a rejected graph name")
		})
	}
}

func TestRun_UnknownGraph(t *testing.T) {
	e := newTestEngine(t, okQuerier(0))

	_, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "inventory-recon",
		Definitions: []string{"Show records in RBP not in OPS Excel"},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGraphName)
}

func TestRegisterGraph_RejectsReservedNames(t *testing.T) {
	e := New(testConfig(), nil, okQuerier(0), zap.NewNop())
	err := e.RegisterGraph(kg.New("default"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidGraphName)
}

func TestRun_UnmatchedSourcePipeline(t *testing.T) {
	e := newTestEngine(t, okQuerier(7))

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Show records in RBP not in OPS Excel"},
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 1)

	outcome := batch.Outcomes[0]
	require.Equal(t, models.ExecutionStatusSuccess, outcome.Result.Status)
	assert.Equal(t, 7, outcome.Result.RecordCount)

	assert.Contains(t, outcome.SQLText, "FROM [brz_lnd_RBP_GPU] t1")
	assert.Contains(t, outcome.SQLText, "LEFT JOIN [brz_lnd_OPS_EXCEL_GPU] t2")
	assert.Contains(t, outcome.SQLText, "WHERE t2.[PLANNING_SKU] IS NULL")
	assert.NotContains(t, outcome.SQLText, "NOT IN")

	require.NotNil(t, outcome.Provenance)
	assert.Equal(t, "brz_lnd_RBP_GPU", outcome.Provenance.SourceTable)
	assert.Equal(t, "brz_lnd_OPS_EXCEL_GPU", outcome.Provenance.TargetTable)
	assert.Equal(t, "PLANNING_SKU", outcome.Provenance.SourceColumn)
	assert.Equal(t, "PLANNING_SKU", outcome.Provenance.TargetColumn)

	// min(classifier 0.8, resolver 0.95, plan 0.9)
	assert.InDelta(t, 0.8, outcome.Result.Confidence, 1e-9)
}

// mirroredExtractor returns a fixed UNMATCHED_TARGET extraction so the
// pipeline can be driven through the mirrored anti-join with a filter.
func mirroredExtractor(source, target string) *llm.MockExtractor {
	return &llm.MockExtractor{
		ExtractFunc: func(ctx context.Context, text string) (*llm.Extraction, error) {
			return &llm.Extraction{
				Archetype: string(models.ArchetypeUnmatchedTarget),
				Entities: []llm.ExtractedEntity{
					{Role: llm.RoleSource, Mention: source, Confidence: 0.9},
					{Role: llm.RoleTarget, Mention: target, Confidence: 0.9},
				},
				Filters: []llm.ExtractedFilter{
					{ColumnHint: "status", Operator: "=", Value: "inactive", Confidence: 0.9},
				},
				Confidence: 0.9,
			}, nil
		},
	}
}

func TestRun_UnmatchedTargetKeptSideFilter(t *testing.T) {
	e := New(testConfig(), mirroredExtractor("RBP", "OPS Excel"), okQuerier(3), zap.NewNop())
	require.NoError(t, e.RegisterGraph(testGraph(t)))

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Reconcile the planning feeds"},
		UseLLM:      true,
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 1)

	outcome := batch.Outcomes[0]
	require.Equal(t, models.ExecutionStatusSuccess, outcome.Result.Status)

	// The target is the kept side (t1); the status filter binds to it and
	// renders alongside the anti-join predicate on the excluded source.
	assert.Contains(t, outcome.SQLText, "FROM [brz_lnd_OPS_EXCEL_GPU] t1")
	assert.Contains(t, outcome.SQLText, "LEFT JOIN [brz_lnd_RBP_GPU] t2")
	assert.Contains(t, outcome.SQLText, "t1.[STATUS] = 'inactive'")
	assert.Contains(t, outcome.SQLText, "t2.[PLANNING_SKU] IS NULL")
}

func TestRun_UnmatchedTargetExcludedSideHintDropped(t *testing.T) {
	// Here the status column lives only on the excluded source table. The
	// hint cannot bind to the NULL side, so it is dropped rather than
	// failing the definition.
	e := New(testConfig(), mirroredExtractor("OPS Excel", "RBP"), okQuerier(3), zap.NewNop())
	require.NoError(t, e.RegisterGraph(testGraph(t)))

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Reconcile the planning feeds"},
		UseLLM:      true,
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 1)

	outcome := batch.Outcomes[0]
	require.Equal(t, models.ExecutionStatusSuccess, outcome.Result.Status)
	assert.Contains(t, outcome.SQLText, "FROM [brz_lnd_RBP_GPU] t1")
	assert.Contains(t, outcome.SQLText, "LEFT JOIN [brz_lnd_OPS_EXCEL_GPU] t2")
	assert.NotContains(t, outcome.SQLText, "STATUS")
}

func TestRun_AmbiguousMentionRefused(t *testing.T) {
	e := newTestEngine(t, okQuerier(0))

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Show records in GPU not in HANA"},
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 1)

	outcome := batch.Outcomes[0]
	assert.Equal(t, models.ExecutionStatusFailed, outcome.Result.Status)
	assert.Equal(t, models.ErrorTypeUnresolvedEntity, outcome.Result.ErrorType)
	assert.Empty(t, outcome.SQLText)
}

func TestRun_BatchNeverShortCircuits(t *testing.T) {
	e := newTestEngine(t, okQuerier(2))

	defs := []string{
		"Show records in RBP not in HANA",      // resolvable but no relationship edge
		"Show records in RBP not in OPS Excel", // succeeds
		"Show records in WIDGETS not in GIZMOS",
	}

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: defs,
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 3)

	assert.Equal(t, models.ExecutionStatusFailed, batch.Outcomes[0].Result.Status)
	assert.Equal(t, models.ErrorTypeNoJoinPath, batch.Outcomes[0].Result.ErrorType)

	assert.Equal(t, models.ExecutionStatusSuccess, batch.Outcomes[1].Result.Status)

	assert.Equal(t, models.ExecutionStatusFailed, batch.Outcomes[2].Result.Status)
	assert.Equal(t, models.ErrorTypeUnresolvedEntity, batch.Outcomes[2].Result.ErrorType)

	// Outcomes stay index-aligned with the definitions.
	for i, o := range batch.Outcomes {
		assert.Equal(t, defs[i], o.Definition)
	}
}

func TestRun_InactiveCount(t *testing.T) {
	q := &mockQuerier{
		QueryFunc: func(ctx context.Context, sqlText string) (*datasource.QueryResult, error) {
			return &datasource.QueryResult{
				Columns: []string{"record_count"},
				Rows:    []map[string]any{{"record_count": int64(42)}},
			}, nil
		},
	}
	e := newTestEngine(t, q)

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"How many inactive records in HANA"},
	})
	require.NoError(t, err)
	require.Len(t, batch.Outcomes, 1)

	outcome := batch.Outcomes[0]
	require.Equal(t, models.ExecutionStatusSuccess, outcome.Result.Status)
	assert.Contains(t, outcome.SQLText, "SELECT COUNT(*) AS [record_count]")
	assert.Contains(t, outcome.SQLText, "FROM [hana_master]")
	// The status hint resolves to the table's real column, never a
	// hard-coded name.
	assert.Contains(t, outcome.SQLText, "t1.[record_status] = 'inactive'")
}

func TestRun_DialectOverride(t *testing.T) {
	e := newTestEngine(t, okQuerier(1))

	batch, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Show records in RBP not in OPS Excel"},
		Dialect:     "mysql",
	})
	require.NoError(t, err)

	sqlText := batch.Outcomes[0].SQLText
	assert.Contains(t, sqlText, "`brz_lnd_RBP_GPU`")
	assert.Contains(t, sqlText, "LIMIT 1000")
}

func TestRun_UnknownDialect(t *testing.T) {
	e := newTestEngine(t, okQuerier(1))

	_, err := e.Run(context.Background(), &ReconciliationRequest{
		GraphName:   "finance-recon",
		Definitions: []string{"Show records in RBP not in OPS Excel"},
		Dialect:     "db2",
	})
	assert.Error(t, err)
}

func TestRun_EmptyDefinitions(t *testing.T) {
	e := newTestEngine(t, okQuerier(0))

	_, err := e.Run(context.Background(), &ReconciliationRequest{GraphName: "finance-recon"})
	assert.ErrorContains(t, err, "no definitions")
}

func TestRunBounded_IndexAlignment(t *testing.T) {
	got := runBounded(context.Background(), 3, 20, func(ctx context.Context, i int) int {
		return i * i
	})

	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}
