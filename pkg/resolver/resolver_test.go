package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/apperrors"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/models"
)

func testGraph(t *testing.T) *kg.Graph {
	t.Helper()

	g := kg.New("gpu_recon")
	g.AddTable("brz_lnd_RBP_GPU", []string{"RBP"}, []string{"Material", "Plant", "Quantity"})
	g.AddTable("brz_lnd_OPS_EXCEL_GPU", []string{"OPS Excel"}, []string{"PLANNING_SKU", "OPS_PLANNER", "STATUS"})
	require.NoError(t, g.AddRelationship(kg.RelationshipEdge{
		SourceTable:   "brz_lnd_RBP_GPU",
		SourceColumn:  "Material",
		TargetTable:   "brz_lnd_OPS_EXCEL_GPU",
		TargetColumn:  "PLANNING_SKU",
		Confidence:    0.9,
		Bidirectional: true,
	}))
	return g
}

func newResolver() *Resolver {
	return New(0.5, 0.1, zap.NewNop())
}

func TestResolve_SourceAndTarget(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		SourceMention: "RBP",
		TargetMention: "OPS Excel",
	}, g)
	require.NoError(t, err)

	require.NotNil(t, resolution.Source)
	assert.Equal(t, "brz_lnd_RBP_GPU", resolution.Source.ResolvedTable)
	assert.Equal(t, models.MatchStrategyAlias, resolution.Source.MatchStrategy)

	require.NotNil(t, resolution.Target)
	assert.Equal(t, "brz_lnd_OPS_EXCEL_GPU", resolution.Target.ResolvedTable)

	// Overall confidence tracks the weakest mention.
	assert.Equal(t, resolution.Source.MatchConfidence, resolution.Confidence)
}

func TestResolve_UnresolvedMention(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	_, err := r.Resolve(models.QueryIntent{SourceMention: "warehouse inventory feed"}, g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnresolvedEntity))

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, models.ErrorTypeUnresolvedEntity, resErr.ErrorType)
	assert.Equal(t, "warehouse inventory feed", resErr.Mention)
}

func TestResolve_AmbiguousMentionRefused(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	// "GPU" is a token of both physical names; the resolver must refuse to
	// pick one silently.
	_, err := r.Resolve(models.QueryIntent{SourceMention: "GPU"}, g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnresolvedEntity))

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Len(t, resErr.Candidates, 2)
}

func TestResolve_FilterHintMatchesColumn(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		SourceMention: "OPS Excel",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.NoError(t, err)

	require.Len(t, resolution.Filters, 1)
	assert.Equal(t, "STATUS", resolution.Filters[0].Column)
	assert.Equal(t, "brz_lnd_OPS_EXCEL_GPU", resolution.Filters[0].Table)
	assert.Equal(t, 1.0, resolution.Filters[0].Confidence)
}

func TestResolve_FilterHintFuzzyMatch(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		SourceMention: "OPS Excel",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "ops planner", Operator: "=", Value: "alice"},
		},
	}, g)
	require.NoError(t, err)

	require.Len(t, resolution.Filters, 1)
	assert.Equal(t, "OPS_PLANNER", resolution.Filters[0].Column)
}

func TestResolve_MirroredAntiJoinFilterBindsKeptSide(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		Archetype:     models.ArchetypeUnmatchedTarget,
		SourceMention: "RBP",
		TargetMention: "OPS Excel",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.NoError(t, err)

	// The target is the kept side of the mirrored anti-join, so the hint
	// binds there rather than to the source.
	require.Len(t, resolution.Filters, 1)
	assert.Equal(t, "brz_lnd_OPS_EXCEL_GPU", resolution.Filters[0].Table)
	assert.Equal(t, "STATUS", resolution.Filters[0].Column)
}

func TestResolve_AntiJoinFilterNeverBindsExcludedSide(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		Archetype:     models.ArchetypeUnmatchedTarget,
		SourceMention: "OPS Excel",
		TargetMention: "RBP",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.NoError(t, err)

	// The kept side (RBP) has no status-like column; binding the hint to
	// the excluded table would make the definition unexpressible, so it
	// stays unresolved instead.
	require.Len(t, resolution.Filters, 1)
	assert.Empty(t, resolution.Filters[0].Column)
	assert.Empty(t, resolution.Filters[0].Table)
}

func TestResolve_MatchedFilterFallsBackToTarget(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		Archetype:     models.ArchetypeMatched,
		SourceMention: "RBP",
		TargetMention: "OPS Excel",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.NoError(t, err)

	// No anti-join excludes a side here, so a hint the source table cannot
	// satisfy may bind to the target instead.
	require.Len(t, resolution.Filters, 1)
	assert.Equal(t, "brz_lnd_OPS_EXCEL_GPU", resolution.Filters[0].Table)
	assert.Equal(t, "STATUS", resolution.Filters[0].Column)
}

func TestResolve_UnmatchedFilterHintKeptUnresolved(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{
		SourceMention: "RBP",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.NoError(t, err)

	// brz_lnd_RBP_GPU has no status-like column: the hint stays unresolved
	// instead of defaulting to a guessed name, and the weak link caps
	// overall confidence.
	require.Len(t, resolution.Filters, 1)
	assert.Empty(t, resolution.Filters[0].Column)
	assert.LessOrEqual(t, resolution.Confidence, resolution.Filters[0].Confidence)
}

func TestResolve_AmbiguousColumn(t *testing.T) {
	r := newResolver()
	g := kg.New("amb")
	g.AddTable("lifecycle", nil, []string{"START_STATUS", "END_STATUS"})

	_, err := r.Resolve(models.QueryIntent{
		SourceMention: "lifecycle",
		FilterMentions: []models.FilterMention{
			{ColumnHint: "status", Operator: "=", Value: "inactive"},
		},
	}, g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAmbiguousColumn))

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, models.ErrorTypeAmbiguousColumn, resErr.ErrorType)
	assert.ElementsMatch(t, []string{"START_STATUS", "END_STATUS"}, resErr.Candidates)
}

func TestResolve_Idempotent(t *testing.T) {
	r := newResolver()
	g := testGraph(t)
	intent := models.QueryIntent{SourceMention: "RBP", TargetMention: "OPS Excel"}

	first, err := r.Resolve(intent, g)
	require.NoError(t, err)
	second, err := r.Resolve(intent, g)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_EmptyIntent(t *testing.T) {
	r := newResolver()
	g := testGraph(t)

	resolution, err := r.Resolve(models.QueryIntent{}, g)
	require.NoError(t, err)
	assert.Nil(t, resolution.Source)
	assert.Nil(t, resolution.Target)
	assert.Equal(t, 1.0, resolution.Confidence)
}
