// Package engine orchestrates the reconciliation pipeline: classify the
// definition, resolve mentions against the knowledge graph, plan joins,
// generate dialect SQL, and execute with bounded retry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/adapters/datasource"
	"github.com/glintdata/recon-engine/pkg/apperrors"
	"github.com/glintdata/recon-engine/pkg/classifier"
	"github.com/glintdata/recon-engine/pkg/config"
	"github.com/glintdata/recon-engine/pkg/executor"
	"github.com/glintdata/recon-engine/pkg/joinpath"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/llm"
	"github.com/glintdata/recon-engine/pkg/models"
	"github.com/glintdata/recon-engine/pkg/resolver"
	"github.com/glintdata/recon-engine/pkg/sqlgen"
)

// ReconciliationRequest is one batch of definitions to reconcile against a
// named knowledge graph. Zero-valued overrides fall back to configuration.
type ReconciliationRequest struct {
	GraphName      string   `json:"graph_name"`
	Definitions    []string `json:"definitions"`
	UseLLM         bool     `json:"use_llm"`
	Dialect        string   `json:"dialect,omitempty"`
	MinConfidence  float64  `json:"min_confidence,omitempty"`
	LimitRecords   int      `json:"limit_records,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// BatchResult holds one outcome per definition, index-aligned with the
// request. A failing definition never removes its slot.
type BatchResult struct {
	GraphName string                      `json:"graph_name"`
	Outcomes  []*models.DefinitionOutcome `json:"outcomes"`
}

// Engine wires the pipeline stages together. Graphs are registered up front;
// requests reference them by name.
type Engine struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	planner    *joinpath.Planner
	querier    datasource.Querier
	logger     *zap.Logger

	mu     sync.RWMutex
	graphs map[string]*kg.Graph
}

// New creates an engine. extractor may be nil to run rule-based only;
// querier is the datasource reconciliation queries execute against.
func New(cfg *config.Config, extractor llm.Extractor, querier datasource.Querier, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		classifier: classifier.New(extractor, cfg.Matching.LowConfidence, logger),
		planner:    joinpath.New(logger),
		querier:    querier,
		logger:     logger.Named("engine"),
		graphs:     make(map[string]*kg.Graph),
	}
}

// RegisterGraph makes a knowledge graph addressable by name.
func (e *Engine) RegisterGraph(g *kg.Graph) error {
	if err := validateGraphName(g.Name()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphs[strings.ToLower(g.Name())] = g
	return nil
}

// Graph returns a registered graph by name.
func (e *Engine) Graph(name string) (*kg.Graph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.graphs[strings.ToLower(name)]
	return g, ok
}

// validateGraphName rejects names that would silently bind to nothing: the
// empty string and the literal "default", which earlier deployments used as
// a placeholder that matched no real graph.
func validateGraphName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, "default") {
		return fmt.Errorf("graph name %q: %w", name, apperrors.ErrInvalidGraphName)
	}
	return nil
}

// Run executes a batch. The whole request is rejected before any work when
// the graph name is invalid or unknown; after that point every definition
// yields exactly one outcome, successes and failures alike.
func (e *Engine) Run(ctx context.Context, req *ReconciliationRequest) (*BatchResult, error) {
	if err := validateGraphName(req.GraphName); err != nil {
		return nil, err
	}
	graph, ok := e.Graph(req.GraphName)
	if !ok {
		return nil, fmt.Errorf("graph %q: %w", req.GraphName, apperrors.ErrInvalidGraphName)
	}
	if len(req.Definitions) == 0 {
		return nil, fmt.Errorf("request has no definitions")
	}

	dialectName := req.Dialect
	if dialectName == "" {
		dialectName = e.cfg.Dialect
	}
	dialect, err := models.ParseDialect(dialectName)
	if err != nil {
		return nil, err
	}

	run := e.newRun(req, graph, dialect)

	e.logger.Info("Running reconciliation batch",
		zap.String("graph", graph.Name()),
		zap.Int("definitions", len(req.Definitions)),
		zap.String("dialect", string(dialect)))

	outcomes := runBounded(ctx, e.cfg.Execution.MaxConcurrent, len(req.Definitions),
		func(ctx context.Context, i int) *models.DefinitionOutcome {
			return run.definition(ctx, req.Definitions[i])
		})

	return &BatchResult{GraphName: graph.Name(), Outcomes: outcomes}, nil
}

// batchRun carries the per-request stage instances so overrides never leak
// between concurrent batches.
type batchRun struct {
	engine   *Engine
	graph    *kg.Graph
	dialect  models.DialectName
	useLLM   bool
	resolver *resolver.Resolver
	gen      *sqlgen.Generator
	exec     *executor.Executor
}

func (e *Engine) newRun(req *ReconciliationRequest, graph *kg.Graph, dialect models.DialectName) *batchRun {
	minConfidence := req.MinConfidence
	if minConfidence == 0 {
		minConfidence = e.cfg.Matching.MinConfidence
	}
	limit := req.LimitRecords
	if limit <= 0 {
		limit = e.cfg.Execution.LimitRecords
	}
	timeoutSeconds := req.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = e.cfg.Execution.TimeoutSeconds
	}

	return &batchRun{
		engine:   e,
		graph:    graph,
		dialect:  dialect,
		useLLM:   req.UseLLM,
		resolver: resolver.New(minConfidence, e.cfg.Matching.AmbiguityEpsilon, e.logger),
		gen:      sqlgen.New(limit, e.logger),
		exec:     executor.New(time.Duration(timeoutSeconds)*time.Second, limit, e.logger),
	}
}

// definition runs the full pipeline for one definition. It never returns an
// error; every failure becomes a terminal outcome.
func (r *batchRun) definition(ctx context.Context, text string) *models.DefinitionOutcome {
	intent := r.engine.classifier.Classify(ctx, text, r.useLLM)

	resolution, err := r.resolver.Resolve(intent, r.graph)
	if err != nil {
		return failedOutcome(text, errorTypeFor(err), err.Error())
	}

	tables, err := planTables(intent.Archetype, resolution)
	if err != nil {
		return failedOutcome(text, models.ErrorTypeUnresolvedEntity, err.Error())
	}

	plan, err := r.engine.planner.Build(tables, intent.Archetype, r.graph)
	if err != nil {
		return failedOutcome(text, errorTypeFor(err), err.Error())
	}
	attachFilters(plan, resolution)

	sqlText, err := r.gen.Generate(intent.Archetype, plan, r.dialect)
	if err != nil {
		return failedOutcome(text, errorTypeFor(err), err.Error())
	}

	result := r.exec.Execute(ctx, r.engine.querier, sqlText)
	result.Confidence = minConfidence(intent.ExtractionConfidence, resolution.Confidence, plan.Confidence)

	return &models.DefinitionOutcome{
		Definition: text,
		Result:     result,
		Provenance: provenanceOf(resolution, plan),
		SQLText:    sqlText,
	}
}

// planTables orders the plan kept-side-first: anti-join archetypes put the
// excluded table last, which is where the generator expects it.
func planTables(archetype models.Archetype, res *models.Resolution) ([]string, error) {
	switch archetype {
	case models.ArchetypeFiltered, models.ArchetypeInactiveCount:
		if res.Source == nil {
			return nil, fmt.Errorf("definition does not name a table")
		}
		return []string{res.Source.ResolvedTable}, nil
	case models.ArchetypeUnmatchedTarget:
		if res.Source == nil || res.Target == nil {
			return nil, fmt.Errorf("definition does not name both tables")
		}
		return []string{res.Target.ResolvedTable, res.Source.ResolvedTable}, nil
	default:
		if res.Source == nil || res.Target == nil {
			return nil, fmt.Errorf("definition does not name both tables")
		}
		return []string{res.Source.ResolvedTable, res.Target.ResolvedTable}, nil
	}
}

// attachFilters copies fully resolved filters into the plan. Hints that did
// not match a physical column are dropped here; they already lowered the
// resolution confidence.
func attachFilters(plan *models.JoinPlan, res *models.Resolution) {
	for _, f := range res.Filters {
		if f.Column == "" {
			continue
		}
		plan.Filters = append(plan.Filters, models.FilterClause{
			Table:    f.Table,
			Column:   f.Column,
			Operator: f.Hint.Operator,
			Value:    f.Hint.Value,
		})
	}
}

func provenanceOf(res *models.Resolution, plan *models.JoinPlan) *models.Provenance {
	p := &models.Provenance{}
	if res.Source != nil {
		p.SourceTable = res.Source.ResolvedTable
	}
	if res.Target != nil {
		p.TargetTable = res.Target.ResolvedTable
	}
	if len(plan.Joins) > 0 {
		j := plan.Joins[0]
		if j.RightTable == p.SourceTable {
			p.SourceColumn = j.RightColumn
			p.TargetColumn = j.LeftColumn
		} else {
			p.SourceColumn = j.LeftColumn
			p.TargetColumn = j.RightColumn
		}
	}
	return p
}

// errorTypeFor maps pipeline errors onto the reported error taxonomy.
func errorTypeFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnresolvedEntity):
		return models.ErrorTypeUnresolvedEntity
	case errors.Is(err, apperrors.ErrAmbiguousColumn):
		return models.ErrorTypeAmbiguousColumn
	case errors.Is(err, apperrors.ErrNoJoinPath):
		return models.ErrorTypeNoJoinPath
	default:
		return models.ErrorTypeInvalidRequest
	}
}

func failedOutcome(definition, errorType, message string) *models.DefinitionOutcome {
	return &models.DefinitionOutcome{
		Definition: definition,
		Result: &models.ExecutionResult{
			ID:           uuid.New(),
			Status:       models.ExecutionStatusFailed,
			ErrorType:    errorType,
			ErrorMessage: message,
		},
	}
}

func minConfidence(values ...float64) float64 {
	min := 1.0
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
