// Package resolver maps entity mentions from a classified intent to
// physical tables and columns using the knowledge graph. Resolution is
// read-only with respect to the graph and safe to call concurrently.
package resolver

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/apperrors"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/models"
)

// Column match confidence per strategy, mirroring table matching.
const (
	columnExactConfidence   = 1.0
	columnPatternConfidence = 0.85
)

// ResolutionError is a resolution-time failure with enough detail to act
// on: which mention failed and which candidates were considered.
type ResolutionError struct {
	ErrorType  string // models.ErrorType* value
	Mention    string
	Candidates []string
	err        error
}

func (e *ResolutionError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%s: %q (candidates: %s)", e.err, e.Mention, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("%s: %q", e.err, e.Mention)
}

func (e *ResolutionError) Unwrap() error {
	return e.err
}

// Resolver resolves intents against a knowledge graph.
type Resolver struct {
	minConfidence    float64
	ambiguityEpsilon float64
	logger           *zap.Logger
}

// New creates a resolver. minConfidence is the acceptance floor for any
// match; ambiguityEpsilon is the margin within which two candidates are
// considered indistinguishable.
func New(minConfidence, ambiguityEpsilon float64, logger *zap.Logger) *Resolver {
	return &Resolver{
		minConfidence:    minConfidence,
		ambiguityEpsilon: ambiguityEpsilon,
		logger:           logger.Named("resolver"),
	}
}

// Resolve maps the intent's mentions to physical schema objects.
// A present mention that cannot be resolved unambiguously above the floor
// fails the definition with a ResolutionError; the caller reports it and
// moves on to the next definition in the batch.
func (r *Resolver) Resolve(intent models.QueryIntent, graph *kg.Graph) (*models.Resolution, error) {
	resolution := &models.Resolution{Confidence: 1.0}

	if intent.SourceMention != "" {
		entity, err := r.resolveMention(intent.SourceMention, graph)
		if err != nil {
			return nil, err
		}
		resolution.Source = entity
		if entity.MatchConfidence < resolution.Confidence {
			resolution.Confidence = entity.MatchConfidence
		}
	}

	if intent.TargetMention != "" {
		entity, err := r.resolveMention(intent.TargetMention, graph)
		if err != nil {
			return nil, err
		}
		resolution.Target = entity
		if entity.MatchConfidence < resolution.Confidence {
			resolution.Confidence = entity.MatchConfidence
		}
	}

	// Filters bind to the kept side of the plan: the target table for the
	// mirrored anti-join, the source everywhere else. The excluded side of
	// an anti-join is NULL by construction, so hints never bind there; for
	// the other archetypes a hint the primary table cannot satisfy may fall
	// back to the second table.
	primary, secondary := resolution.Source, resolution.Target
	switch {
	case intent.Archetype == models.ArchetypeUnmatchedTarget:
		primary, secondary = resolution.Target, nil
	case intent.Archetype.AntiJoin():
		secondary = nil
	}
	if primary == nil {
		primary, secondary = secondary, nil
	}

	for _, mention := range intent.FilterMentions {
		resolved, err := r.resolveFilter(mention, primary, graph)
		if err != nil {
			return nil, err
		}
		if resolved.Column == "" && secondary != nil {
			alt, err := r.resolveFilter(mention, secondary, graph)
			if err != nil {
				return nil, err
			}
			if alt.Column != "" {
				resolved = alt
			}
		}
		resolution.Filters = append(resolution.Filters, resolved)
		if resolved.Column == "" && resolved.Confidence < resolution.Confidence {
			// An unresolved hint is a weak link; cap overall confidence at
			// its best score rather than pretending it resolved.
			resolution.Confidence = resolved.Confidence
		}
	}

	return resolution, nil
}

func (r *Resolver) resolveMention(mention string, graph *kg.Graph) (*models.ResolvedEntity, error) {
	matches := graph.FindTable(mention)

	if len(matches) == 0 || matches[0].Confidence < r.minConfidence {
		best := graph.BestEffortScore(mention)
		r.logger.Debug("Mention unresolved",
			zap.String("mention", mention),
			zap.Float64("best_score", best))
		return nil, &ResolutionError{
			ErrorType: models.ErrorTypeUnresolvedEntity,
			Mention:   mention,
			err:       apperrors.ErrUnresolvedEntity,
		}
	}

	// Two distinct tables scoring within epsilon of each other cannot be
	// told apart; refusing beats silently picking one.
	if len(matches) > 1 &&
		matches[0].Table.Name != matches[1].Table.Name &&
		matches[0].Confidence-matches[1].Confidence < r.ambiguityEpsilon {
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Table.Name)
		}
		return nil, &ResolutionError{
			ErrorType:  models.ErrorTypeUnresolvedEntity,
			Mention:    mention,
			Candidates: candidates,
			err:        apperrors.ErrUnresolvedEntity,
		}
	}

	top := matches[0]
	return &models.ResolvedEntity{
		Mention:         mention,
		ResolvedTable:   top.Table.Name,
		MatchStrategy:   top.Strategy,
		MatchConfidence: top.Confidence,
	}, nil
}

// columnMatch is one candidate column with its score.
type columnMatch struct {
	column     string
	confidence float64
}

// resolveFilter matches a filter hint against the resolved table's column
// list with the same three-strategy ladder, scoped to that one table.
// An unmatched hint is kept unresolved, never defaulted to a guessed name.
func (r *Resolver) resolveFilter(mention models.FilterMention, table *models.ResolvedEntity, graph *kg.Graph) (models.ResolvedFilter, error) {
	resolved := models.ResolvedFilter{Hint: mention}

	if table == nil {
		return resolved, nil
	}
	node, ok := graph.Table(table.ResolvedTable)
	if !ok {
		return resolved, nil
	}

	matches := matchColumns(node, mention.ColumnHint, r.minConfidence)
	if len(matches) == 0 {
		resolved.Confidence = bestColumnScore(node, mention.ColumnHint)
		r.logger.Debug("Filter hint unresolved",
			zap.String("hint", mention.ColumnHint),
			zap.String("table", node.Name),
			zap.Float64("best_score", resolved.Confidence))
		return resolved, nil
	}

	if len(matches) > 1 && matches[0].confidence-matches[1].confidence < r.ambiguityEpsilon {
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.column)
		}
		return resolved, &ResolutionError{
			ErrorType:  models.ErrorTypeAmbiguousColumn,
			Mention:    mention.ColumnHint,
			Candidates: candidates,
			err:        apperrors.ErrAmbiguousColumn,
		}
	}

	resolved.Table = node.Name
	resolved.Column = matches[0].column
	resolved.Confidence = matches[0].confidence
	return resolved, nil
}

// matchColumns scores a hint against every column of one table, best first.
func matchColumns(node *kg.TableNode, hint string, floor float64) []columnMatch {
	var exact, pattern, fuzzy []columnMatch

	normalizedHint := kg.Normalize(hint)
	for _, col := range node.Columns {
		switch {
		case strings.EqualFold(col, hint):
			exact = append(exact, columnMatch{column: col, confidence: columnExactConfidence})
		case normalizedHint != "" && kg.Normalize(col) == normalizedHint:
			pattern = append(pattern, columnMatch{column: col, confidence: columnPatternConfidence})
		default:
			if score := kg.TokenSetRatio(hint, col); score >= floor {
				fuzzy = append(fuzzy, columnMatch{column: col, confidence: score})
			}
		}
	}

	// Same ladder as table matching: the first strategy with hits wins.
	var matches []columnMatch
	switch {
	case len(exact) > 0:
		matches = exact
	case len(pattern) > 0:
		matches = pattern
	default:
		matches = fuzzy
	}

	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].confidence > matches[j-1].confidence; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}

func bestColumnScore(node *kg.TableNode, hint string) float64 {
	var best float64
	for _, col := range node.Columns {
		if score := kg.TokenSetRatio(hint, col); score > best {
			best = score
		}
	}
	return best
}
