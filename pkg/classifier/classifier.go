// Package classifier turns free-text reconciliation definitions into typed
// query intents. A deterministic rule pass runs first; when an extraction
// capability is injected and enabled, its output is merged in, keeping the
// higher-confidence entity per slot.
package classifier

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/llm"
	"github.com/glintdata/recon-engine/pkg/models"
)

// Rule-pass confidence levels.
const (
	confArchetypeAndBothMentions = 0.8
	confArchetypeAndOneMention   = 0.6
	confArchetypeOnly            = 0.5

	// DefaultLowConfidence marks intents that fell through every rule.
	DefaultLowConfidence = 0.3
)

// StatusHint is the semantic hint attached to inactivity cues. It names a
// concept, not a column; the resolver matches it against the real column
// list per table. Hard-coding a physical "status" column here broke tables
// without one.
const StatusHint = "status"

// Classifier classifies definition text into query intents.
type Classifier struct {
	extractor     llm.Extractor // nil when extraction is disabled
	lowConfidence float64
	logger        *zap.Logger
}

// New creates a classifier. extractor may be nil.
func New(extractor llm.Extractor, lowConfidence float64, logger *zap.Logger) *Classifier {
	if lowConfidence <= 0 {
		lowConfidence = DefaultLowConfidence
	}
	return &Classifier{
		extractor:     extractor,
		lowConfidence: lowConfidence,
		logger:        logger.Named("classifier"),
	}
}

// Classify produces a QueryIntent for one definition. With useLLM false or
// no extractor configured, the result is fully deterministic.
func (c *Classifier) Classify(ctx context.Context, text string, useLLM bool) models.QueryIntent {
	intent := c.ruleClassify(text)

	if useLLM && c.extractor != nil {
		extraction, err := c.extractor.Extract(ctx, text)
		if err != nil {
			// The capability is advisory. Fall through to the rule result.
			c.logger.Warn("Extraction capability failed, using rule-based intent",
				zap.Error(err))
		} else if extraction != nil {
			intent = c.merge(intent, extraction)
		}
	}

	if !intent.Archetype.Valid() {
		// Neither pass found an archetype: fall back to FILTERED with a
		// low-confidence marker that propagates to the final result.
		intent.Archetype = models.ArchetypeFiltered
		if intent.ExtractionConfidence > c.lowConfidence {
			intent.ExtractionConfidence = c.lowConfidence
		}
	}

	return intent
}

// ruleClassify is the deterministic keyword pass.
func (c *Classifier) ruleClassify(text string) models.QueryIntent {
	intent := models.QueryIntent{RawText: text}
	lower := strings.ToLower(text)

	hasUnmatched := containsAny(lower, "missing", "not in", "not present", "are not", "except")
	hasMatched := containsAny(lower, "in both", "matching", "matched", "common to", "present in both")
	hasCount := containsAny(lower, "count", "how many", "number of")
	statusValue := statusCue(lower)

	switch {
	case hasUnmatched:
		intent.Archetype = models.ArchetypeUnmatchedSource
	case hasMatched:
		intent.Archetype = models.ArchetypeMatched
	case hasCount:
		intent.Archetype = models.ArchetypeInactiveCount
	case statusValue != "":
		intent.Archetype = models.ArchetypeFiltered
	}

	if statusValue != "" {
		intent.FilterMentions = append(intent.FilterMentions, models.FilterMention{
			ColumnHint: StatusHint,
			Operator:   "=",
			Value:      statusValue,
		})
	}

	mentions := extractMentions(text)
	if len(mentions) > 0 {
		intent.SourceMention = mentions[0]
	}
	if len(mentions) > 1 {
		intent.TargetMention = mentions[1]
	}

	switch {
	case intent.Archetype == "":
		intent.ExtractionConfidence = 0
	case intent.SourceMention != "" && intent.TargetMention != "":
		intent.ExtractionConfidence = confArchetypeAndBothMentions
	case intent.SourceMention != "":
		intent.ExtractionConfidence = confArchetypeAndOneMention
	default:
		intent.ExtractionConfidence = confArchetypeOnly
	}

	return intent
}

// merge folds an extraction into the rule-based intent, keeping the
// higher-confidence entity per slot. Output confidence is the max of the
// two passes.
func (c *Classifier) merge(intent models.QueryIntent, extraction *llm.Extraction) models.QueryIntent {
	if intent.Archetype == "" && models.Archetype(extraction.Archetype).Valid() {
		intent.Archetype = models.Archetype(extraction.Archetype)
	}

	ruleConfidence := intent.ExtractionConfidence
	for _, entity := range extraction.Entities {
		switch entity.Role {
		case llm.RoleSource:
			if intent.SourceMention == "" || entity.Confidence > ruleConfidence {
				intent.SourceMention = entity.Mention
			}
		case llm.RoleTarget:
			if intent.TargetMention == "" || entity.Confidence > ruleConfidence {
				intent.TargetMention = entity.Mention
			}
		}
	}

	for _, f := range extraction.Filters {
		if !hasFilterHint(intent.FilterMentions, f.ColumnHint) {
			intent.FilterMentions = append(intent.FilterMentions, models.FilterMention{
				ColumnHint: f.ColumnHint,
				Operator:   f.Operator,
				Value:      f.Value,
			})
		}
	}

	if extraction.Confidence > intent.ExtractionConfidence {
		intent.ExtractionConfidence = extraction.Confidence
	}

	return intent
}

// statusCue returns the status value implied by inactivity keywords, or "".
func statusCue(lower string) string {
	for _, cue := range []string{"inactive", "obsolete", "discontinued", "deprecated"} {
		if strings.Contains(lower, cue) {
			return cue
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasFilterHint(filters []models.FilterMention, hint string) bool {
	for _, f := range filters {
		if strings.EqualFold(f.ColumnHint, hint) {
			return true
		}
	}
	return false
}

// Words that look like mentions but never are. Sentence-case prose words
// land here so "Show me all products in RBP" yields only "RBP".
var mentionStopwords = map[string]bool{
	"show": true, "me": true, "all": true, "the": true, "a": true, "an": true,
	"list": true, "get": true, "find": true, "display": true, "give": true,
	"products": true, "product": true, "records": true, "record": true,
	"rows": true, "items": true, "item": true, "entries": true, "data": true,
	"in": true, "from": true, "which": true, "that": true, "are": true,
	"is": true, "not": true, "also": true, "and": true, "or": true, "but": true,
	"missing": true, "matching": true, "matched": true, "both": true,
	"count": true, "how": true, "many": true, "number": true, "of": true,
	"inactive": true, "obsolete": true, "discontinued": true, "where": true,
	"with": true, "without": true, "present": true, "please": true,
}

// extractMentions pulls candidate table mentions out of the text using the
// capitalized/known-term heuristic: runs of words that are upper-cased,
// mixed-case, or carry digits/underscores, with stopwords excluded. Order
// of appearance is preserved because it drives source/target assignment.
func extractMentions(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ';' || r == '?' || r == '!' || r == '\n' || r == '\t'
	})

	var mentions []string
	var run []string

	flush := func() {
		if len(run) > 0 {
			mentions = append(mentions, strings.Join(run, " "))
			run = nil
		}
	}

	for _, w := range words {
		if mentionStopwords[strings.ToLower(w)] {
			flush()
			continue
		}
		// A capitalized word continues a run ("OPS Excel"), but cannot
		// start one on its own, so sentence-initial prose stays out.
		if looksLikeTerm(w) || (len(run) > 0 && isCapitalized(w)) {
			run = append(run, w)
			continue
		}
		flush()
	}
	flush()

	return mentions
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// looksLikeTerm reports whether a word plausibly names a schema object:
// all-caps, contains an underscore or digit, or capitalized with further
// upper-case letters (CamelCase).
func looksLikeTerm(w string) bool {
	if strings.ContainsAny(w, "_0123456789") {
		return true
	}

	var upper, letters int
	for _, r := range w {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	// All-caps terms (RBP, GPU) or internal capitals (PlanningSku).
	return upper == letters || upper >= 2
}
