package kg

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// TokenSetRatio scores how well two strings match regardless of token order
// or repeated tokens. Both inputs are normalized, split into token sets,
// and compared as (shared tokens) vs (shared tokens + each side's
// remainder); the best pairwise similarity wins. Returns a score in [0,1].
//
// The token-set construction makes "OPS Excel" score highly against
// "brz_lnd_OPS_EXCEL_GPU" even though the physical name carries extra
// tokens.
func TokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared, onlyA, onlyB := splitTokens(ta, tb)

	base := strings.Join(shared, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	lev := metrics.NewLevenshtein()
	best := strutil.Similarity(withA, withB, lev)
	if base != "" {
		if s := strutil.Similarity(base, withA, lev); s > best {
			best = s
		}
		if s := strutil.Similarity(base, withB, lev); s > best {
			best = s
		}
	}
	return best
}

// tokenSet lowercases, splits on non-alphanumerics, and dedupes.
func tokenSet(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// splitTokens partitions two sorted token sets into shared tokens and each
// side's remainder.
func splitTokens(a, b []string) (shared, onlyA, onlyB []string) {
	inB := make(map[string]bool, len(b))
	for _, t := range b {
		inB[t] = true
	}

	inShared := make(map[string]bool)
	for _, t := range a {
		if inB[t] {
			shared = append(shared, t)
			inShared[t] = true
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if !inShared[t] {
			onlyB = append(onlyB, t)
		}
	}
	return shared, onlyA, onlyB
}
