package sqlgen

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/glintdata/recon-engine/pkg/apperrors"
)

var allowedOperators = map[string]string{
	"=":        "=",
	"!=":       "<>",
	"<>":       "<>",
	"<":        "<",
	"<=":       "<=",
	">":        ">",
	">=":       ">=",
	"eq":       "=",
	"ne":       "<>",
	"like":     "LIKE",
	"not like": "NOT LIKE",
}

// normalizeOperator maps a filter operator onto the SQL form, rejecting
// anything outside the comparison allowlist.
func normalizeOperator(op string) (string, error) {
	if op == "" {
		return "=", nil
	}
	if sql, ok := allowedOperators[op]; ok {
		return sql, nil
	}
	if sql, ok := allowedOperators[lowerASCII(op)]; ok {
		return sql, nil
	}
	return "", fmt.Errorf("unsupported filter operator %q", op)
}

// screenValue rejects filter literals that scan as SQL injection payloads.
// Values are escaped before embedding regardless; the screen catches inputs
// that are hostile rather than merely awkward.
func screenValue(value string) error {
	if injected, fingerprint := libinjection.IsSQLi(value); injected {
		return fmt.Errorf("filter value matched injection fingerprint %s: %w",
			fingerprint, apperrors.ErrUnsafeFilterValue)
	}
	return nil
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
