package sqlgen

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the SQL text contains more than one
// statement. The executor refuses batches; every archetype renders to a
// single SELECT.
var ErrMultipleStatements = errors.New("sql text contains multiple statements")

// NormalizeStatement trims the text, strips a trailing semicolon, and
// rejects anything that still contains a semicolon outside string literals.
func NormalizeStatement(sqlText string) (string, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return "", nil
	}

	normalized := strings.TrimRight(strings.TrimSuffix(strings.TrimRight(sqlText, " \t\r\n"), ";"), " \t\r\n")
	if semicolonOutsideLiterals(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// semicolonOutsideLiterals scans the statement with a small quote-state
// machine. A trailing semicolon has already been stripped, so any hit means
// a second statement.
func semicolonOutsideLiterals(sqlText string) bool {
	const (
		plain = iota
		singleQuoted
		doubleQuoted
	)

	state := plain
	var prev rune
	for _, ch := range sqlText {
		switch state {
		case plain:
			switch ch {
			case ';':
				return true
			case '\'':
				state = singleQuoted
			case '"':
				state = doubleQuoted
			}
		case singleQuoted:
			// A doubled quote ('') exits and immediately re-enters, which
			// still tracks the literal correctly.
			if ch == '\'' && prev != '\\' {
				state = plain
			}
		case doubleQuoted:
			if ch == '"' && prev != '\\' {
				state = plain
			}
		}
		prev = ch
	}
	return false
}
