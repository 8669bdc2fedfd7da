package executor

import (
	"regexp"
	"strings"
)

var (
	bracketQuoted = regexp.MustCompile(`\[([^\]]+)\]`)
	doubleQuoted  = regexp.MustCompile(`"([^"]+)"`)
	backQuoted    = regexp.MustCompile("`([^`]+)`")

	// A bare identifier immediately followed by a dot and an opening quote,
	// e.g. dbo.[orders] or staging."orders".
	barePrefix = regexp.MustCompile("([A-Za-z_][A-Za-z0-9_$]*)\\.([\\[\"`])")

	// Table aliases emitted by the generator (t1, t2, ...). Their column
	// references look like qualifier dots and must survive stripping.
	generatedAlias = regexp.MustCompile(`^t\d+$`)
)

// StripSchemaQualifiers rewrites a statement with schema qualifiers removed
// from table identifiers, covering both the quoted-whole form ([dbo.orders])
// and the prefix form (dbo.[orders]). Generated column references keep their
// table alias, and single-quoted string literals pass through untouched.
func StripSchemaQualifiers(sqlText string) string {
	var out strings.Builder
	out.Grow(len(sqlText))

	start := 0
	inLiteral := false
	for i := 0; i < len(sqlText); i++ {
		if sqlText[i] != '\'' {
			continue
		}
		if !inLiteral {
			out.WriteString(stripSegment(sqlText[start:i]))
			start = i
			inLiteral = true
			continue
		}
		// A doubled quote is an escape that stays inside the literal.
		if i+1 < len(sqlText) && sqlText[i+1] == '\'' {
			i++
			continue
		}
		out.WriteString(sqlText[start : i+1])
		start = i + 1
		inLiteral = false
	}
	if inLiteral {
		out.WriteString(sqlText[start:])
	} else {
		out.WriteString(stripSegment(sqlText[start:]))
	}
	return out.String()
}

// stripSegment applies the qualifier rewrites to text outside literals.
func stripSegment(sqlText string) string {
	out := barePrefix.ReplaceAllStringFunc(sqlText, func(m string) string {
		parts := barePrefix.FindStringSubmatch(m)
		if generatedAlias.MatchString(parts[1]) {
			return m
		}
		return parts[2]
	})

	out = bracketQuoted.ReplaceAllStringFunc(out, func(m string) string {
		return "[" + afterLastDot(m[1:len(m)-1]) + "]"
	})
	out = doubleQuoted.ReplaceAllStringFunc(out, func(m string) string {
		return `"` + afterLastDot(m[1:len(m)-1]) + `"`
	})
	out = backQuoted.ReplaceAllStringFunc(out, func(m string) string {
		return "`" + afterLastDot(m[1:len(m)-1]) + "`"
	})
	return out
}

func afterLastDot(s string) string {
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
