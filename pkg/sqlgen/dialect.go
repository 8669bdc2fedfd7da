// Package sqlgen renders archetype SQL from join plans, with per-dialect
// quoting, escaping, and row limiting.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/glintdata/recon-engine/pkg/models"
)

// Dialect adapts identifier quoting, literal escaping, and row limiting to
// one database family. The dialect is an explicit input on every request.
type Dialect interface {
	// Name returns the dialect identifier.
	Name() models.DialectName

	// QuoteIdentifier quotes a single identifier (never a dotted path).
	QuoteIdentifier(name string) string

	// EscapeLiteral escapes a string value for embedding in a literal.
	EscapeLiteral(value string) string

	// SelectModifier returns text placed directly after SELECT, e.g.
	// "TOP 1000 " for SQL Server. Empty for dialects that limit at the end.
	SelectModifier(limit int) string

	// LimitClause returns the trailing row limit clause, e.g. "LIMIT 1000".
	// Empty for dialects that limit after SELECT.
	LimitClause(limit int) string
}

// ForDialect returns the adapter for a dialect name.
func ForDialect(name models.DialectName) (Dialect, error) {
	switch name {
	case models.DialectSQLServer:
		return sqlServerDialect{}, nil
	case models.DialectMySQL:
		return mysqlDialect{}, nil
	case models.DialectPostgres:
		return postgresDialect{}, nil
	case models.DialectOracle:
		return oracleDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", name)
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() models.DialectName { return models.DialectSQLServer }

func (sqlServerDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlServerDialect) EscapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func (sqlServerDialect) SelectModifier(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("TOP %d ", limit)
}

func (sqlServerDialect) LimitClause(int) string { return "" }

type mysqlDialect struct{}

func (mysqlDialect) Name() models.DialectName { return models.DialectMySQL }

func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) EscapeLiteral(value string) string {
	// MySQL treats backslash as an escape character inside literals.
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", "''")
}

func (mysqlDialect) SelectModifier(int) string { return "" }

func (mysqlDialect) LimitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

type postgresDialect struct{}

func (postgresDialect) Name() models.DialectName { return models.DialectPostgres }

func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) EscapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func (postgresDialect) SelectModifier(int) string { return "" }

func (postgresDialect) LimitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

type oracleDialect struct{}

func (oracleDialect) Name() models.DialectName { return models.DialectOracle }

func (oracleDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (oracleDialect) EscapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func (oracleDialect) SelectModifier(int) string { return "" }

func (oracleDialect) LimitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("FETCH FIRST %d ROWS ONLY", limit)
}
