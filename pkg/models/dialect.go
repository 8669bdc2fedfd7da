package models

import "fmt"

// DialectName identifies a supported database family. The dialect is an
// explicit input on every request, never inferred from the connection.
type DialectName string

const (
	DialectSQLServer DialectName = "sqlserver"
	DialectMySQL     DialectName = "mysql"
	DialectPostgres  DialectName = "postgres"
	DialectOracle    DialectName = "oracle"
)

// ParseDialect normalizes a dialect identifier from a request.
func ParseDialect(s string) (DialectName, error) {
	switch DialectName(s) {
	case DialectSQLServer, DialectMySQL, DialectPostgres, DialectOracle:
		return DialectName(s), nil
	case "mssql": // common alias
		return DialectSQLServer, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", s)
}
