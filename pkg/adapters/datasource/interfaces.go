// Package datasource defines the adapter surface between the engine and the
// databases it reconciles. Each dialect lives in its own subpackage and
// registers itself at init time.
package datasource

import (
	"context"

	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/models"
)

// QueryResult holds the rows returned by one SELECT.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Querier runs generated SQL against a datasource. Implementations own their
// connection and must be closed when done.
type Querier interface {
	// Query runs a single SELECT statement. Row limits are already embedded
	// in the SQL by the generator; the querier never rewrites the statement.
	Query(ctx context.Context, sqlText string) (*QueryResult, error)

	// Ping verifies the datasource is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Adapter is a full datasource binding: schema discovery for knowledge graph
// ingestion plus query execution for reconciliation runs.
type Adapter interface {
	kg.SchemaSource
	Querier

	// Dialect returns the SQL dialect this adapter speaks.
	Dialect() models.DialectName
}
