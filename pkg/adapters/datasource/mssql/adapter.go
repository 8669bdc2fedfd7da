// Package mssql implements the SQL Server datasource adapter on the
// Microsoft go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/adapters/datasource"
	"github.com/glintdata/recon-engine/pkg/config"
	"github.com/glintdata/recon-engine/pkg/kg"
	"github.com/glintdata/recon-engine/pkg/logging"
	"github.com/glintdata/recon-engine/pkg/models"
)

func init() {
	datasource.Register("sqlserver", func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (datasource.Adapter, error) {
		return New(ctx, cfg, logger)
	})
}

// Adapter speaks to SQL Server through database/sql.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens the connection. database/sql connects lazily, so failures
// surface on the first Ping or query.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Adapter, error) {
	connStr := buildConnectionString(cfg)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %s", logging.SanitizeError(err))
	}

	logger.Debug("SQL Server connection opened",
		zap.String("conn", logging.SanitizeConnectionString(connStr)))

	return &Adapter{
		db:     db,
		logger: logger.Named("mssql"),
	}, nil
}

func buildConnectionString(cfg config.DatabaseConfig) string {
	query := url.Values{}
	query.Set("database", cfg.Database)
	query.Set("encrypt", "true")
	query.Set("TrustServerCertificate", "true")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (a *Adapter) Dialect() models.DialectName { return models.DialectSQLServer }

// Ping verifies the database is reachable with valid credentials.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlserver: %s", logging.SanitizeError(err))
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Query runs a single SELECT and materializes the rows.
func (a *Adapter) Query(ctx context.Context, sqlText string) (*datasource.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datasource.QueryResult{Columns: columns, Rows: resultRows}, nil
}

// normalizeValue converts driver byte slices to strings so results survive
// JSON encoding without base64 surprises.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Tables returns all user tables, excluding system schemas.
func (a *Adapter) Tables(ctx context.Context) ([]kg.TableRef, error) {
	const query = `
		SELECT s.name, t.name
		FROM sys.tables t
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []kg.TableRef
	for rows.Next() {
		var t kg.TableRef
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// Columns returns the ordered column names of one table.
func (a *Adapter) Columns(ctx context.Context, schema, table string) ([]string, error) {
	const query = `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// ForeignKeys returns all FK constraints from the system catalog.
func (a *Adapter) ForeignKeys(ctx context.Context) ([]kg.ForeignKeyRef, error) {
	const query = `
		SELECT
			tp.name AS source_table,
			cp.name AS source_column,
			tr.name AS referenced_table,
			cr.name AS referenced_column
		FROM sys.foreign_key_columns fkc
		JOIN sys.tables tp ON fkc.parent_object_id = tp.object_id
		JOIN sys.columns cp ON fkc.parent_object_id = cp.object_id AND fkc.parent_column_id = cp.column_id
		JOIN sys.tables tr ON fkc.referenced_object_id = tr.object_id
		JOIN sys.columns cr ON fkc.referenced_object_id = cr.object_id AND fkc.referenced_column_id = cr.column_id
		ORDER BY tp.name, cp.name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []kg.ForeignKeyRef
	for rows.Next() {
		var fk kg.ForeignKeyRef
		if err := rows.Scan(&fk.SourceTable, &fk.SourceColumn, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}
