// Package executor runs generated SQL against a datasource with a bounded
// retry policy and append-only attempt history.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/adapters/datasource"
	"github.com/glintdata/recon-engine/pkg/logging"
	"github.com/glintdata/recon-engine/pkg/models"
	"github.com/glintdata/recon-engine/pkg/sqlgen"
)

// Executor owns the execution lifecycle of one statement: PENDING, RUNNING,
// then exactly one terminal state. A missing-table error earns a single
// retry with schema qualifiers stripped; every other failure is terminal on
// the first attempt, so a result carries one or two attempts, never more.
type Executor struct {
	timeout     time.Duration
	sampleLimit int
	logger      *zap.Logger
}

// New creates an executor. timeout bounds each attempt; sampleLimit caps the
// rows retained on the result.
func New(timeout time.Duration, sampleLimit int, logger *zap.Logger) *Executor {
	return &Executor{
		timeout:     timeout,
		sampleLimit: sampleLimit,
		logger:      logger.Named("executor"),
	}
}

// Execute runs sqlText against the querier and returns a terminal result.
// The result is always non-nil, including on failure.
func (e *Executor) Execute(ctx context.Context, q datasource.Querier, sqlText string) *models.ExecutionResult {
	result := &models.ExecutionResult{
		ID:     uuid.New(),
		Status: models.ExecutionStatusPending,
	}

	normalized, err := sqlgen.NormalizeStatement(sqlText)
	if err != nil || normalized == "" {
		result.Status = models.ExecutionStatusFailed
		result.ErrorType = models.ErrorTypeInvalidRequest
		result.ErrorMessage = "sql text is empty or contains multiple statements"
		return result
	}

	result.Status = models.ExecutionStatusRunning
	missingTable := e.attempt(ctx, q, normalized, models.AttemptFirst, result)

	// One retry, only for the missing-object class, and only when stripping
	// actually changed the statement.
	if missingTable {
		stripped := StripSchemaQualifiers(normalized)
		if stripped != normalized {
			e.logger.Info("Retrying without schema qualifiers",
				zap.String("result_id", result.ID.String()))
			result.Status = models.ExecutionStatusRunning
			result.ErrorType = ""
			result.ErrorMessage = ""
			e.attempt(ctx, q, stripped, models.AttemptRetryNoSchema, result)
		}
	}

	return result
}

// attempt issues one query and moves the result to a terminal state on
// success, timeout, or failure. Returns true when the failure is the
// missing-table class that qualifies for the schema-strip retry.
func (e *Executor) attempt(ctx context.Context, q datasource.Querier, sqlText, kind string, result *models.ExecutionResult) bool {
	result.Attempts = append(result.Attempts, models.ExecutionAttempt{
		AttemptKind: kind,
		SQLText:     sqlText,
		StartedAt:   time.Now().UTC(),
	})

	e.logger.Debug("Executing query",
		zap.String("attempt", kind),
		zap.String("sql", logging.SanitizeSQL(sqlText)))

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := q.Query(attemptCtx, sqlText)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			result.Status = models.ExecutionStatusTimeout
			result.ErrorType = models.ErrorTypeTimeout
			result.ErrorMessage = "query exceeded the execution deadline"
			return false
		}

		// A cancelled batch is not a timeout; report it as a plain failure
		// and never retry.
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
			result.Status = models.ExecutionStatusFailed
			result.ErrorType = models.ErrorTypeExecutionFailure
			result.ErrorMessage = "query cancelled"
			return false
		}

		result.Status = models.ExecutionStatusFailed
		result.ErrorType = models.ErrorTypeExecutionFailure
		result.ErrorMessage = logging.SanitizeError(err)

		e.logger.Warn("Query attempt failed",
			zap.String("attempt", kind),
			zap.String("error", result.ErrorMessage))
		return isMissingTable(err)
	}

	result.Status = models.ExecutionStatusSuccess
	result.RecordCount = len(res.Rows)
	if len(res.Rows) > e.sampleLimit {
		result.SampleRecords = res.Rows[:e.sampleLimit]
	} else {
		result.SampleRecords = res.Rows
	}
	return false
}

// isMissingTable reports whether err is the missing-object class that the
// schema-strip retry can help with: SQL Server error 208 (invalid object
// name) or PostgreSQL 42P01 (undefined table).
func isMissingTable(err error) bool {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Number == 208
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}

	// Driver-agnostic fallback for wrapped or stringified errors.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid object name") ||
		strings.Contains(msg, "does not exist")
}
