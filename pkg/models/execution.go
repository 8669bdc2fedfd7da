package models

import (
	"time"

	"github.com/google/uuid"
)

// Attempt kinds.
const (
	AttemptFirst         = "FIRST"
	AttemptRetryNoSchema = "RETRY_NO_SCHEMA" // Re-issue after stripping the schema qualifier
)

// Execution statuses. PENDING and RUNNING are transient; the other three
// are terminal.
const (
	ExecutionStatusPending = "PENDING"
	ExecutionStatusRunning = "RUNNING"
	ExecutionStatusSuccess = "SUCCESS"
	ExecutionStatusFailed  = "FAILED"
	ExecutionStatusTimeout = "TIMEOUT"
)

// Error types reported on failed executions.
const (
	ErrorTypeUnresolvedEntity = "UNRESOLVED_ENTITY"
	ErrorTypeNoJoinPath       = "NO_JOIN_PATH"
	ErrorTypeAmbiguousColumn  = "AMBIGUOUS_COLUMN"
	ErrorTypeExecutionFailure = "EXECUTION_FAILURE"
	ErrorTypeTimeout          = "TIMEOUT"
	ErrorTypeInvalidRequest   = "INVALID_REQUEST"
)

// ExecutionAttempt records one SQL issuance for auditability.
type ExecutionAttempt struct {
	AttemptKind string    `json:"attempt_kind"` // "FIRST" or "RETRY_NO_SCHEMA"
	SQLText     string    `json:"sql_text"`
	StartedAt   time.Time `json:"started_at"`
}

// ExecutionResult is the terminal outcome of executing one definition.
// Never mutated after creation; a re-run produces a new result so execution
// history stays append-only.
type ExecutionResult struct {
	ID            uuid.UUID          `json:"id"`
	Attempts      []ExecutionAttempt `json:"attempts"`
	Status        string             `json:"status"`
	RecordCount   int                `json:"record_count"`
	SampleRecords []map[string]any   `json:"sample_records,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	ErrorType     string             `json:"error_type,omitempty"`
	Confidence    float64            `json:"confidence"`
}

// Provenance carries the resolved entity mapping alongside a result so the
// caller can render where each side came from without re-deriving it.
type Provenance struct {
	SourceTable  string `json:"source_table,omitempty"`
	TargetTable  string `json:"target_table,omitempty"`
	SourceColumn string `json:"source_column,omitempty"`
	TargetColumn string `json:"target_column,omitempty"`
}

// DefinitionOutcome pairs a definition with its result and provenance.
// Every definition in a batch yields exactly one outcome.
type DefinitionOutcome struct {
	Definition string           `json:"definition"`
	Result     *ExecutionResult `json:"result"`
	Provenance *Provenance      `json:"provenance,omitempty"`
	SQLText    string           `json:"sql_text,omitempty"`
}
