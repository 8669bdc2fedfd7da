package apperrors

import "errors"

var (
	// ErrUnresolvedEntity indicates a table or column mention could not be
	// matched above the configured confidence floor.
	ErrUnresolvedEntity = errors.New("unresolved entity")

	// ErrNoJoinPath indicates the resolved tables have no inferable
	// relationship in the knowledge graph.
	ErrNoJoinPath = errors.New("no join path")

	// ErrAmbiguousColumn indicates a filter hint matched multiple columns
	// with comparable confidence.
	ErrAmbiguousColumn = errors.New("ambiguous column")

	// ErrInvalidGraphName indicates a missing, empty, or placeholder
	// knowledge graph identifier in a request.
	ErrInvalidGraphName = errors.New("invalid knowledge graph name")

	// ErrUnsafeFilterValue indicates a filter literal failed injection screening.
	ErrUnsafeFilterValue = errors.New("unsafe filter value")
)
