package llm

import (
	"context"
)

// MockExtractor is a configurable mock for testing extraction-dependent
// code. Set ExtractFunc to control behavior.
type MockExtractor struct {
	// ExtractFunc is called when Extract is invoked.
	// If nil, returns an empty extraction and nil error.
	ExtractFunc func(ctx context.Context, text string) (*Extraction, error)

	// ExtractCalls counts invocations for verification.
	ExtractCalls int
}

// NewMockExtractor creates a mock with defaults.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	m.ExtractCalls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text)
	}
	return &Extraction{}, nil
}

// Ensure MockExtractor implements Extractor at compile time.
var _ Extractor = (*MockExtractor)(nil)
