package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewExtractor creates the extraction capability for the given provider.
// An empty provider returns (nil, nil): extraction disabled, rule-based
// classification only. That is not a fatal condition.
func NewExtractor(provider string, cfg *Config, logger *zap.Logger) (Extractor, error) {
	switch provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		return NewOpenAIExtractor(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicExtractor(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
