package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/retry"
)

const anthropicMaxTokens = 1024

// AnthropicExtractor calls the Anthropic Messages API for extraction.
type AnthropicExtractor struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicExtractor creates an Anthropic-backed extractor.
func NewAnthropicExtractor(cfg *Config, logger *zap.Logger) (*AnthropicExtractor, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	return &AnthropicExtractor{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
		logger: logger.Named("llm-anthropic"),
	}, nil
}

// Extract implements Extractor.
func (e *AnthropicExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	e.logger.Debug("Extraction request",
		zap.String("model", e.model),
		zap.Int("text_len", len(text)))

	start := time.Now()
	temperature := float32(extractionTemperature)

	resp, err := retry.DoWithResult(ctx, nil, func() (anthropic.MessagesResponse, error) {
		return e.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:       anthropic.Model(e.model),
			MaxTokens:   anthropicMaxTokens,
			System:      extractionSystemPrompt,
			Temperature: &temperature,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(text),
			},
		})
	})
	if err != nil {
		e.logger.Error("Extraction request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("create messages: %w", err)
	}

	var extraction Extraction
	if err := ParseJSONResponse(resp.GetFirstContentText(), &extraction); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	e.logger.Info("Extraction completed",
		zap.Int("entities", len(extraction.Entities)),
		zap.Int("filters", len(extraction.Filters)),
		zap.Float64("confidence", extraction.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return &extraction, nil
}

// Ensure AnthropicExtractor implements Extractor at compile time.
var _ Extractor = (*AnthropicExtractor)(nil)
