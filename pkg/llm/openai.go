package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/glintdata/recon-engine/pkg/retry"
)

// OpenAIExtractor calls an OpenAI-compatible chat endpoint for extraction.
// Works against api.openai.com and local vLLM/Ollama style servers.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds settings for creating an extractor client.
type Config struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"; empty uses the provider default
	Model    string // Model name, e.g. "gpt-4o"
	APIKey   string // Optional for local endpoints
}

// NewOpenAIExtractor creates an OpenAI-compatible extractor.
func NewOpenAIExtractor(cfg *Config, logger *zap.Logger) (*OpenAIExtractor, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("llm-openai"),
	}, nil
}

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	e.logger.Debug("Extraction request",
		zap.String("model", e.model),
		zap.Int("text_len", len(text)))

	start := time.Now()

	resp, err := retry.DoWithResult(ctx, nil, func() (openai.ChatCompletionResponse, error) {
		return e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       e.model,
			Temperature: extractionTemperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
	})
	if err != nil {
		e.logger.Error("Extraction request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	var extraction Extraction
	if err := ParseJSONResponse(resp.Choices[0].Message.Content, &extraction); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	e.logger.Info("Extraction completed",
		zap.Int("entities", len(extraction.Entities)),
		zap.Int("filters", len(extraction.Filters)),
		zap.Float64("confidence", extraction.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return &extraction, nil
}

// Ensure OpenAIExtractor implements Extractor at compile time.
var _ Extractor = (*OpenAIExtractor)(nil)
