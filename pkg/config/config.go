package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the reconciliation engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (database
// passwords, API keys) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Default SQL dialect when a request does not name one.
	Dialect string `yaml:"dialect" env:"RECON_DIALECT" env-default:"sqlserver"`

	Matching  MatchingConfig  `yaml:"matching"`
	Execution ExecutionConfig `yaml:"execution"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
}

// MatchingConfig holds resolution thresholds. These were hard-coded
// constants at one point; tables without the assumed columns broke, so every
// threshold is configuration now.
type MatchingConfig struct {
	// MinConfidence is the acceptance floor for table and column matches.
	MinConfidence float64 `yaml:"min_confidence" env:"RECON_MIN_CONFIDENCE" env-default:"0.5"`

	// AmbiguityEpsilon: two column candidates scoring within this margin of
	// each other are reported as ambiguous rather than picked arbitrarily.
	AmbiguityEpsilon float64 `yaml:"ambiguity_epsilon" env:"RECON_AMBIGUITY_EPSILON" env-default:"0.1"`

	// LowConfidence marks results that must not be trusted without review.
	LowConfidence float64 `yaml:"low_confidence" env:"RECON_LOW_CONFIDENCE" env-default:"0.3"`
}

// ExecutionConfig holds executor limits.
type ExecutionConfig struct {
	// LimitRecords is embedded in generated SQL and doubles as the sample cap.
	LimitRecords int `yaml:"limit_records" env:"RECON_LIMIT_RECORDS" env-default:"1000"`

	// TimeoutSeconds is the per-attempt query deadline.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"RECON_TIMEOUT_SECONDS" env-default:"30"`

	// MaxConcurrent bounds simultaneous executions in a batch.
	MaxConcurrent int `yaml:"max_concurrent" env:"RECON_MAX_CONCURRENT" env-default:"4"`
}

// LLMConfig holds the optional NL-extraction capability settings.
// The engine must function with Provider empty (rule-based only).
type LLMConfig struct {
	Provider string `yaml:"provider" env:"RECON_LLM_PROVIDER" env-default:""` // "openai", "anthropic", or empty to disable
	Endpoint string `yaml:"endpoint" env:"RECON_LLM_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"RECON_LLM_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"RECON_LLM_API_KEY"` // Secret - not in YAML
}

// Enabled reports whether an extraction capability is configured.
func (c *LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Model != ""
}

// DatabaseConfig holds connection settings for the reconciled datasource.
type DatabaseConfig struct {
	Type     string `yaml:"type" env:"RECON_DB_TYPE" env-default:"postgres"` // "postgres" or "sqlserver"
	Host     string `yaml:"host" env:"RECON_DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"RECON_DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"RECON_DB_USER" env-default:""`
	Password string `yaml:"-" env:"RECON_DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"RECON_DB_NAME" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"RECON_DB_SSLMODE" env-default:"disable"`
}

// Load reads configuration from config.yaml with environment overrides.
// Falls back to environment-only when the file does not exist.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1], got %v", c.Matching.MinConfidence)
	}
	if c.Matching.AmbiguityEpsilon < 0 || c.Matching.AmbiguityEpsilon > 1 {
		return fmt.Errorf("ambiguity_epsilon must be within [0,1], got %v", c.Matching.AmbiguityEpsilon)
	}
	if c.Execution.LimitRecords <= 0 {
		return fmt.Errorf("limit_records must be positive, got %d", c.Execution.LimitRecords)
	}
	if c.Execution.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.Execution.TimeoutSeconds)
	}
	if c.Execution.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.Execution.MaxConcurrent)
	}
	return nil
}
