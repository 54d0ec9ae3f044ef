package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Auth
	APIKey string `env:"DOCCHUNK_API_KEY"`

	// Worker pool
	WorkerCount  int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize int `env:"MAX_QUEUE_SIZE" envDefault:"100"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"` // 50MB

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`

	// PDF
	PDFFallbackPdftotext bool `env:"PDF_FALLBACK_PDFTOTEXT" envDefault:"true"`

	// Chunking
	MaxTokensPerNode     int     `env:"MAX_TOKENS_PER_NODE" envDefault:"500"`
	OverlapTokens        int     `env:"OVERLAP_TOKENS" envDefault:"50"`
	TokenStrategy        string  `env:"TOKEN_STRATEGY" envDefault:"approximate"`
	TokenEncoding        string  `env:"TOKEN_ENCODING" envDefault:"cl100k_base"`
	ValidateOutput       bool    `env:"VALIDATE" envDefault:"true"`
	MinHeadingConfidence float64 `env:"MIN_HEADING_CONFIDENCE" envDefault:"0"`
}

// Load reads a .env file if one is present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	return cfg, nil
}

// CheckChunking validates the chunking settings alone. The CLI needs only
// these.
func (c Config) CheckChunking() error {
	if c.MaxTokensPerNode < 1 {
		return fmt.Errorf("MAX_TOKENS_PER_NODE must be at least 1, got %d", c.MaxTokensPerNode)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxTokensPerNode {
		return fmt.Errorf("OVERLAP_TOKENS must be >= 0 and < MAX_TOKENS_PER_NODE, got %d", c.OverlapTokens)
	}
	switch c.TokenStrategy {
	case "approximate", "exact":
	default:
		return fmt.Errorf("TOKEN_STRATEGY must be approximate or exact, got %q", c.TokenStrategy)
	}
	if c.MinHeadingConfidence < 0 || c.MinHeadingConfidence > 1 {
		return fmt.Errorf("MIN_HEADING_CONFIDENCE must be within [0,1], got %v", c.MinHeadingConfidence)
	}
	return nil
}

// Validate checks everything the server needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("DOCCHUNK_API_KEY is required")
	}
	return c.CheckChunking()
}
