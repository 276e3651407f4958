package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the server
type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	AuthConfig    `envPrefix:"AUTH_"`
	BookConfig
	ArchiveConfig

	// dev credentials used when none are configured
	APIKey    string `env:"API_KEY" envDefault:"test-key"`
	APISecret string `env:"API_SECRET" envDefault:"test-secret"`
}

// AuthConfig holds the signed-request limits
type AuthConfig struct {
	TimestampWindow time.Duration `env:"TIMESTAMP_WINDOW" envDefault:"30s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

// BookConfig holds the matching and query limits
type BookConfig struct {
	TradeHistoryLimit  int `env:"TRADE_HISTORY_LIMIT" envDefault:"10000"`
	DefaultBookDepth   int `env:"DEFAULT_BOOK_DEPTH" envDefault:"100"`
	DefaultTradesLimit int `env:"DEFAULT_TRADES_LIMIT" envDefault:"50"`
	MaxQuerySize       int `env:"MAX_QUERY_SIZE" envDefault:"1000"`
}

// ArchiveConfig holds the optional trade archive settings
type ArchiveConfig struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	ArchiveBuffer int    `env:"ARCHIVE_BUFFER" envDefault:"4096"`
}

// Load reads the configuration from the environment and an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.APIKey == "" || c.APISecret == "":
		return errors.New("API_KEY and API_SECRET must both be set")
	case c.TimestampWindow <= 0:
		return errors.New("AUTH_TIMESTAMP_WINDOW must be positive")
	case c.MaxBodyBytes <= 0:
		return errors.New("AUTH_MAX_BODY_BYTES must be positive")
	case c.TradeHistoryLimit < 0:
		return errors.New("TRADE_HISTORY_LIMIT must not be negative")
	case c.MaxQuerySize <= 0:
		return errors.New("MAX_QUERY_SIZE must be positive")
	case c.DefaultBookDepth <= 0 || c.DefaultBookDepth > c.MaxQuerySize:
		return fmt.Errorf("DEFAULT_BOOK_DEPTH must be between 1 and %d", c.MaxQuerySize)
	case c.DefaultTradesLimit <= 0 || c.DefaultTradesLimit > c.MaxQuerySize:
		return fmt.Errorf("DEFAULT_TRADES_LIMIT must be between 1 and %d", c.MaxQuerySize)
	}
	return nil
}
