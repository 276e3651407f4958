package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "test-secret", cfg.APISecret)
	assert.Equal(t, 30*time.Second, cfg.TimestampWindow)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 10000, cfg.TradeHistoryLimit)
	assert.Equal(t, 100, cfg.DefaultBookDepth)
	assert.Equal(t, 50, cfg.DefaultTradesLimit)
	assert.Equal(t, 1000, cfg.MaxQuerySize)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 4096, cfg.ArchiveBuffer)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("API_KEY", "prod-key")
	t.Setenv("API_SECRET", "prod-secret")
	t.Setenv("AUTH_TIMESTAMP_WINDOW", "1m")
	t.Setenv("DEFAULT_BOOK_DEPTH", "20")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("DATABASE_URL", "postgres://localhost/trades")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "prod-key", cfg.APIKey)
	assert.Equal(t, time.Minute, cfg.TimestampWindow)
	assert.Equal(t, 20, cfg.DefaultBookDepth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "postgres://localhost/trades", cfg.DatabaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "UnparseableWindow", env: map[string]string{"AUTH_TIMESTAMP_WINDOW": "soon"}},
		{name: "ZeroWindow", env: map[string]string{"AUTH_TIMESTAMP_WINDOW": "0s"}},
		{name: "DepthAboveMax", env: map[string]string{"DEFAULT_BOOK_DEPTH": "5000"}},
		{name: "ZeroTradesLimit", env: map[string]string{"DEFAULT_TRADES_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
