package internal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint16(3000), cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "cloudmerce", cfg.Store.MongoDatabase)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CartTTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, "mock", cfg.Payment.PixProvider)
	assert.Equal(t, "mock", cfg.Payment.CardProvider)
	assert.Equal(t, 5*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, uint32(5), cfg.Payment.FailureThreshold)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, time.Minute, cfg.Worker.PollInterval)
	assert.Equal(t, 1.0, cfg.Sentry.SampleRate)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("PIX_PROVIDER", "asaas")
	t.Setenv("ASAAS_ACCESS_TOKEN", "token")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("WORKER_BATCH_SIZE", "25")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "asaas", cfg.Payment.PixProvider)
	assert.Equal(t, "token", cfg.Payment.AsaasAccessToken)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, 25, cfg.Worker.BatchSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestNewConfig_Validation(t *testing.T) {
	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "sqlite")
		_, err := NewConfig()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("invalid env falls back to prod", func(t *testing.T) {
		t.Setenv("ENV", "staging")
		t.Setenv("PIX_PROVIDER", "asaas")
		t.Setenv("CARD_PROVIDER", "stripe")
		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.Env)
	})

	t.Run("mock gateway rejected in prod", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		_, err := NewConfig()
		assert.Error(t, err)
	})

	t.Run("invalid log level falls back to info", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.LogLevel)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "warn")

	logger.Info("dropped")
	logger.Warn("kept", "order_id", "o1")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"order_id":"o1"`)
	assert.Contains(t, out, `"service":"cloudmerce"`)
}
