package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StorageMode)
	assert.Equal(t, "memory", cfg.IdempotencyBackend)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, int64(10), cfg.ServiceFeePercent)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("IDEMPOTENCY_BACKEND", "redis")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SERVICE_FEE_PERCENT", "12")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("PAYMENT_TOKEN_SECRET", "0123456789abcdef")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("S3_USE_SSL", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis", cfg.IdempotencyBackend)
	assert.Equal(t, int64(12), cfg.ServiceFeePercent)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"mongo without uri": {"STORAGE_MODE": "mongo"},
		"bad storage":       {"STORAGE_MODE": "sqlite"},
		"bad fee":           {"SERVICE_FEE_PERCENT": "140"},
		"bad duration":      {"GATEWAY_TIMEOUT": "soon"},
		"bad bool":          {"S3_USE_SSL": "maybe"},
		"mongo idem":        {"IDEMPOTENCY_BACKEND": "mongo"},
		"prod no secret":    {"APP_ENV": "prod"},
		"bad currency":      {"CURRENCY": "EURO"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
