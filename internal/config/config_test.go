package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENV",
		"PESAPAL_SANDBOX_BASE_URL", "PESAPAL_SANDBOX_CONSUMER_KEY", "PESAPAL_SANDBOX_CONSUMER_SECRET", "PESAPAL_SANDBOX_CALLBACK_URL",
		"PESAPAL_PRODUCTION_BASE_URL", "PESAPAL_PRODUCTION_CONSUMER_KEY", "PESAPAL_PRODUCTION_CONSUMER_SECRET", "PESAPAL_PRODUCTION_CALLBACK_URL",
		"PESAPAL_HTTP_TIMEOUT", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "ORDER_MIRROR_TTL",
		"ADMIN_JWT_SECRET", "ADMIN_TOKEN_TTL", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PESAPAL_SANDBOX_CONSUMER_KEY", "key")
	t.Setenv("PESAPAL_SANDBOX_CONSUMER_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, pesapal.SandboxBaseURL, cfg.Pesapal.Sandbox.BaseURL)
	assert.Equal(t, pesapal.ProductionBaseURL, cfg.Pesapal.Production.BaseURL)
	assert.Equal(t, "http://localhost:5000/payment/callback", cfg.Pesapal.Sandbox.CallbackURL)
	assert.Equal(t, 30*time.Second, cfg.Pesapal.HTTPTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Redis.MirrorTTL)
	assert.Empty(t, cfg.Redis.Host)
	assert.True(t, cfg.Pesapal.Sandbox.Configured())
	assert.False(t, cfg.Pesapal.Production.Configured())
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRequiresSomeCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProductionNeedsCallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PESAPAL_PRODUCTION_CONSUMER_KEY", "key")
	t.Setenv("PESAPAL_PRODUCTION_CONSUMER_SECRET", "secret")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PESAPAL_PRODUCTION_CALLBACK_URL", "https://shop.example.com/payment/callback")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/payment/callback", cfg.Pesapal.Environment(models.EnvProduction).CallbackURL)
}

func TestLoadInvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("PESAPAL_SANDBOX_CONSUMER_KEY", "key")
	t.Setenv("PESAPAL_SANDBOX_CONSUMER_SECRET", "secret")
	t.Setenv("PESAPAL_HTTP_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
