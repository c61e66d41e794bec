package config_test

import (
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-discount/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"EXCHANGE_API_URL":     "https://rates.example.com/v6/",
		"EXCHANGE_API_KEY":     "secret-key",
		"AUTH_USERNAME":        "cashier",
		"AUTH_PASSWORD":        "s3cret-pass",
		"EXCHANGE_API_TIMEOUT": "",
		"RATE_CACHE_TTL":       "",
		"RATE_CACHE_MAX_SIZE":  "",
		"REDIS_URL":            "",
		"JWT_SECRET":           "",
		"PORT":                 "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "https://rates.example.com/v6", cfg.ExchangeAPIURL)
	require.Equal(t, "secret-key", cfg.ExchangeAPIKey)
	require.Equal(t, 5*time.Second, cfg.ExchangeAPITimeout)
	require.Equal(t, 10*time.Minute, cfg.RateCacheTTL)
	require.Equal(t, 500, cfg.RateCacheMaxSize)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.TokensEnabled())

	ok, err := argon2id.ComparePasswordAndHash("s3cret-pass", cfg.AuthPasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["RATE_CACHE_TTL"] = "30s"
	env["RATE_CACHE_MAX_SIZE"] = "50"
	env["EXCHANGE_API_TIMEOUT"] = "bogus"
	env["JWT_SECRET"] = "jwt"
	env["PORT"] = ":9090"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.RateCacheTTL)
	require.Equal(t, 50, cfg.RateCacheMaxSize)
	require.Equal(t, 5*time.Second, cfg.ExchangeAPITimeout)
	require.True(t, cfg.TokensEnabled())
	require.Equal(t, ":9090", cfg.HTTPAddr())
}

func TestLoadRequiresExchangeSettings(t *testing.T) {
	env := baseEnv()
	env["EXCHANGE_API_KEY"] = ""
	_, err := config.LoadForTests(env)
	require.EqualError(t, err, "EXCHANGE_API_KEY is required")

	env = baseEnv()
	env["RATE_CACHE_MAX_SIZE"] = "0"
	_, err = config.LoadForTests(env)
	require.EqualError(t, err, "RATE_CACHE_MAX_SIZE must be positive")

	env = baseEnv()
	env["AUTH_PASSWORD"] = ""
	_, err = config.LoadForTests(env)
	require.EqualError(t, err, "AUTH_PASSWORD is required")
}

func TestLoadHTTPHardening(t *testing.T) {
	env := baseEnv()
	env["MAX_BODY_BYTES"] = "2048"
	env["SECURITY_HSTS_ENABLED"] = "true"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.EqualValues(t, 2048, cfg.MaxBodyBytes)
	require.True(t, cfg.HSTSEnabled)

	env["MAX_BODY_BYTES"] = ""
	env["SECURITY_HSTS_ENABLED"] = ""
	cfg, err = config.LoadForTests(env)
	require.NoError(t, err)
	require.EqualValues(t, 1<<20, cfg.MaxBodyBytes)
	require.False(t, cfg.HSTSEnabled)
}

func TestLoadBreakerAndObservability(t *testing.T) {
	env := baseEnv()
	env["EXCHANGE_BREAKER_ENABLED"] = "yes"
	env["EXCHANGE_BREAKER_MIN_REQUESTS"] = "3"
	env["EXCHANGE_BREAKER_OPEN_FOR"] = "1m"
	env["OBS_ENABLE_TRACING"] = "false"
	env["OBS_TRACING_SAMPLING_RATIO"] = "0.25"
	env["HEALTH_READY_CACHE_TIMEOUT_MS"] = "750"
	env["SHUTDOWN_TIMEOUT"] = "3s"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, config.BreakerConfig{Enabled: true, MinRequests: 3, FailureRatio: 0.5, OpenFor: time.Minute}, cfg.Breaker)
	require.False(t, cfg.Obs.TracingEnabled)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.InDelta(t, 0.25, cfg.Obs.SamplingRatio, 1e-9)
	require.Equal(t, "discount", cfg.Obs.MetricsNamespace)
	require.Equal(t, 750*time.Millisecond, cfg.ReadyCacheTimeout)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "discount:rates:", cfg.RateCacheRedisPrefix)

	env["EXCHANGE_BREAKER_FAILURE_RATIO"] = "1.5"
	_, err = config.LoadForTests(env)
	require.EqualError(t, err, "EXCHANGE_BREAKER_FAILURE_RATIO must be in (0, 1]")
}
