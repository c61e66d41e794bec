package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string
	RateLimit          string
	MaxBodyBytes       int64
	HSTSEnabled        bool
	ShutdownTimeout    time.Duration

	ExchangeAPIURL     string
	ExchangeAPIKey     string
	ExchangeAPITimeout time.Duration
	Breaker            BreakerConfig

	RateCacheTTL         time.Duration
	RateCacheMaxSize     int
	RateCacheRedisPrefix string
	RedisURL             string
	ReadyCacheTimeout    time.Duration

	AuthUsername     string
	AuthPasswordHash string
	JWTSecret        string
	AccessTokenTTL   time.Duration

	Obs ObsConfig
}

// BreakerConfig configures the circuit breaker guarding the exchange API.
type BreakerConfig struct {
	Enabled      bool
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// ObsConfig configures logging, metrics and tracing.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	ServiceVersion   string
}

// reader wraps koanf with trimming and fallbacks. Malformed values fall back
// to the default instead of failing startup.
type reader struct{ k *koanf.Koanf }

func (r reader) str(key, fallback string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return fallback
}

func (r reader) integer(key string, fallback int) int {
	v, err := strconv.Atoi(r.str(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func (r reader) float(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(r.str(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func (r reader) duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(r.str(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (r reader) millis(key string, fallback time.Duration) time.Duration {
	ms := r.integer(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (r reader) boolean(key string, fallback bool) bool {
	switch strings.ToLower(r.str(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func (r reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.k.String(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	r := reader{k: k}

	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS"),
		RateLimit:          r.str("RATE_LIMIT", "100-M"),
		MaxBodyBytes:       int64(r.integer("MAX_BODY_BYTES", 1<<20)),
		HSTSEnabled:        r.boolean("SECURITY_HSTS_ENABLED", false),
		ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", 15*time.Second),

		ExchangeAPIURL:     strings.TrimRight(r.str("EXCHANGE_API_URL", ""), "/"),
		ExchangeAPIKey:     r.str("EXCHANGE_API_KEY", ""),
		ExchangeAPITimeout: r.duration("EXCHANGE_API_TIMEOUT", 5*time.Second),
		Breaker: BreakerConfig{
			Enabled:      r.boolean("EXCHANGE_BREAKER_ENABLED", false),
			MinRequests:  r.integer("EXCHANGE_BREAKER_MIN_REQUESTS", 5),
			FailureRatio: r.float("EXCHANGE_BREAKER_FAILURE_RATIO", 0.5),
			OpenFor:      r.duration("EXCHANGE_BREAKER_OPEN_FOR", 30*time.Second),
		},

		RateCacheTTL:         r.duration("RATE_CACHE_TTL", 10*time.Minute),
		RateCacheMaxSize:     r.integer("RATE_CACHE_MAX_SIZE", 500),
		RateCacheRedisPrefix: r.str("RATE_CACHE_REDIS_PREFIX", "discount:rates:"),
		RedisURL:             r.str("REDIS_URL", ""),
		ReadyCacheTimeout:    r.millis("HEALTH_READY_CACHE_TIMEOUT_MS", 300*time.Millisecond),

		AuthUsername:   r.str("AUTH_USERNAME", ""),
		JWTSecret:      k.String("JWT_SECRET"),
		AccessTokenTTL: r.duration("ACCESS_TOKEN_TTL", 15*time.Minute),

		Obs: ObsConfig{
			LogFormat:        r.str("OBS_LOG_FORMAT", "json"),
			LogLevel:         r.str("OBS_LOG_LEVEL", "info"),
			MetricsEnabled:   r.boolean("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace: r.str("OBS_METRICS_NAMESPACE", "discount"),
			MetricsBuckets:   r.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:   r.boolean("OBS_ENABLE_TRACING", true),
			TracingExporter:  r.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:     r.str("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:    r.float("OBS_TRACING_SAMPLING_RATIO", 1),
			ServiceVersion:   r.str("OBS_SERVICE_VERSION", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	password := k.String("AUTH_PASSWORD")
	if password == "" {
		return nil, errors.New("AUTH_PASSWORD is required")
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash auth password: %w", err)
	}
	cfg.AuthPasswordHash = hash

	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.ExchangeAPIURL == "":
		return errors.New("EXCHANGE_API_URL is required")
	case c.ExchangeAPIKey == "":
		return errors.New("EXCHANGE_API_KEY is required")
	case c.RateCacheMaxSize <= 0:
		return errors.New("RATE_CACHE_MAX_SIZE must be positive")
	case c.AuthUsername == "":
		return errors.New("AUTH_USERNAME is required")
	case c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1:
		return errors.New("EXCHANGE_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// TokensEnabled reports whether bearer tokens are issued and accepted.
func (c *Config) TokensEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

// LoadForTests runs Load with env applied on top of the process environment.
// Empty values unset the variable. The previous environment is restored.
func LoadForTests(env map[string]string) (*Config, error) {
	previous := make(map[string]*string, len(env))
	for key, value := range env {
		if old, ok := os.LookupEnv(key); ok {
			previous[key] = &old
		} else {
			previous[key] = nil
		}
		if err := setEnv(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()

	var restoreErrs []error
	for key, old := range previous {
		value := ""
		if old != nil {
			value = *old
		}
		if rerr := setEnv(key, value); rerr != nil {
			restoreErrs = append(restoreErrs, fmt.Errorf("%s: %w", key, rerr))
		}
	}
	if err != nil {
		return nil, err
	}
	return cfg, errors.Join(restoreErrs...)
}

func setEnv(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}
