package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-discount/internal/auth"
	"github.com/noah-isme/backend-discount/internal/config"
	"github.com/noah-isme/backend-discount/internal/discount"
	"github.com/noah-isme/backend-discount/internal/exchange"
	"github.com/noah-isme/backend-discount/internal/health"
	"github.com/noah-isme/backend-discount/internal/obs"
	"github.com/noah-isme/backend-discount/internal/ratelimit"
	"github.com/noah-isme/backend-discount/internal/resilience"
	"github.com/noah-isme/backend-discount/internal/security"
)

type rateCache interface {
	exchange.Cache
	health.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracing := cfg.Obs.TracingEnabled
	if tracing {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "discount-api",
			ServiceVersion: cfg.Obs.ServiceVersion,
			Environment:    cfg.AppEnv,
			Exporter:       cfg.Obs.TracingExporter,
			Endpoint:       cfg.Obs.OTLPEndpoint,
			SamplingRatio:  cfg.Obs.SamplingRatio,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracing = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var meters metric.MeterProvider = otel.GetMeterProvider()
	if cfg.Obs.MetricsEnabled {
		mp, err := obs.NewMeterProvider(nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise meter provider")
		}
		otel.SetMeterProvider(mp)
		meters = mp
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown meter provider")
			}
		}()
	}

	redisClient, err := openRedis(cfg, meters, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	var cache rateCache
	if redisClient != nil {
		cache = exchange.NewRedisCache(redisClient, cfg.RateCacheRedisPrefix)
		logger.Info().Msg("rate cache backed by redis")
	} else {
		mem, err := exchange.NewMemoryCache(cfg.RateCacheMaxSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate cache")
		}
		cache = mem
	}

	breaker, transport := exchangeTransport(cfg, &logger)
	provider, err := exchange.NewProvider(exchange.ProviderConfig{
		Source: exchange.NewClient(exchange.ClientConfig{
			BaseURL:   cfg.ExchangeAPIURL,
			APIKey:    cfg.ExchangeAPIKey,
			Timeout:   cfg.ExchangeAPITimeout,
			Transport: transport,
		}),
		Cache:  cache,
		TTL:    cfg.RateCacheTTL,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise exchange provider")
	}
	calculator, err := discount.NewCalculator(provider, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise calculator")
	}

	authService, err := auth.NewService(auth.Config{
		Username:       cfg.AuthUsername,
		PasswordHash:   cfg.AuthPasswordHash,
		TokenSecret:    cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	lim, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	deps := routerDeps{
		Logger:      logger,
		Tracing:     tracing,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Limiter:     lim,
		Auth:        authService,
		Calculator:  calculator,
		Headers: security.Headers{
			EnableHSTS:            cfg.HSTSEnabled,
			HSTSIncludeSubdomains: true,
		},
		MaxBodyBytes: cfg.MaxBodyBytes,
		Health: health.Handler{
			Checker:      health.DependencyChecker{Cache: cache, Breaker: breaker},
			CacheTimeout: cfg.ReadyCacheTimeout,
		},
	}
	if cfg.Obs.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets)
		deps.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, nil)
		deps.MetricsHandler = promhttp.Handler()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := serve(srv, cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// openRedis returns nil when REDIS_URL is unset. With Prometheus enabled,
// pool metrics are recorded on meters, which exports them on /metrics.
func openRedis(cfg *config.Config, meters metric.MeterProvider, logger *zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client, redisotel.WithMeterProvider(meters)); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// exchangeTransport wraps the default transport with the circuit breaker when
// it is enabled. The returned breaker is nil otherwise.
func exchangeTransport(cfg *config.Config, logger *zerolog.Logger) (*resilience.Breaker, http.RoundTripper) {
	if !cfg.Breaker.Enabled {
		return nil, http.DefaultTransport
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "exchange-api",
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
		OpenFor:      cfg.Breaker.OpenFor,
		Logger:       logger,
	})
	if cfg.Obs.MetricsEnabled {
		if err := resilience.RegisterMetrics(nil); err != nil {
			logger.Error().Err(err).Msg("register breaker metrics")
		}
	}
	return breaker, resilience.Transport{Base: http.DefaultTransport, Breaker: breaker}
}

// serve runs srv until SIGINT or SIGTERM, then drains in-flight requests.
func serve(srv *http.Server, cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("tokens", cfg.TokensEnabled()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}
