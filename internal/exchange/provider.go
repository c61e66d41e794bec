package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-discount/internal/obs"
)

// DefaultTTL is how long a fetched rate stays valid.
const DefaultTTL = 10 * time.Minute

var providerNopLogger = zerolog.Nop()

// RateSource returns the full conversion table for a base currency.
type RateSource interface {
	LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	Source RateSource
	Cache  Cache
	TTL    time.Duration
	Logger *zerolog.Logger
}

// Provider resolves exchange rates, consulting the cache before the upstream source.
type Provider struct {
	source RateSource
	cache  Cache
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewProvider constructs a Provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Source == nil {
		return nil, errors.New("exchange: rate source is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("exchange: cache is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{source: cfg.Source, cache: cfg.Cache, ttl: ttl, logger: cfg.Logger}, nil
}

// GetRate returns the multiplier converting base into target. Failures are
// *ServiceError or *CurrencyNotFoundError; only successful lookups are cached.
// A rate that is not positive is a *ServiceError.
func (p *Provider) GetRate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	if strings.TrimSpace(base) == "" || strings.TrimSpace(target) == "" {
		return decimal.Decimal{}, ErrInvalidCurrency
	}

	ctx, span := otel.Tracer("exchange").Start(ctx, "exchange.GetRate")
	defer span.End()
	span.SetAttributes(attribute.String("currency.base", base), attribute.String("currency.target", target))

	logger := p.loggerFor(ctx)
	key := CacheKey(base, target)

	rate, found, err := p.cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("rate_cache_get_failed")
	}
	if found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		obs.ObserveRateLookup("hit")
		logger.Debug().Str("key", key).Msg("rate_cache_hit")
		return rate, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	rates, err := p.source.LatestRates(ctx, base)
	if err != nil {
		obs.ObserveRateLookup("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failure")
		logger.Warn().Err(err).Str("base", base).Msg("rate_fetch_failed")
		return decimal.Decimal{}, err
	}
	rate, ok := rates[target]
	if !ok {
		err := &CurrencyNotFoundError{Currency: target}
		obs.ObserveRateLookup("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "currency not found")
		return decimal.Decimal{}, err
	}

	if !rate.IsPositive() {
		err := invalidRateError(target, rate)
		obs.ObserveRateLookup("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid rate")
		logger.Warn().Str("base", base).Str("target", target).Str("rate", rate.String()).Msg("rate_rejected")
		return decimal.Decimal{}, err
	}

	obs.ObserveRateLookup("miss")
	if err := p.cache.Put(ctx, key, rate, p.ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("rate_cache_put_failed")
	} else {
		logger.Debug().Str("key", key).Str("rate", rate.String()).Msg("rate_cached")
	}
	return rate, nil
}

func (p *Provider) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if p.logger == nil {
		return &providerNopLogger
	}
	return p.logger
}
