package health

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-discount/internal/resilience"
)

// Pinger is implemented by rate cache backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyChecker probes the rate cache and the exchange API breaker.
type DependencyChecker struct {
	Cache   Pinger
	Breaker *resilience.Breaker
}

// PingCache pings the cache backend within timeout.
func (c DependencyChecker) PingCache(ctx context.Context, timeout time.Duration) error {
	if c.Cache == nil {
		return errors.New("rate cache not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Cache.Ping(ctx)
}

// UpstreamAvailable fails while the breaker is open. No breaker means always available.
func (c DependencyChecker) UpstreamAvailable() error {
	if c.Breaker != nil && c.Breaker.State() == resilience.Open {
		return errors.New("circuit open")
	}
	return nil
}
