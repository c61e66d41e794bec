package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-discount/internal/common"
)

const defaultCacheTimeout = 300 * time.Millisecond

var draining atomic.Bool

// SetReady toggles readiness. main clears it on SIGTERM so load balancers
// stop routing new requests while in-flight ones finish.
func SetReady(v bool) {
	draining.Store(!v)
}

// Checker probes the dependencies a calculation needs.
type Checker interface {
	// PingCache probes the exchange rate cache backend.
	PingCache(ctx context.Context, timeout time.Duration) error
	// UpstreamAvailable reports an error while the exchange API circuit is open.
	UpstreamAvailable() error
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	Checker      Checker
	CacheTimeout time.Duration
}

// Readiness is the body of /health/ready. Each field is "ok" or the probe error.
type Readiness struct {
	RateCache   string `json:"rate_cache"`
	ExchangeAPI string `json:"exchange_api"`
}

func (r Readiness) healthy() bool {
	return r.RateCache == "ok" && r.ExchangeAPI == "ok"
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	switch {
	case draining.Load():
		common.JSONError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down", nil)
		return
	case h.Checker == nil:
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "no dependency checker configured", nil)
		return
	}

	timeout := h.CacheTimeout
	if timeout <= 0 {
		timeout = defaultCacheTimeout
	}
	status := Readiness{
		RateCache:   probe(h.Checker.PingCache(r.Context(), timeout)),
		ExchangeAPI: probe(h.Checker.UpstreamAvailable()),
	}
	code := http.StatusOK
	if !status.healthy() {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func probe(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
