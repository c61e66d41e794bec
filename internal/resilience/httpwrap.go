package resilience

import (
	"net/http"
)

// Transport guards an http.RoundTripper with a circuit breaker. Each request is
// attempted exactly once; responses with a 5xx status and transport errors count
// as failures. While the breaker is open requests fail fast with ErrOpenCircuit.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}
	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Breaker.Report(ctx, false)
		return nil, err
	}
	t.Breaker.Report(ctx, resp.StatusCode < http.StatusInternalServerError)
	return resp, nil
}
