package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-discount/internal/obs"
)

const maxResponseBytes = 1 << 20

// ClientConfig configures the upstream exchange rate API client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client fetches full rate tables from an API shaped like
// {baseURL}/{apiKey}/latest/{base}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type latestResponse struct {
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// NewClient constructs a Client. The transport is instrumented with OpenTelemetry.
func NewClient(cfg ClientConfig) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

// LatestRates returns the conversion table for base. A nil map means the
// upstream answered without a conversion_rates object.
func (c *Client) LatestRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		obs.ObserveUpstream("transport_error", time.Since(start))
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	obs.ObserveUpstream(statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, resp.Status)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, statusError(resp.StatusCode, resp.Status+" (empty body)")
	}

	var payload latestResponse
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, &ServiceError{Status: resp.StatusCode, Message: "decode exchange rates", Err: err}
	}
	return payload.ConversionRates, nil
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
