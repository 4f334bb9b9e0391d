// Package billing provides the Akamai Billing API client with EdgeGrid
// authentication, response caching, and bounded retry.
//
// The client does not rate-limit itself: callers acquire a slot from the
// shared ratelimit.Limiter before every query, so the quota is charged at
// the traversal site that decided to spend it.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v11/pkg/edgegrid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/hyperbilling/akamai-usage-collector/pkg/cache"
)

// Prometheus metrics for billing API operations.
var (
	billingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_requests_total",
		Help: "Total billing API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	billingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_request_duration_seconds",
		Help:    "Billing API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

// Endpoint labels for metrics. Paths carry contract and product IDs, so
// the label is the endpoint family, not the raw path.
const (
	endpointProducts            = "products"
	endpointProductUsage        = "product_usage"
	endpointReportingGroupUsage = "reporting_group_usage"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the Akamai API host, e.g. "https://akzz-xxx.luna.akamaiapis.net".
	BaseURL string

	// EdgeGrid credentials.
	ClientToken  string
	ClientSecret string
	AccessToken  string

	// Timeout per request (default 30s).
	Timeout time.Duration

	// Cache is the optional response cache. Nil disables caching.
	Cache *cache.Manager
}

// Client is the Akamai Billing API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	signer     *edgegrid.Config
	cache      *cache.Manager
	retry      retryPolicy
	logger     zerolog.Logger
}

// New creates a billing client. Missing base URL or credentials are
// configuration errors and fail before any work starts.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("billing base URL is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid billing base URL %q", cfg.BaseURL)
	}
	if cfg.ClientToken == "" || cfg.ClientSecret == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("edgegrid credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		signer: &edgegrid.Config{
			Host:         parsed.Host,
			ClientToken:  cfg.ClientToken,
			ClientSecret: cfg.ClientSecret,
			AccessToken:  cfg.AccessToken,
			MaxBody:      131072,
		},
		cache:  cfg.Cache,
		retry:  defaultRetryPolicy(),
		logger: logger,
	}, nil
}

// ListProducts queries the product listing of one contract for the
// given period.
func (c *Client) ListProducts(ctx context.Context, contractID, accountKey, start, end string) (json.RawMessage, error) {
	path := fmt.Sprintf("/billing/v1/contracts/%s/products", contractID)
	params := url.Values{
		"accountSwitchKey": []string{accountKey},
		"start":            []string{start},
		"end":              []string{end},
	}
	return c.get(ctx, endpointProducts, path, params)
}

// ProductUsage queries daily usage of one product under a contract.
func (c *Client) ProductUsage(ctx context.Context, contractID, accountKey, productID, month string) (json.RawMessage, error) {
	path := fmt.Sprintf("/billing/v1/contracts/%s/products/%s/usage/daily", contractID, productID)
	params := url.Values{
		"accountSwitchKey": []string{accountKey},
		"month":            []string{month},
	}
	return c.get(ctx, endpointProductUsage, path, params)
}

// ReportingGroupUsage queries daily usage of one reporting group.
func (c *Client) ReportingGroupUsage(ctx context.Context, accountKey string, reportingGroupID int64, productID, month string) (json.RawMessage, error) {
	path := fmt.Sprintf("/billing/v1/reporting-groups/%s/products/%s/usage/daily",
		strconv.FormatInt(reportingGroupID, 10), productID)
	params := url.Values{
		"accountSwitchKey": []string{accountKey},
		"month":            []string{month},
	}
	return c.get(ctx, endpointReportingGroupUsage, path, params)
}

// get performs a cached, retried GET against the billing API.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	cacheKey := cache.Key{Endpoint: path, Params: params}

	if c.cache != nil {
		payload, err := c.cache.Get(ctx, cacheKey)
		if err == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("path", path).
				Msg("Billing response served from cache")
			return payload, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("path", path).Msg("Cache get error")
		}
	}

	payload, err := retryWithBackoff(ctx, c.logger, c.retry, func() (json.RawMessage, error) {
		return c.doRequest(ctx, endpoint, path, params)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, payload); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("Failed to cache response")
		}
	}

	return payload, nil
}

// doRequest executes a single signed GET. Non-2xx responses become an
// *APIError; the error never carries more than 200 bytes of body.
func (c *Client) doRequest(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		billingRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.signer.SignRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		billingRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("billing request %s: %w", path, err)
	}
	defer resp.Body.Close()

	billingRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Body:       truncate(string(body), 200),
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Msg("Billing API error response")
		return nil, apiErr
	}

	return json.RawMessage(body), nil
}
