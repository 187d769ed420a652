// Package client provides the authenticated HTTP transport shared by the
// Bamboo and Bitbucket Server clients: URL building, basic auth, TLS
// options, client-side throttling, metrics and error classification.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/atlassian-client/pkg/logging"
	"github.com/Sternrassler/atlassian-client/pkg/ratelimit"
	"github.com/jtacoma/uritemplates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for Atlassian client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlassian_requests_total",
		Help: "Total Atlassian requests by method, endpoint and status",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlassian_request_duration_seconds",
		Help:    "Atlassian request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlassian_errors_total",
		Help: "Total Atlassian errors by class",
	}, []string{"class"})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlassian_throttle_wait_seconds",
		Help:    "Time spent waiting on the client-side rate limiter",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Defaults mirror a stock Bamboo install on the local machine.
const (
	DefaultHost      = "http://localhost"
	DefaultPort      = 8085
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "atlassian-client/0.1.0"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the full server URL, e.g. "https://bamboo.example.com/bamboo".
	// When set, Host, Port and Prefix are ignored.
	BaseURL string

	// Host, Port and Prefix build the base URL as "<host>:<port><prefix>".
	Host   string
	Port   int
	Prefix string

	// Basic auth; only applied when both are set.
	Username string
	Password string

	// TLS
	InsecureSkipVerify bool
	CertFile           string // client certificate (PEM); may also hold the key
	KeyFile            string

	UserAgent string
	Timeout   time.Duration

	// Client-side throttling. RateLimit is in requests per second; 0 disables it.
	RateLimit float64
	Burst     int

	// MaxBackoff is the longest server-requested back-off (429 Retry-After)
	// a request waits out before failing. 0 uses ratelimit.MaxWait.
	MaxBackoff time.Duration

	// Component names the logger, e.g. "bamboo-client".
	Component string

	// HTTPClient overrides the transport (tests, proxies). TLS options are
	// not applied to a caller-supplied client.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration pointing at a local server.
func DefaultConfig() Config {
	return Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Component: "atlassian-client",
	}
}

// Client is the shared Atlassian HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}
	if cfg.KeyFile != "" && cfg.CertFile == "" {
		return nil, fmt.Errorf("key file given without a certificate file")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Component == "" {
		cfg.Component = "atlassian-client"
	}

	baseURL, err := buildBaseURL(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient, err = newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := logging.NewServerLogger(cfg.Component, baseURL)
	tracker := ratelimit.NewTracker(logger)
	if cfg.MaxBackoff > 0 {
		tracker.SetMaxWait(cfg.MaxBackoff)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
		tracker:    tracker,
		config:     cfg,
		logger:     logger,
	}, nil
}

// buildBaseURL resolves the configured server root without a trailing slash.
func buildBaseURL(cfg Config) (string, error) {
	raw := cfg.BaseURL
	if raw == "" {
		host := cfg.Host
		if host == "" {
			host = DefaultHost
		}
		port := cfg.Port
		if port == 0 {
			port = DefaultPort
		}
		raw = fmt.Sprintf("%s:%d%s", strings.TrimRight(host, "/"), port, cfg.Prefix)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in for self-signed servers

	if cfg.CertFile != "" {
		keyFile := cfg.KeyFile
		if keyFile == "" {
			keyFile = cfg.CertFile
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}, nil
}

// BaseURL returns the resolved server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimitState reports the server back-off currently in effect.
func (c *Client) RateLimitState() ratelimit.State {
	return c.tracker.State()
}

// Logger returns the component logger.
func (c *Client) Logger() zerolog.Logger {
	return c.logger
}

// MakeURL joins the base URL and an endpoint path.
func (c *Client) MakeURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// Expand fills an RFC 6570 URI template such as "/project/{projectKey}".
// Values are percent-encoded.
func Expand(template string, vars map[string]string) (string, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", template, err)
	}
	values := make(map[string]interface{}, len(vars)) // uritemplates only reads this map type
	for k, v := range vars {
		values[k] = v
	}
	expanded, err := tmpl.Expand(values)
	if err != nil {
		return "", fmt.Errorf("expand template %q: %w", template, err)
	}
	return expanded, nil
}

// Do performs an HTTP request with throttling, authentication and metrics.
// Non-2xx responses are returned as-is; use CheckStatus or DecodeJSON.
// Transport failures are returned as *APIError with ErrorClassNetwork.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.tracker.Wait(ctx); err != nil {
		return nil, fmt.Errorf("server back-off: %w", err)
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		waited := time.Since(waitStart)
		throttleWaitSeconds.Observe(waited.Seconds())
		if waited > 10*time.Millisecond {
			c.logger.Debug().Str("endpoint", endpoint).Dur("wait", waited).Msg("Request throttled")
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Username != "" && c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(req.Method, endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("method", req.Method).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Method:     req.Method,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(req.Method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.tracker.UpdateFromResponse(resp)

	if class := ClassifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("method", req.Method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Dur("duration", time.Since(startTime)).
			Msg("Atlassian request error")
	}

	return resp, nil
}

// NewRequest builds a request against endpoint with optional query values.
func (c *Client) NewRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.MakeURL(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// Get performs a GET request. header may be nil.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, header http.Header) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	resp, err := c.Get(ctx, endpoint, query, nil)
	if err != nil {
		return err
	}
	return DecodeJSON(resp, out)
}

// PostForm posts a form-encoded body. form may be nil for an empty body.
// The XSRF opt-out header is always sent; web actions reject form posts
// without it.
func (c *Client) PostForm(ctx context.Context, endpoint string, query url.Values, form url.Values) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, endpoint, query, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Atlassian-Token", "no-check")
	return c.Do(req)
}

// PostJSON posts body encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodPost, endpoint, body)
}

// PutJSON puts body encoded as JSON.
func (c *Client) PutJSON(ctx context.Context, endpoint string, body any) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodPut, endpoint, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodDelete, endpoint, query, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", method, err)
	}
	req, err := c.NewRequest(ctx, method, endpoint, nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
