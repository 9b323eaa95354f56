package psa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config holds the connection settings for one remote helpdesk
// instance. It is supplied by the configuration layer and immutable
// for the lifetime of a Client.
type Config struct {
	// BaseURL is the root of the remote instance, e.g.
	// https://support.example.com
	BaseURL string

	// Tenant optionally identifies the tenant on multi-tenant hosts.
	// When set it is appended to the token endpoint as a query
	// parameter.
	Tenant string

	// ClientID and ClientSecret are the OAuth2 client-credentials
	// pair registered on the remote instance.
	ClientID     string
	ClientSecret string

	// HTTPClient overrides the default HTTP client when set. Request
	// deadlines are the caller's concern, carried by the context.
	HTTPClient *http.Client

	// Logger receives auth events and per-request debug lines. Nil
	// disables diagnostic logging.
	Logger *logrus.Logger

	// RequestsPerSecond throttles outgoing calls when positive. This
	// shapes load before it leaves the process; 429 responses are
	// still surfaced to the caller as RateLimitError, never retried
	// here.
	RequestsPerSecond float64
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https (got %q)", c.BaseURL)
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative (got %g)", c.RequestsPerSecond)
	}
	return nil
}

// Client executes authenticated REST calls against one remote
// instance. One Client represents one logical connection and owns the
// token cache for it; concurrent callers sharing a Client share that
// cache.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *logrus.Logger
	limiter *rate.Limiter

	mu    sync.Mutex // guards token
	token tokenState

	now func() time.Time
}

// NewClient creates a client from a validated configuration
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection configuration: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		log:     log,
		limiter: limiter,
		now:     time.Now,
	}, nil
}

// Get performs an authenticated GET and returns the decoded JSON body
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, params)
}

// Post performs an authenticated POST with a JSON body and returns the
// decoded response body
func (c *Client) Post(ctx context.Context, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, body, params)
}

// Delete performs an authenticated DELETE. The decoded body is
// returned when the remote sent one, nil otherwise.
func (c *Client) Delete(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, params)
}

// do executes one authenticated call. Every call authenticates first,
// so an expired token self-heals transparently.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(endpoint, params), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyError(resp.StatusCode, endpoint, resp.Header, respBody)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	return json.RawMessage(respBody), nil
}

// apiURL builds {base}/api{endpoint} plus a query string from the
// non-empty entries of params
func (c *Client) apiURL(endpoint string, params url.Values) string {
	u := c.cfg.BaseURL + "/api" + endpoint
	if len(params) == 0 {
		return u
	}
	q := url.Values{}
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				q.Add(key, v)
			}
		}
	}
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// classifyError maps a non-success response to the error taxonomy. It
// always returns a non-nil error.
func classifyError(status int, endpoint string, header http.Header, body []byte) error {
	switch status {
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if v := header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	case http.StatusNotFound:
		return &NotFoundError{Endpoint: endpoint}
	default:
		return &APIError{Status: status, Body: strings.TrimSpace(string(body))}
	}
}

// TestConnection verifies the connection end to end: a token exchange
// when no valid token is cached, then one cheap list call, so success
// proves API reachability beyond token issuance.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.authenticate(ctx); err != nil {
		return err
	}
	params := url.Values{}
	params.Set("page_size", "1")
	if _, err := c.Get(ctx, "/tickets", params); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// wait blocks until the proactive limiter admits the next request
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}
