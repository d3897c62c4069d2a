// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

/*
client.go - Zoho REST API client

A Client is opened once per job run for one Zoho service (Books or Inventory)
and closed when the run ends. Opening builds a pooled HTTP client and
exchanges the service's refresh token for an access token. A failed exchange
does not fail Open: the client is returned without a token and every request
on it fails with KindNoToken, so callers check HasToken and abort.

Request Policy (MakeRequest):
  - Before every attempt: Budget.Acquire (rate limiter, then concurrency slot)
  - 200: decode the JSON object and return it
  - 429: sleep for Retry-After (default 2s) and try again
  - 500/502/503/504: sleep RetryDelay * 2^attempt and try again, except on
    the last attempt
  - Any other status: return KindRejected immediately
  - Timeout or transport error: sleep RetryDelay and try again
  - A non-zero Zoho "code" in a 200 body is treated as a rejection

Failures are returned as *RequestError so callers can tell a permanent
rejection from exhausted retries. MakeRequest never panics.
*/

//nolint:staticcheck // File documentation, not package doc
package zoho

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/zohosync/internal/config"
	"github.com/tomtom215/zohosync/internal/logging"
	"github.com/tomtom215/zohosync/internal/metrics"
)

// Service identifies a Zoho API.
type Service string

const (
	// Books is the Zoho Books API (invoices, credit notes).
	Books Service = "books"
	// Inventory is the Zoho Inventory API (shipment orders, warehouse report).
	Inventory Service = "inventory"
)

// DefaultMaxRetries is the attempt cap used by the endpoint helpers.
const DefaultMaxRetries = 3

// defaultRetryAfter is used when a 429 carries no usable Retry-After header.
const defaultRetryAfter = 2 * time.Second

// maxErrorBodySize limits the maximum amount of response body read for error reporting
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// Client executes GET requests against one Zoho service.
type Client struct {
	service     Service
	baseURL     string
	orgID       string
	accessToken string
	tokenErr    error

	httpClient *http.Client
	budget     *Budget
	breaker    *Breaker
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient  *http.Client
	tokenSource TokenSource
	breaker     *Breaker
	sleep       func(ctx context.Context, d time.Duration) error
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithTokenSource replaces the OAuth refresh-token exchange.
func WithTokenSource(ts TokenSource) Option {
	return func(o *clientOptions) { o.tokenSource = ts }
}

// WithBreaker wraps requests in a circuit breaker shared across runs.
func WithBreaker(b *Breaker) Option {
	return func(o *clientOptions) { o.breaker = b }
}

// WithSleep replaces the backoff sleep. Tests use it to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *clientOptions) { o.sleep = fn }
}

// NewHTTPClient builds the pooled HTTP client used for one service: a shared
// keep-alive pool capped at MaxConnections, a dial timeout of ConnectTimeout
// and a total per-request timeout of RequestTimeout.
func NewHTTPClient(cfg *config.ZohoConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxConnections,
		MaxConnsPerHost:     cfg.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
}

// Open creates a client for service and performs the token exchange.
// The returned error is non-nil only for an unknown service; a failed token
// exchange is reported through HasToken and TokenErr.
func Open(ctx context.Context, service Service, cfg *config.ZohoConfig, budget *Budget, opts ...Option) (*Client, error) {
	var baseURL string
	switch service {
	case Books:
		baseURL = cfg.BooksURL
	case Inventory:
		baseURL = cfg.InventoryURL
	default:
		return nil, fmt.Errorf("unknown zoho service %q", service)
	}

	o := clientOptions{sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = NewHTTPClient(cfg)
	}
	if o.tokenSource == nil {
		o.tokenSource = NewOAuthTokenSource(cfg, o.httpClient)
	}
	if budget == nil {
		budget = NewBudget(string(service), 2, 1)
	}

	retries := cfg.MaxRetries
	if retries < 1 {
		retries = DefaultMaxRetries
	}

	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		orgID:      cfg.OrganizationID,
		httpClient: o.httpClient,
		budget:     budget,
		breaker:    o.breaker,
		maxRetries: retries,
		retryDelay: cfg.RetryDelay,
		sleep:      o.sleep,
	}

	token, err := o.tokenSource.AccessToken(ctx, service)
	if err != nil {
		c.tokenErr = err
		logging.Ctx(ctx).Error().Err(err).Str("service", string(service)).Msg("Zoho token exchange failed")
		return c, nil
	}
	c.accessToken = token
	return c, nil
}

// HasToken reports whether the token exchange succeeded.
func (c *Client) HasToken() bool {
	return c.accessToken != ""
}

// TokenErr returns the token exchange failure, if any.
func (c *Client) TokenErr() error {
	return c.tokenErr
}

// Service returns the Zoho service this client talks to.
func (c *Client) Service() Service {
	return c.service
}

// Budget returns the concurrency budget shared by all requests of this client.
func (c *Client) Budget() *Budget {
	return c.budget
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// URL builds a request URL for path with organization_id and params.
func (c *Client) URL(path string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("organization_id", c.orgID)
	return fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), q.Encode())
}

// MakeRequest performs a GET against reqURL with rate limiting, bounded
// concurrency and retry. maxRetries below 1 uses the configured value.
func (c *Client) MakeRequest(ctx context.Context, reqURL string, maxRetries int) (map[string]any, error) {
	if maxRetries < 1 {
		maxRetries = c.maxRetries
	}
	start := time.Now()

	var (
		result map[string]any
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(func() (map[string]any, error) {
			return c.doWithRetry(ctx, reqURL, maxRetries)
		})
	} else {
		result, err = c.doWithRetry(ctx, reqURL, maxRetries)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "unknown"
		}
	}
	metrics.RecordZohoRequest(string(c.service), outcome, time.Since(start))
	return result, err
}

// doWithRetry runs the attempt loop described in the file header.
func (c *Client) doWithRetry(ctx context.Context, reqURL string, maxRetries int) (map[string]any, error) {
	if !c.HasToken() {
		return nil, &RequestError{Kind: KindNoToken, URL: reqURL, Err: ErrNoToken}
	}

	var lastErr *RequestError
attempts:
	for attempt := 0; attempt < maxRetries; attempt++ {
		last := attempt == maxRetries-1

		if err := ctx.Err(); err != nil {
			return nil, &RequestError{Kind: KindTransport, Attempts: attempt, URL: reqURL, Err: err}
		}

		status, header, body, err := c.attempt(ctx, reqURL)
		metrics.RecordZohoAttempt(string(c.service), status)

		if err != nil {
			lastErr = &RequestError{Kind: KindTransport, Attempts: attempt + 1, URL: reqURL, Err: err}
			if isContextError(ctx.Err()) {
				return nil, lastErr
			}
			if last {
				break attempts
			}
			logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt+1).Str("url", redactURL(reqURL)).Msg("Zoho request failed, retrying")
			metrics.RecordZohoRetry(string(c.service), string(KindTransport))
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, &RequestError{Kind: KindTransport, Attempts: attempt + 1, URL: reqURL, Err: err}
			}
			continue
		}

		switch {
		case status == http.StatusOK:
			return decodeObject(body, reqURL, attempt+1)

		case status == http.StatusTooManyRequests:
			lastErr = &RequestError{Kind: KindRateLimited, Status: status, Attempts: attempt + 1, URL: reqURL, Body: string(body)}
			if last {
				break attempts
			}
			delay := parseRetryAfter(header.Get("Retry-After"))
			logging.Ctx(ctx).Warn().Dur("retry_after", delay).Int("attempt", attempt+1).Msg("Zoho rate limit hit")
			metrics.RecordZohoRetry(string(c.service), string(KindRateLimited))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &RequestError{Kind: KindTransport, Attempts: attempt + 1, URL: reqURL, Err: err}
			}
			continue

		case isServerError(status) && !last:
			delay := c.retryDelay * time.Duration(1<<uint(attempt))
			logging.Ctx(ctx).Warn().Int("status", status).Dur("backoff", delay).Int("attempt", attempt+1).Msg("Zoho server error, backing off")
			metrics.RecordZohoRetry(string(c.service), string(KindServerError))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &RequestError{Kind: KindTransport, Attempts: attempt + 1, URL: reqURL, Err: err}
			}
			continue
		}

		kind := KindRejected
		if isServerError(status) {
			kind = KindServerError
		}
		logging.Ctx(ctx).Error().Int("status", status).Str("url", redactURL(reqURL)).Bytes("body", truncateBytes(body, 500)).Msg("Zoho request failed")
		return nil, &RequestError{Kind: kind, Status: status, Attempts: attempt + 1, URL: reqURL, Body: string(body)}
	}

	if lastErr == nil {
		lastErr = &RequestError{Kind: KindTransport, Attempts: maxRetries, URL: reqURL, Err: errors.New("no attempts made")}
	}
	logging.Ctx(ctx).Error().Err(lastErr).Str("url", redactURL(reqURL)).Msg("Zoho request retries exhausted")
	return nil, lastErr
}

// attempt performs one HTTP GET under the budget and reads the whole body.
func (c *Client) attempt(ctx context.Context, reqURL string) (int, http.Header, []byte, error) {
	release, err := c.budget.Acquire(ctx)
	if err != nil {
		return 0, nil, nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, resp.Header, readBodyForError(resp.Body), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// decodeObject decodes a JSON object, keeping numbers as json.Number so that
// large numeric IDs survive exactly.
func decodeObject(body []byte, reqURL string, attempts int) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		return nil, &RequestError{Kind: KindDecode, Status: http.StatusOK, Attempts: attempts, URL: reqURL, Err: err}
	}
	if result == nil {
		return nil, &RequestError{Kind: KindDecode, Status: http.StatusOK, Attempts: attempts, URL: reqURL, Err: errors.New("response is not a JSON object")}
	}

	if code, ok := result["code"]; ok && !isZeroCode(code) {
		msg, _ := result["message"].(string)
		return nil, &RequestError{Kind: KindRejected, Status: http.StatusOK, Attempts: attempts, URL: reqURL, Body: fmt.Sprintf("code %v: %s", code, msg)}
	}
	return result, nil
}

func isZeroCode(v any) bool {
	switch n := v.(type) {
	case json.Number:
		return n.String() == "0"
	case float64:
		return n == 0
	case string:
		return n == "0" || n == ""
	default:
		return false
	}
}

func isServerError(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if d, err := time.ParseDuration(v + "s"); err == nil && d >= 0 {
		return d
	}
	return defaultRetryAfter
}

// redactURL strips the query string, which may carry credentials.
func redactURL(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
