// Package httpx provides a retrying, rate-limited HTTP client used by every
// outbound collaborator (LLM provider, vector index, warehouse, notifier)
// that speaks plain JSON-over-HTTP.
package httpx

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/logai/logai/internal/tracing"
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	TLSVerify       bool
	EnableTracing   bool
	RateLimit       int
	RateLimitBurst  int
	EnableRateLimit bool
	UserAgent       string
	// AuthHeader, when set, is added to every outbound request (e.g.
	// "Authorization": "Bearer sk-...").
	AuthHeader map[string]string
}

// Client is a generic retrying, rate-limited HTTP client.
type Client struct {
	httpClient    *http.Client
	opts          Options
	logger        *zap.Logger
	rateLimiter   *rate.Limiter
	enableTracing bool
}

// New creates a new HTTP client.
func New(opts Options, logger *zap.Logger) *Client {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if !opts.TLSVerify {
		tlsConfig.InsecureSkipVerify = true
		logger.Warn("TLS certificate verification is DISABLED - this is insecure and should only be used for testing",
			zap.String("base_url", opts.BaseURL),
		)
	}

	transport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		IdleConnTimeout:     opts.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	var rateLimiter *rate.Limiter
	if opts.EnableRateLimit {
		rateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimitBurst)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "logai/dev"
	}

	return &Client{
		httpClient:    httpClient,
		opts:          opts,
		logger:        logger,
		rateLimiter:   rateLimiter,
		enableTracing: opts.EnableTracing,
	}
}

// Request represents an HTTP request against the configured base URL.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    interface{}
	Headers map[string]string
	Timeout time.Duration // optional per-request timeout, overrides the client default
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes an HTTP request with retry logic: exponential backoff with
// jitter by default, or, after a 429 response, the upstream's Retry-After
// header when present.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	var lastResp *Response

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			waitTime := c.calculateRetryWait(attempt, lastResp)
			c.logger.Debug("Retrying request", zap.Int("attempt", attempt), zap.Duration("wait", waitTime))
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			lastResp = nil
			if isRetryable(err) {
				continue
			}
			return nil, err
		}

		if shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(resp.Body))
			lastResp = resp
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) calculateRetryWait(attempt int, lastResp *Response) time.Duration {
	if lastResp != nil && lastResp.StatusCode == http.StatusTooManyRequests {
		if retryAfter := c.parseRetryAfter(lastResp.Headers); retryAfter > 0 {
			jitter := cryptoRandDuration(int64(retryAfter) / 4)
			waitTime := retryAfter + jitter
			if waitTime > c.opts.RetryWaitMax {
				waitTime = c.opts.RetryWaitMax
			}
			return waitTime
		}
	}

	shift := min(attempt-1, 30)
	baseWait := c.opts.RetryWaitMin * time.Duration(1<<shift)
	if baseWait > c.opts.RetryWaitMax {
		baseWait = c.opts.RetryWaitMax
	}
	jitter := cryptoRandDuration(int64(baseWait) / 4)
	return baseWait + jitter
}

func (c *Client) parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
		if seconds > 0 && seconds <= time.Hour {
			return seconds
		}
		if seconds > time.Hour {
			return time.Hour
		}
	}

	httpDateFormats := []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC}
	for _, format := range httpDateFormats {
		if t, err := time.Parse(format, retryAfter); err == nil {
			waitTime := time.Until(t)
			if waitTime > 0 && waitTime <= time.Hour {
				return waitTime
			}
			if waitTime > time.Hour {
				return time.Hour
			}
		}
	}

	return 0
}

func (c *Client) doRequest(ctx context.Context, req *Request) (*Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	requestURL := c.buildRequestURL(req)

	bodyReader, err := prepareBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(ctx, httpReq)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	return c.executeRequest(httpReq, req, requestURL)
}

func (c *Client) buildRequestURL(req *Request) string {
	requestURL := c.opts.BaseURL + req.Path
	if len(req.Query) > 0 {
		params := url.Values{}
		for k, v := range req.Query {
			params.Add(k, v)
		}
		requestURL = fmt.Sprintf("%s?%s", requestURL, params.Encode())
	}
	return requestURL
}

func prepareBody(req *Request) (io.Reader, error) {
	if req.Body == nil {
		return nil, nil
	}
	bodyBytes, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(bodyBytes), nil
}

func (c *Client) setHeaders(ctx context.Context, httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)

	if c.enableTracing {
		info := tracing.FromContext(ctx)
		for k, v := range info.Headers() {
			httpReq.Header.Set(k, v)
		}
	}

	for k, v := range c.opts.AuthHeader {
		httpReq.Header.Set(k, v)
	}
}

func (c *Client) executeRequest(httpReq *http.Request, req *Request, requestURL string) (*Response, error) {
	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("HTTP request failed",
			zap.Error(err), zap.String("method", req.Method), zap.String("url", requestURL), zap.Duration("duration", duration))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("HTTP request completed",
		zap.String("method", req.Method), zap.String("url", requestURL),
		zap.Int("status", httpResp.StatusCode), zap.Duration("duration", duration))

	return &Response{StatusCode: httpResp.StatusCode, Body: body, Headers: httpResp.Header}, nil
}

// cryptoRandInt63 returns a non-negative random int64 using crypto/rand.
func cryptoRandInt63() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	b[7] &= 0x7F
	var n int64
	for i := 0; i < 8; i++ {
		n |= int64(b[i]) << (8 * i)
	}
	return n
}

func cryptoRandDuration(maxVal int64) time.Duration {
	if maxVal <= 0 {
		return 0
	}
	return time.Duration(cryptoRandInt63() % maxVal)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var syscallErr *net.OpError
	if errors.As(err, &syscallErr) {
		if errors.Is(syscallErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(syscallErr.Err, syscall.ECONNRESET) ||
			errors.Is(syscallErr.Err, syscall.ENETUNREACH) ||
			errors.Is(syscallErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(syscallErr.Err, syscall.ETIMEDOUT) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset", "connection refused", "no such host",
		"network is unreachable", "i/o timeout", "tls handshake timeout", "eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ping issues a lightweight GET against path to verify reachability, for
// use by internal/health.
func (c *Client) Ping(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}
	return nil
}
