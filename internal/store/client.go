// Package store is the protocol adapter for the external artifact store. Every
// request carries the session's bearer token. A 401 from any endpoint tears the
// session down before the error reaches the caller; a 403 is an authorization
// failure that leaves the session intact.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-vault/internal/observability"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for store requests.
const DefaultUserAgent = "resume-vault/1.0"

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer credential and is told which token the store
// rejected. session.Manager implements it.
type TokenSource interface {
	Token() (string, error)
	Invalidate(token, reason string)
}

// Options configures the client.
type Options struct {
	Timeout   time.Duration
	UserAgent string

	// RateLimit paces requests (per second); zero disables pacing.
	RateLimit float64
	Burst     int

	// BreakerEnabled makes the client fail fast while the store is unreachable.
	// Only transport failures count against the breaker and nothing is retried.
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	// ValidateResponses checks list payloads against the artifact page schema.
	ValidateResponses bool

	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *observability.StoreMetrics
}

// DefaultOptions returns sensible defaults for talking to the store.
func DefaultOptions() *Options {
	return &Options{
		Timeout:             DefaultTimeout,
		UserAgent:           DefaultUserAgent,
		RateLimit:           10,
		Burst:               5,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenTimeout:  15 * time.Second,
		ValidateResponses:   true,
	}
}

// Client issues artifact and account requests against one store.
type Client struct {
	baseURL *url.URL
	tokens  TokenSource
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
	opts    Options
	logger  *zap.Logger
	metrics *observability.StoreMetrics
}

// New creates a Client for the store at baseURL.
func New(baseURL string, tokens TokenSource, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if tokens == nil {
		return nil, errors.New("store client needs a token source")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store URL %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
		opts:    *opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.opts.UserAgent == "" {
		c.opts.UserAgent = DefaultUserAgent
	}
	c.http = opts.HTTPClient
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.BreakerEnabled {
		c.breaker = c.newBreaker()
	}
	return c, nil
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[*http.Response] {
	minRequests := c.opts.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := c.opts.BreakerFailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "artifact-store",
		MaxRequests: 1,
		Timeout:     c.opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// BaseURL returns the store's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint joins an already-escaped path onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// do sends one request and sorts the response into the error taxonomy. On
// success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in any) (resp *http.Response, err error) {
	start := time.Now()
	outcome := observability.OutcomeOK
	defer func() {
		c.metrics.RecordRequest(op, outcome, time.Since(start))
	}()

	target := c.endpoint(path, query)

	// Sign-in is the only request sent without a bearer token.
	anonymous := op == opSignIn
	var token string
	if !anonymous {
		if token, err = c.tokens.Token(); err != nil {
			outcome = observability.OutcomeUnauthorized
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	if !anonymous {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			outcome = observability.OutcomeTransport
			return nil, &TransportError{Op: op, URL: target, Cause: err}
		}
	}

	resp, err = c.send(req)
	if err != nil {
		outcome = observability.OutcomeTransport
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = observability.OutcomeCircuitOpen
		}
		c.logger.Warn("store request failed",
			zap.String("op", op),
			zap.String("url", target),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &TransportError{Op: op, URL: target, Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !anonymous:
		outcome = observability.OutcomeUnauthorized
		drain(resp)
		c.logger.Info("store rejected token", zap.String("op", op), zap.String("request_id", requestID))
		c.tokens.Invalidate(token, op+": store answered 401")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode == http.StatusForbidden && !anonymous:
		outcome = observability.OutcomeForbidden
		defer drain(resp)
		return nil, &ForbiddenError{Op: op, Message: errorMessage(resp)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		outcome = observability.OutcomeRejected
		defer drain(resp)
		return nil, &RequestError{Op: op, Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	return resp, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.http.Do(req)
	}
	return c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
}

// Call sends a JSON request and decodes a JSON reply into out (when non-nil).
func (c *Client) Call(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	resp, err := c.do(ctx, op, method, path, query, in)
	if err != nil {
		return err
	}
	defer drain(resp)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"message": ...} from an error body, falling back to a
// generic message.
func errorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			if body.Message != "" {
				return body.Message
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	return fmt.Sprintf("Request failed (%d %s)", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
