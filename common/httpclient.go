package common

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HttpClient is an interface for HTTP operations with optional retry logic.
// This allows mocking or custom transport layers in testing.
type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
	RetryWithExponentialBackoff(ctx context.Context, operation func() (any, error)) (any, error)
	SetRandAndSleepForTest(sleep func(d time.Duration), seed int64)
}

// HTTPError is a custom error that captures unexpected status codes and response bodies.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, string(e.Body))
}

// Middleware wraps a RoundTripper. Middlewares are the client's interceptor chain:
// each one sees the outbound request and the inbound response of everything it wraps.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts an ordinary function to http.RoundTripper.
type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// userAgentRoundTripper is a custom RoundTripper that adds a User-Agent header.
type userAgentRoundTripper struct {
	Wrapped   http.RoundTripper
	UserAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone request to avoid mutating the original
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.UserAgent)
	return rt.Wrapped.RoundTrip(clone)
}

// requestIDRoundTripper stamps X-Request-Id unless the caller already set one,
// so a replayed request keeps the id of the original.
type requestIDRoundTripper struct {
	Wrapped http.RoundTripper
}

func (rt *requestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return rt.Wrapped.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(RequestIDHeader, uuid.NewString())
	return rt.Wrapped.RoundTrip(clone)
}

// Implementation of HttpClient that wraps a standard *http.Client with retry logic.
type httpClient struct {
	client    *http.Client
	sleepFunc func(d time.Duration)

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultTimeout applies when the base client has no timeout of its own.
const DefaultTimeout = 10 * time.Second

// NewHttpClient returns a new HttpClient with a custom User-Agent and the given
// middlewares installed once, outermost first. The chain is fixed for the life
// of the client.
func NewHttpClient(userAgent string, base *http.Client, middlewares ...Middleware) HttpClient {
	if base == nil {
		base = &http.Client{}
	}
	base.Transport = Chain(base.Transport, userAgent, middlewares...)
	if base.Timeout == 0 {
		base.Timeout = DefaultTimeout
	}

	return &httpClient{
		client:    base,
		sleepFunc: time.Sleep,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Chain builds the transport used by NewHttpClient. It is exported so callers that
// need a bare transport (for example the refresh call, which must bypass the auth
// middlewares) get the same User-Agent and request-id handling.
func Chain(transport http.RoundTripper, userAgent string, middlewares ...Middleware) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	var rt http.RoundTripper = &userAgentRoundTripper{
		Wrapped:   transport,
		UserAgent: userAgent,
	}
	rt = &requestIDRoundTripper{Wrapped: rt}
	for i := len(middlewares) - 1; i >= 0; i-- {
		rt = middlewares[i](rt)
	}
	return rt
}

func (h *httpClient) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

func (h *httpClient) CloseIdleConnections() {
	h.client.CloseIdleConnections()
}

// Exponential backoff constants
const (
	maxRetries = 5
	baseDelay  = 1 * time.Second
	maxDelay   = 32 * time.Second
)

// RetryWithExponentialBackoff attempts the given operation() multiple times if
// we encounter a retryable HTTPError (500, 502, 503, 504). A 401 is never retried
// here; token recovery happens inside the transport.
func (h *httpClient) RetryWithExponentialBackoff(ctx context.Context, operation func() (any, error)) (any, error) {
	var result any
	var err error
	delay := baseDelay

	for i := 0; i < maxRetries; i++ {
		if result, err = operation(); err == nil {
			return result, nil
		}

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !retryableStatus(httpErr.StatusCode) {
			break
		}
		if i == maxRetries-1 {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		sleep, jitter := h.backoff(delay)
		sleep(delay + jitter)

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, err
}

func (h *httpClient) backoff(delay time.Duration) (func(time.Duration), time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sleepFunc, time.Duration(h.rng.Int63n(int64(delay)))
}

func (h *httpClient) SetRandAndSleepForTest(sleep func(d time.Duration), seed int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sleepFunc = sleep
	h.rng = rand.New(rand.NewSource(seed))
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
