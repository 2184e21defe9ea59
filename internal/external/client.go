// Package external is the boundary between the report service and the
// third-party APIs it depends on: Supabase Auth, SerpAPI, Gemini or an
// OpenAI-compatible model, Financial Modeling Prep, and Lemon Squeezy
// webhook signatures. HTTP-based clients route every call through
// BaseClient, which adds request tracing, a per-provider circuit breaker,
// and consistent error mapping.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"stockbrief/internal/types"
)

const userAgent = "StockBrief/1.0"

// maxErrorSnippet bounds how much of an upstream error body is kept for logs.
const maxErrorSnippet = 512

// BaseClient wraps an *http.Client and a circuit breaker. Calls are made
// exactly once: search and model requests are billed per call, so a retry
// after an ambiguous failure could charge twice.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*gobreaker.Settings)

// WithTripThreshold sets how many consecutive failures open the breaker.
func WithTripThreshold(n uint32) BaseClientOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BaseClientOption {
	return func(s *gobreaker.Settings) {
		s.Timeout = d
	}
}

// NewBaseClient creates a BaseClient whose breaker is named after the
// provider.
func NewBaseClient(httpClient *http.Client, breakerName string, opts ...BaseClientOption) *BaseClient {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &BaseClient{
		client:    httpClient,
		breaker:   gobreaker.NewCircuitBreaker[*http.Response](settings),
		userAgent: userAgent,
	}
}

// Do sends req once through the circuit breaker.
//
// Any HTTP response, including 429 and 5xx, is returned to the caller with a
// nil error; those statuses still count as breaker failures. A transport
// failure, timeout, or open breaker returns an upstream_* AppError. The
// caller closes the response body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		if resp != nil {
			return resp, nil
		}
		return nil, c.mapError(err)
	}
	return resp, nil
}

// State exposes the breaker state for health reporting and tests.
func (c *BaseClient) State() gobreaker.State {
	return c.breaker.State()
}

// mapError translates transport-level failures into AppErrors.
func (c *BaseClient) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("circuit breaker %q is open; upstream service unavailable", c.breaker.Name()),
			err,
		)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request timed out", err)
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

// statusError builds the error for a non-success upstream response. A bounded
// snippet of the body is kept in Details for logging.
func statusError(code types.ErrorCode, provider string, resp *http.Response) *types.AppError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
	if resp.StatusCode == http.StatusTooManyRequests {
		code = types.ErrCodeUpstreamRateLimited
	}
	return types.NewAppErrorWithDetails(
		code,
		fmt.Sprintf("%s returned status %d", provider, resp.StatusCode),
		nil,
		map[string]any{
			"provider": provider,
			"status":   resp.StatusCode,
			"body":     string(snippet),
		},
	)
}

// retag re-labels a BaseClient failure with the provider-specific code while
// keeping the original error in the chain.
func retag(code types.ErrorCode, provider string, err error) *types.AppError {
	return types.NewAppError(code, fmt.Sprintf("%s request failed", provider), err)
}
