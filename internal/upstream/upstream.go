// Package upstream holds the shared HTTP client used to reach dependent services.
//
// Outgoing requests carry the caller's correlation ID and idempotency key along
// with W3C trace context, and pass through a circuit breaker so a dead
// dependency fails fast.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/abnerjacobsen/das-sankhya/internal/circuitbreaker"
	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
	"github.com/abnerjacobsen/das-sankhya/internal/tracing"
)

// ErrCircuitOpen is returned when the breaker rejects a request without sending it
var ErrCircuitOpen = circuitbreaker.ErrCircuitOpen

// Client sends requests to dependent services
type Client struct {
	client            *http.Client
	breaker           *circuitbreaker.CircuitBreaker
	correlationHeader string
	idempotencyHeader string
}

// New creates a client from the upstream settings.
// Header names for propagated identifiers come from ids.
func New(cfg config.UpstreamConfig, ids config.IdentifiersConfig) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	correlationHeader := ids.CorrelationIDHeader
	if correlationHeader == "" {
		correlationHeader = middleware.CorrelationIDHeader
	}
	idempotencyHeader := ids.IdempotencyKeyHeader
	if idempotencyHeader == "" {
		idempotencyHeader = middleware.IdempotencyKeyHeader
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			// Don't follow redirects; a redirect still proves the host is up
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker: circuitbreaker.New("upstream", &circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerTimeout,
			Interval:         cfg.BreakerInterval,
			MaxRequests:      cfg.BreakerMaxRequests,
		}),
		correlationHeader: correlationHeader,
		idempotencyHeader: idempotencyHeader,
	}
}

// Get sends a GET request to rawURL. Any HTTP response counts as success;
// only transport failures and an open breaker return an error.
// The caller must close the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	host := u.Host
	log := logger.FromContext(ctx, "upstream")

	ctx, span := tracing.StartSpan(ctx, "GET "+host,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(http.MethodGet),
			semconv.HTTPURLKey.String(rawURL),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	c.propagate(ctx, req)

	start := time.Now()
	var resp *http.Response
	err = c.breaker.Execute(func() error {
		var doErr error
		resp, doErr = c.client.Do(req)
		return doErr
	})
	duration := time.Since(start)

	if err != nil {
		errorType := classify(err)
		metrics.RecordUpstreamError(host, errorType)
		tracing.RecordError(ctx, err)
		span.SetStatus(codes.Error, errorType)

		log.Warn("upstream request failed", logger.Fields{
			"url":         rawURL,
			"breaker":     c.breaker.Name(),
			"error_type":  errorType,
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		})

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, fmt.Errorf("upstream %s: %w", host, ErrCircuitOpen)
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	metrics.RecordUpstreamRequest(host, strconv.Itoa(resp.StatusCode), duration)
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(resp.StatusCode))

	log.Debug("upstream response received", logger.Fields{
		"url":         rawURL,
		"status":      resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	})

	return resp, nil
}

// propagate copies the request identifiers and trace context onto req
func (c *Client) propagate(ctx context.Context, req *http.Request) {
	if v, ok := reqctx.Get(ctx, reqctx.CorrelationID); ok && v != "" {
		req.Header.Set(c.correlationHeader, v)
	}
	if v, ok := reqctx.Get(ctx, reqctx.IdempotencyKey); ok && v != "" {
		req.Header.Set(c.idempotencyHeader, v)
	}
	tracing.InjectTraceContext(ctx, req)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

// Close releases idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// classify maps an error to the error_type metric label
func classify(err error) string {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "connection"
}
