package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

// Span attribute keys for request identifiers
const (
	CorrelationIDKey  = attribute.Key("correlation_id")
	RequestIDKey      = attribute.Key("request_id")
	IdempotencyKeyKey = attribute.Key("idempotency_key")
)

// Middleware creates a tracing middleware that extracts and propagates trace context.
// Identifiers already resolved for the request are attached to the server span.
func Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract trace context from incoming request headers
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			spanName := r.Method + " " + r.URL.Path
			ctx, span := Tracer().Start(
				ctx,
				spanName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPURLKey.String(r.URL.String()),
					semconv.HTTPTargetKey.String(r.URL.Path),
					semconv.HTTPSchemeKey.String(scheme(r)),
					semconv.HTTPHostKey.String(r.Host),
					semconv.HTTPUserAgentKey.String(r.UserAgent()),
				),
				trace.WithAttributes(identifierAttributes(ctx)...),
			)
			defer span.End()

			wrapped := middleware.NewResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			status := wrapped.StatusCode()
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))

			if status >= 400 {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// identifierAttributes returns the identifiers bound in the request scope of ctx
func identifierAttributes(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if v, ok := reqctx.Get(ctx, reqctx.CorrelationID); ok {
		attrs = append(attrs, CorrelationIDKey.String(v))
	}
	if v, ok := reqctx.Get(ctx, reqctx.RequestID); ok {
		attrs = append(attrs, RequestIDKey.String(v))
	}
	if v, ok := reqctx.Get(ctx, reqctx.IdempotencyKey); ok {
		attrs = append(attrs, IdempotencyKeyKey.String(v))
	}
	return attrs
}

// InjectTraceContext injects trace context into HTTP headers for outgoing requests
func InjectTraceContext(ctx context.Context, req *http.Request) {
	propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// scheme returns the request scheme (http or https)
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
