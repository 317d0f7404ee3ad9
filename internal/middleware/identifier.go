package middleware

import (
	"net/http"

	"github.com/abnerjacobsen/das-sankhya/internal/ident"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

const (
	// CorrelationIDHeader is the HTTP header for correlation ID
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader is the HTTP header for request ID
	RequestIDHeader = "X-Request-ID"
	// IdempotencyKeyHeader is the HTTP header for idempotency key
	IdempotencyKeyHeader = "Idempotency-Key"

	// DefaultIdempotencyKeyMaxLength caps stored idempotency keys
	DefaultIdempotencyKeyMaxLength = 128
)

// Origin tells where a request identifier came from
type Origin string

const (
	// OriginClient means the inbound header value was used
	OriginClient Origin = "client"
	// OriginGenerated means no inbound value existed and one was generated
	OriginGenerated Origin = "generated"
	// OriginReplaced means the inbound value was invalid and a new one was generated
	OriginReplaced Origin = "replaced"
)

// Observer is notified each time an identifier is resolved for a request
type Observer func(kind reqctx.Kind, origin Origin)

// Policy describes how one identifier is read, generated and echoed
type Policy struct {
	// Kind is the key the value is stored under in the request scope
	Kind reqctx.Kind
	// Header is read from the request and written to the response
	Header string
	// Generate creates a value when none usable was supplied
	Generate bool
	// Validate rejects inbound values that are not a CUID or a v4 UUID
	Validate bool
	// IgnoreInbound always generates, whatever the client sent
	IgnoreInbound bool
	// MaxLength truncates inbound values; zero disables truncation
	MaxLength int
	// Expose adds Header to Access-Control-Expose-Headers
	Expose bool
	// Observer is optional
	Observer Observer
}

// Option customizes a Policy
type Option func(*Policy)

// WithHeader overrides the header name
func WithHeader(name string) Option {
	return func(p *Policy) {
		if name != "" {
			p.Header = name
		}
	}
}

// WithValidation toggles inbound value validation
func WithValidation(enabled bool) Option {
	return func(p *Policy) {
		p.Validate = enabled
	}
}

// WithMaxLength sets the truncation length of inbound values
func WithMaxLength(n int) Option {
	return func(p *Policy) {
		p.MaxLength = n
	}
}

// WithObserver registers an observer of resolved identifiers
func WithObserver(o Observer) Option {
	return func(p *Policy) {
		p.Observer = o
	}
}

// CorrelationID returns a middleware that reads X-Correlation-ID, replacing
// missing or invalid values with a generated CUID.
func CorrelationID(opts ...Option) Middleware {
	return Identifier(newPolicy(Policy{
		Kind:     reqctx.CorrelationID,
		Header:   CorrelationIDHeader,
		Generate: true,
		Validate: true,
		Expose:   true,
	}, opts))
}

// RequestID returns a middleware that assigns a fresh CUID to every request.
// Inbound X-Request-ID headers are ignored.
func RequestID(opts ...Option) Middleware {
	return Identifier(newPolicy(Policy{
		Kind:          reqctx.RequestID,
		Header:        RequestIDHeader,
		Generate:      true,
		IgnoreInbound: true,
		Expose:        true,
	}, opts))
}

// IdempotencyKey returns a middleware that keeps the client's Idempotency-Key,
// truncated to 128 characters. Nothing is generated when the header is absent.
func IdempotencyKey(opts ...Option) Middleware {
	return Identifier(newPolicy(Policy{
		Kind:      reqctx.IdempotencyKey,
		Header:    IdempotencyKeyHeader,
		MaxLength: DefaultIdempotencyKeyMaxLength,
		Expose:    true,
	}, opts))
}

func newPolicy(p Policy, opts []Option) Policy {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Identifier returns a middleware resolving one request identifier according to p.
// The value is stored in the request scope before next runs and written to the
// response header when the response starts.
func Identifier(p Policy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope := reqctx.WithScope(r.Context())
			r = r.WithContext(ctx)

			value, origin, ok := p.resolve(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			scope.Set(p.Kind, value)
			if p.Observer != nil {
				p.Observer(p.Kind, origin)
			}

			rw := NewResponseWriter(w)
			rw.OnBeforeWrite(func(h http.Header) {
				h.Set(p.Header, value)
				if p.Expose {
					ExposeHeader(h, p.Header)
				}
			})

			next.ServeHTTP(rw, r)

			// Handlers that write nothing get the implicit 200 from us,
			// otherwise the server would send it without running the hooks
			if !rw.Written() {
				rw.WriteHeader(http.StatusOK)
			}
		})
	}
}

// resolve picks the value for the request. ok is false when there is nothing to store.
func (p Policy) resolve(r *http.Request) (value string, origin Origin, ok bool) {
	if p.IgnoreInbound {
		return ident.New(), OriginGenerated, true
	}

	inbound := r.Header.Get(p.Header)
	switch {
	case inbound == "":
		if !p.Generate {
			return "", "", false
		}
		return ident.New(), OriginGenerated, true

	case p.Validate && !ident.IsValid(inbound):
		if !p.Generate {
			return "", "", false
		}
		value = ident.New()
		logger.FromContext(r.Context(), "middleware.identifier").Warn("invalid inbound identifier replaced", logger.Fields{
			"kind":      p.Kind.String(),
			"header":    p.Header,
			"received":  ident.Truncate(inbound, 64),
			"generated": value,
		})
		return value, OriginReplaced, true
	}

	return ident.Truncate(inbound, p.MaxLength), OriginClient, true
}
