// Package reqctx stores request-scoped identifiers (correlation ID, request ID,
// idempotency key) in the request context.
//
// A Scope is created once per inbound request by the identifier middleware and
// travels with the request's context.Context, so concurrent requests never see
// each other's values. Lookups outside a scope report the value as absent.
package reqctx

import (
	"context"
	"sync"
)

// Kind identifies the type of a request-scoped identifier
type Kind string

const (
	// CorrelationID groups log lines of one logical request across services
	CorrelationID Kind = "correlation_id"
	// RequestID is unique to a single handling of a request
	RequestID Kind = "request_id"
	// IdempotencyKey is the client-supplied token for retried requests
	IdempotencyKey Kind = "idempotency_key"
)

// Kinds lists every identifier kind in a stable order
var Kinds = []Kind{CorrelationID, RequestID, IdempotencyKey}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Scope holds the identifiers of one request.
// All values start unset.
type Scope struct {
	mu     sync.RWMutex
	values map[Kind]string
}

func newScope() *Scope {
	return &Scope{values: make(map[Kind]string, len(Kinds))}
}

// Set binds a value for the given kind, replacing any earlier value.
func (s *Scope) Set(kind Kind, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[kind] = value
}

// Get returns the value bound to kind and whether it was set.
func (s *Scope) Get(kind Kind) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[kind]
	return v, ok
}

// Snapshot returns a copy of all bound values
func (s *Scope) Snapshot() map[Kind]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Kind]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

type scopeKey struct{}

// WithScope returns a context carrying a request scope. If ctx already has one
// it is reused, so stacked middlewares share a single scope per request.
func WithScope(ctx context.Context) (context.Context, *Scope) {
	if s := FromContext(ctx); s != nil {
		return ctx, s
	}
	s := newScope()
	return context.WithValue(ctx, scopeKey{}, s), s
}

// FromContext returns the request scope of ctx, or nil outside a request.
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// Set binds value in the scope of ctx. It reports false when ctx has no scope.
func Set(ctx context.Context, kind Kind, value string) bool {
	s := FromContext(ctx)
	if s == nil {
		return false
	}
	s.Set(kind, value)
	return true
}

// Get returns the value of kind in the scope of ctx.
// Absent values, including calls outside any request, return ("", false).
func Get(ctx context.Context, kind Kind) (string, bool) {
	s := FromContext(ctx)
	if s == nil {
		return "", false
	}
	return s.Get(kind)
}

// CorrelationIDFrom is a shorthand for Get(ctx, CorrelationID) that drops the presence flag
func CorrelationIDFrom(ctx context.Context) string {
	v, _ := Get(ctx, CorrelationID)
	return v
}

// RequestIDFrom is a shorthand for Get(ctx, RequestID)
func RequestIDFrom(ctx context.Context) string {
	v, _ := Get(ctx, RequestID)
	return v
}

// IdempotencyKeyFrom is a shorthand for Get(ctx, IdempotencyKey)
func IdempotencyKeyFrom(ctx context.Context) string {
	v, _ := Get(ctx, IdempotencyKey)
	return v
}
