package middleware

import (
	"net/http"
	"time"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

// Middleware represents a middleware function
// It wraps an http.Handler and returns a new http.Handler
type Middleware func(http.Handler) http.Handler

// Chain represents a chain of middleware
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Then chains the middleware and returns the final handler
func (c *Chain) Then(h http.Handler) http.Handler {
	// Apply middleware in reverse order so that the first middleware
	// in the chain is executed first
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Append adds middleware to the end of the chain
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	newChain := &Chain{
		middlewares: make([]Middleware, 0, len(c.middlewares)+len(middlewares)),
	}
	newChain.middlewares = append(newChain.middlewares, c.middlewares...)
	newChain.middlewares = append(newChain.middlewares, middlewares...)
	return newChain
}

// Len returns the number of middlewares in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Timing middleware logs the time taken by the handler
func Timing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			logger.FromContext(r.Context(), "middleware.timing").Info("request timing", logger.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.StatusCode(),
				"duration_ms": duration.Milliseconds(),
				"duration_us": duration.Microseconds(),
			})
		})
	}
}
