package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

// Middleware returns a metrics collection middleware.
// Requests to skipPath (the metrics endpoint itself) are not recorded.
func Middleware(skipPath string) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPath != "" && r.URL.Path == skipPath {
				next.ServeHTTP(w, r)
				return
			}

			// Increment active requests
			IncActiveRequests()
			defer DecActiveRequests()

			// Record start time
			start := time.Now()

			// Get request size
			requestSize := int(r.ContentLength)
			if requestSize < 0 {
				requestSize = 0
			}

			// Wrap response writer to capture status code and response size
			wrapped := middleware.NewResponseWriter(w)

			// Call next handler
			next.ServeHTTP(wrapped, r)

			// Record metrics
			duration := time.Since(start)
			statusCode := strconv.Itoa(wrapped.StatusCode())
			responseSize := wrapped.BytesWritten()

			RecordHTTPRequest(r.Method, routeLabel(r), statusCode, duration, requestSize, responseSize)
		})
	}
}

// routeLabel returns the matched chi route pattern, keeping label cardinality bounded
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// IdentifierObserver counts resolved request identifiers
func IdentifierObserver(kind reqctx.Kind, origin middleware.Origin) {
	RecordIdentifierResolved(kind.String(), string(origin))
}
