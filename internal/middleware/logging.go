package middleware

import (
	"net/http"
	"time"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

// Logging returns a middleware that logs HTTP requests and responses
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := NewResponseWriter(w)

			// Identifiers are read from the request scope on every entry
			log := logger.FromContext(r.Context(), "http")

			log.Info("incoming request", logger.Fields{
				"method":         r.Method,
				"path":           r.URL.Path,
				"query":          r.URL.RawQuery,
				"remote_ip":      getClientIP(r),
				"user_agent":     r.UserAgent(),
				"protocol":       r.Proto,
				"host":           r.Host,
				"content_length": r.ContentLength,
			})

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			status := rw.StatusCode()

			fields := logger.Fields{
				"method":        r.Method,
				"path":          r.URL.Path,
				"status":        status,
				"duration_ms":   duration.Milliseconds(),
				"response_size": rw.BytesWritten(),
				"remote_ip":     getClientIP(r),
			}

			message := "request completed"
			switch {
			case status >= 500:
				log.Error(message, fields)
			case status >= 400:
				log.Warn(message, fields)
			default:
				log.Info(message, fields)
			}
		})
	}
}
