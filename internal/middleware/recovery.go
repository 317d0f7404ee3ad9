package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
)

// Recovery returns a middleware that recovers from panics.
// It sits inside the identifier middlewares so the 500 response still carries
// the identifier headers.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := NewResponseWriter(w)

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.FromContext(r.Context(), "recovery").Error("panic recovered", logger.Fields{
					"error":     fmt.Sprintf("%v", err),
					"stack":     string(debug.Stack()),
					"method":    r.Method,
					"path":      r.URL.Path,
					"remote_ip": getClientIP(r),
				})

				// Too late for an error body
				if rw.Written() {
					return
				}

				WriteJSONError(rw, r, http.StatusInternalServerError, "Internal server error")
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
