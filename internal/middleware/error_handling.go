package middleware

import (
	"net/http"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/reqctx"
)

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewErrorResponse builds an error body carrying the correlation ID of r
func NewErrorResponse(r *http.Request, statusCode int, message string) ErrorResponse {
	return ErrorResponse{
		Code:          statusCode,
		Message:       message,
		CorrelationID: reqctx.CorrelationIDFrom(r.Context()),
	}
}

// WriteJSONError writes a JSON error response
func WriteJSONError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	resp := NewErrorResponse(r, statusCode, message)

	if err := WriteJSON(w, statusCode, resp); err != nil {
		logger.FromContext(r.Context(), "middleware.error_handling").Error("failed to encode error response", logger.Fields{
			"error": err.Error(),
		})
	}
}

// NotFound is a JSON replacement for http.NotFound
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSONError(w, r, http.StatusNotFound, "Not Found")
}

// MethodNotAllowed answers requests whose method has no route
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSONError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
}
