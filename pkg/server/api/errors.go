package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/task"
)

// ErrorResponse represents a standard JSON error response.
//
// Example:
//
//	{
//	  "error": "Not Found",
//	  "message": "job not found: 0b6f..."
//	}
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// WriteError writes a standard JSON error response, deriving the status
// code from the error:
//   - jobs.ErrNotFound → 404 Not Found
//   - jobs.ErrQueueFull → 503 Service Unavailable
//   - context.DeadlineExceeded → 504 Gateway Timeout
//   - task errors → their task.HTTPStatus
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		statusCode int
		code       string
	)

	switch {
	case errors.Is(err, jobs.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull):
		statusCode = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
	default:
		statusCode = task.HTTPStatus(err)
		code = task.ErrorCode(err)
	}

	level := zerolog.ErrorLevel
	if statusCode < http.StatusInternalServerError {
		level = zerolog.WarnLevel
	}
	zerolog.Ctx(r.Context()).WithLevel(level).
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Str("code", code).
		Msg("request failed")

	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: err.Error(),
		Code:    code,
	})
}

// WriteJSONError writes a custom JSON error response with a specific status code.
//
// Example:
//
//	WriteJSONError(w, http.StatusBadRequest, "Invalid Input", "images: required")
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorType, Message: message})
}

// WriteJSON writes data as the response body. Encoding failures can only be
// reported in the server log, the status line is already sent.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Str("component", "api").Err(err).Msg("encode response")
	}
}
