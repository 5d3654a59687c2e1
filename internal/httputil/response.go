// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// errorMapping is the status and body for a domain error.
type errorMapping struct {
	target   error
	status   int
	code     string
	message  string
	wrapText bool // expose err.Error() instead of message
}

var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found", false},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "A conflict occurred with existing data", false},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", "", true},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication is required", false},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource", false},
	{apperrors.ErrNotImplemented, http.StatusNotImplemented, "not_implemented", "", true},
	{apperrors.ErrProtocolViolation, http.StatusBadGateway, "protocol_violation", "", true},
}

// StatusFor returns the HTTP status and error code HandleErrorGin uses for err.
func StatusFor(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if apperrors.Is(err, m.target) {
			message := m.message
			if m.wrapText {
				message = err.Error()
			}
			return m.status, ErrorResponse{Error: m.code, Message: message}
		}
	}

	// Unknown errors are internal; don't expose details to the client
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	}
}

// HandleErrorGin maps domain errors to HTTP status codes and writes a JSON response.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, errorResponse := StatusFor(err)

	// Log the full error details (including wrapped errors)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", errorResponse.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, errorResponse)
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}
