package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KB1RD/matrix-widget-api/internal/httputil"
	customValidation "github.com/KB1RD/matrix-widget-api/internal/validation"
	"github.com/KB1RD/matrix-widget-api/internal/widget/http/dto"
	widgetUseCase "github.com/KB1RD/matrix-widget-api/internal/widget/usecase"
)

// SessionHandler lets the host UI open and close widget sessions.
type SessionHandler struct {
	sessions widgetUseCase.SessionUseCase
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions widgetUseCase.SessionUseCase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// RequireSession returns the middleware that authenticates widget requests
// against the sessions this handler opens.
func (h *SessionHandler) RequireSession() gin.HandlerFunc {
	return WidgetAuthenticationMiddleware(h.sessions, h.logger)
}

// OpenHandler opens a session for an embedded widget.
// POST /v1/sessions - Returns 201 Created with the session token.
func (h *SessionHandler) OpenHandler(c *gin.Context) {
	var req dto.OpenSessionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	session, plainToken, err := h.sessions.Open(c.Request.Context(), req.ToWidget())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSessionToResponse(session, plainToken))
}

// CloseHandler ends a session so its token stops working.
// DELETE /v1/sessions/:session_id - Returns 204 No Content, or 404 when unknown.
func (h *SessionHandler) CloseHandler(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid session ID format: must be a valid UUID"),
			h.logger)
		return
	}

	if err := h.sessions.Close(c.Request.Context(), sessionID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
