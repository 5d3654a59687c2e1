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

// PromptHandler serves the host UI: it lists what widgets are waiting on and
// accepts the user's answers.
type PromptHandler struct {
	prompts widgetUseCase.PromptUseCase
	logger  *slog.Logger
}

// NewPromptHandler creates a new prompt handler.
func NewPromptHandler(prompts widgetUseCase.PromptUseCase, logger *slog.Logger) *PromptHandler {
	return &PromptHandler{
		prompts: prompts,
		logger:  logger,
	}
}

// ListHandler returns the open prompts, oldest first.
// GET /v1/prompts - Returns 200 OK.
func (h *PromptHandler) ListHandler(c *gin.Context) {
	prompts := h.prompts.List(c.Request.Context())
	c.JSON(http.StatusOK, dto.MapPromptsToResponse(prompts))
}

// ResolveHandler answers a prompt.
// POST /v1/prompts/:prompt_id/resolve - Returns 204 No Content, or 404 when the
// prompt is no longer waiting.
func (h *PromptHandler) ResolveHandler(c *gin.Context) {
	promptID, err := uuid.Parse(c.Param("prompt_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid prompt ID format: must be a valid UUID"),
			h.logger)
		return
	}

	var req dto.ResolvePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.prompts.Resolve(c.Request.Context(), promptID, req.ToResolution()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
