package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KB1RD/matrix-widget-api/internal/httputil"
	customValidation "github.com/KB1RD/matrix-widget-api/internal/validation"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	"github.com/KB1RD/matrix-widget-api/internal/widget/driver"
	"github.com/KB1RD/matrix-widget-api/internal/widget/http/dto"
)

// DriverProvider returns the host driver for a widget session.
type DriverProvider interface {
	ForWidget(widget domain.Widget) driver.Driver
}

// WidgetHandler exposes the driver contract to widgets over HTTP.
type WidgetHandler struct {
	drivers       DriverProvider
	streamTimeout time.Duration
	logger        *slog.Logger
}

// NewWidgetHandler creates a widget handler. streamTimeout bounds an OpenID
// stream whose coordinator never settles.
func NewWidgetHandler(drivers DriverProvider, streamTimeout time.Duration, logger *slog.Logger) *WidgetHandler {
	return &WidgetHandler{
		drivers:       drivers,
		streamTimeout: streamTimeout,
		logger:        logger,
	}
}

// sessionWidget returns the widget of the authenticated session. Requests that
// reach a handler without one get 401.
func (h *WidgetHandler) sessionWidget(c *gin.Context) (domain.Widget, bool) {
	session, ok := GetSession(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, domain.ErrSessionNotFound, h.logger)
		return domain.Widget{}, false
	}
	return session.Widget, true
}

// CapabilitiesHandler negotiates the capabilities a widget may use.
// POST /v1/widgets/:widget_id/capabilities - Returns 200 OK with the approved subset.
func (h *WidgetHandler) CapabilitiesHandler(c *gin.Context) {
	widget, ok := h.sessionWidget(c)
	if !ok {
		return
	}

	var req dto.NegotiateCapabilitiesRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	approved := h.drivers.ForWidget(widget).ValidateCapabilities(c.Request.Context(), req.RequestedSet())

	c.JSON(http.StatusOK, dto.CapabilitiesResponse{Approved: approved})
}

// SendEventHandler sends an event into the session's room.
// POST /v1/widgets/:widget_id/events - Returns 201 Created with the room and event IDs.
func (h *WidgetHandler) SendEventHandler(c *gin.Context) {
	widget, ok := h.sessionWidget(c)
	if !ok {
		return
	}

	var req dto.SendEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	details, err := h.drivers.ForWidget(widget).SendEvent(c.Request.Context(), req.Type, req.Content, req.StateKey)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.SendEventResponse{
		RoomID:  details.RoomID,
		EventID: details.EventID,
	})
}

// OpenIDHandler runs an identity-assertion handshake as a server-sent event stream
// for the session's user.
// GET /v1/widgets/:widget_id/openid
//
// Each update is sent as an "update" event. The stream ends after the terminal
// update. A coordinator that breaks the handshake ordering ends the stream with
// an "error" event carrying protocol_violation, which clients must not treat as
// a block. The stream closes as soon as a legal terminal update is sent, so a
// violation pushed after it is never reported to the client.
func (h *WidgetHandler) OpenIDHandler(c *gin.Context) {
	widget, ok := h.sessionWidget(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	ch := driver.NewOpenIDChannel()
	// Late pushes from the coordinator fail fast once the stream is gone
	defer ch.Abort()

	h.drivers.ForWidget(widget).AskOpenID(ctx, ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	terminal := h.streamUpdates(ctx, c, ch)
	if terminal {
		return
	}

	switch {
	case ch.Err() != nil:
		h.logger.Error("openid coordinator broke the handshake",
			slog.String("widget_id", widget.ID),
			slog.Any("error", ch.Err()),
		)
		_, body := httputil.StatusFor(ch.Err())
		h.sendEvent(c, "error", body)

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		h.logger.Warn("openid stream timed out", slog.String("widget_id", widget.ID))
		h.sendEvent(c, "error", httputil.ErrorResponse{
			Error:   "timeout",
			Message: "The handshake did not settle in time",
		})
	}
}

// streamUpdates forwards updates until the terminal one, a violation or ctx
// ending. It reports whether the terminal update was sent.
func (h *WidgetHandler) streamUpdates(ctx context.Context, c *gin.Context, ch *driver.OpenIDChannel) bool {
	updates := ch.Updates()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return false
			}
			h.sendEvent(c, "update", update)
			if update.State.IsTerminal() {
				return true
			}
		case <-ch.Violated():
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (h *WidgetHandler) sendEvent(c *gin.Context, name string, data any) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
