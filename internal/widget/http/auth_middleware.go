package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/httputil"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	widgetUseCase "github.com/KB1RD/matrix-widget-api/internal/widget/usecase"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")

	const bearerPrefix = "bearer "
	if len(authHeader) < len(bearerPrefix) ||
		!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	plainToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
	return plainToken, plainToken != ""
}

func abortWith(c *gin.Context, err error, logger *slog.Logger) {
	httputil.HandleErrorGin(c, err, logger)
	c.Abort()
}

// HostAuthenticationMiddleware admits only the host UI, identified by the
// configured bearer token. It guards the routes that open sessions, resolve
// prompts and read audit logs, so a widget holding a session token cannot
// approve its own requests.
//
// An empty hostToken rejects every request with 401.
func HostAuthenticationMiddleware(hostToken string, logger *slog.Logger) gin.HandlerFunc {
	if hostToken == "" {
		logger.Warn("HOST_API_TOKEN is empty, host API requests will be rejected")
	}
	expected := sha256.Sum256([]byte(hostToken))

	return func(c *gin.Context) {
		if hostToken == "" {
			abortWith(c, apperrors.ErrUnauthorized, logger)
			return
		}

		plainToken, ok := bearerToken(c)
		if !ok {
			logger.Debug("host authentication failed: missing or malformed authorization header")
			abortWith(c, apperrors.ErrUnauthorized, logger)
			return
		}

		// Digests have a fixed length so the comparison time does not leak the token length
		presented := sha256.Sum256([]byte(plainToken))
		if subtle.ConstantTimeCompare(presented[:], expected[:]) != 1 {
			logger.Debug("host authentication failed: token mismatch")
			abortWith(c, apperrors.ErrUnauthorized, logger)
			return
		}

		c.Next()
	}
}

// WidgetAuthenticationMiddleware resolves the widget session from the bearer
// token and stores it in the request context. Handlers act for the room, user
// and origin of the session, never for values the widget sends.
//
// Error handling:
//   - Missing, unknown or expired token → 401 Unauthorized
//   - widget_id path parameter differs from the session → 403 Forbidden
//   - Origin header present and differing from the session → 403 Forbidden
func WidgetAuthenticationMiddleware(sessions widgetUseCase.SessionUseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		plainToken, ok := bearerToken(c)
		if !ok {
			logger.Debug("widget authentication failed: missing or malformed authorization header")
			abortWith(c, domain.ErrSessionNotFound, logger)
			return
		}

		session, err := sessions.Authenticate(c.Request.Context(), plainToken)
		if err != nil {
			logger.Debug("widget authentication failed", slog.Any("error", err))
			abortWith(c, err, logger)
			return
		}

		if widgetID := c.Param("widget_id"); widgetID != "" && widgetID != session.Widget.ID {
			logger.Debug("widget session used for another widget",
				slog.String("session_id", session.ID.String()),
				slog.String("widget_id", widgetID),
			)
			abortWith(c, domain.ErrSessionMismatch, logger)
			return
		}

		if origin := c.GetHeader("Origin"); origin != "" && origin != session.Widget.Origin {
			logger.Debug("widget session used from another origin",
				slog.String("session_id", session.ID.String()),
				slog.String("origin", origin),
			)
			abortWith(c, domain.ErrSessionMismatch, logger)
			return
		}

		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), session))
		c.Next()
	}
}
