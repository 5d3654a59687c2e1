// Package http provides the HTTP surface of the widget host: capability
// negotiation, event sending and the OpenID handshake stream for widget
// sessions, and the session, prompt and audit routes used by the host UI.
package http

import (
	"context"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	widgetUseCase "github.com/KB1RD/matrix-widget-api/internal/widget/usecase"
)

// RequestContextMiddleware copies the request ID set by requestid into the
// request context so audit logs can correlate with access logs. Non-UUID IDs
// supplied by clients are ignored.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := uuid.Parse(requestid.Get(c)); err == nil {
			ctx := widgetUseCase.WithRequestID(c.Request.Context(), id)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// sessionKey is a context key type for storing the authenticated widget session.
type sessionKey struct{}

// WithSession stores the authenticated widget session in the context.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession retrieves the widget session set by WidgetAuthenticationMiddleware.
func GetSession(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*domain.Session)
	return session, ok
}
