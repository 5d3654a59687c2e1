package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	widgetHTTP "github.com/KB1RD/matrix-widget-api/internal/widget/http"
)

// CustomLoggerMiddleware logs one structured line per request with the request ID.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if session, ok := widgetHTTP.GetSession(c.Request.Context()); ok {
			attrs = append(attrs,
				slog.String("session_id", session.ID.String()),
				slog.String("widget_id", session.Widget.ID),
			)
		} else if widgetID := c.Param("widget_id"); widgetID != "" {
			attrs = append(attrs, slog.String("widget_id", widgetID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("http request", attrs...)
		case status >= 400:
			logger.Warn("http request", attrs...)
		default:
			logger.Info("http request", attrs...)
		}
	}
}
