package http

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsMaxAge bounds how long browsers cache a preflight answer.
const corsMaxAge = 12 * time.Hour

// createCORSMiddleware allows widgets served from the listed origins to call
// the API from inside the client's iframe. Entries may use a single wildcard
// label, e.g. "https://*.widgets.example.org". Returns nil when CORS is
// disabled or nothing usable is configured.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no widget origins configured, CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled",
		slog.Int("origin_count", len(origins)),
		slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowWildcard: slices.ContainsFunc(origins, func(o string) bool { return strings.Contains(o, "*") }),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders: []string{
			"Authorization",
			"Content-Type",
			"Last-Event-ID",
		},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

// parseOrigins splits a comma-separated origin list, trimming whitespace,
// dropping trailing slashes and duplicates.
func parseOrigins(originsStr string) []string {
	var origins []string
	for part := range strings.SplitSeq(originsStr, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin == "" || slices.Contains(origins, origin) {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
