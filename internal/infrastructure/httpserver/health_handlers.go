package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// healthCheck reports each dependency. The cache is optional for serving,
// so only a failing required checker turns the status unavailable.
func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	overall := "healthy"
	code := http.StatusOK
	for _, hc := range s.healthCheckers {
		if hc == nil {
			continue
		}
		if err := hc.Check(ctx); err != nil {
			deps[hc.Name()] = "unhealthy"
			if overall == "healthy" {
				overall = "degraded"
			}
			if !optional(hc.Name()) {
				code = http.StatusServiceUnavailable
			}
			continue
		}
		deps[hc.Name()] = "healthy"
	}
	return c.JSON(code, map[string]interface{}{
		"status":       overall,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"service":      "gx-session-service",
		"dependencies": deps,
	})
}

func optional(name string) bool {
	return name == "cache"
}
