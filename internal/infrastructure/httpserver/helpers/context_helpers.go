package helpers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
)

// GetSessionFromContext returns the session the auth middleware verified.
func GetSessionFromContext(c echo.Context) (*session.Session, error) {
	s, ok := GetSessionRaw(c)
	if !ok || s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid session context")
	}
	return s, nil
}

func GetBearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}
