package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/middleware"
)

// httpError maps a service error to a response. Backend details are logged,
// never returned.
func (s *Server) httpError(c echo.Context, err error, action string) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, verr.Result)
	case errors.Is(err, user.ErrAlreadyRegistered):
		return echo.NewHTTPError(http.StatusConflict, "user already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionDeactivated):
		return middleware.ErrInvalidSession
	case errors.Is(err, auth.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrNoSigningKey):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sign-in is not available on this instance")
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"path": c.Request().URL.Path}).WithError(err).Error("failed to " + action)
	}
	if errors.Is(err, ports.ErrStoreUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to "+action)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to "+action)
}
