package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/helpers"
)

// ErrInvalidSession is the only answer a client gets for a token that does
// not lead to an active session.
var ErrInvalidSession = echo.NewHTTPError(http.StatusUnauthorized, "invalid session")

type AuthMiddleware struct {
	sessions ports.SessionService
	logger   *logrus.Logger
}

func NewAuthMiddleware(sessions ports.SessionService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, logger: logger}
}

// RequireSession verifies the bearer token against the caller's address and
// puts the active session in the context.
func (m *AuthMiddleware) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := helpers.GetBearerToken(c)
			if err != nil {
				return err
			}

			sess, err := m.sessions.Verify(c.Request().Context(), token, c.RealIP())
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrSessionDeactivated) {
					if m.logger != nil {
						m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path}).WithError(err).Debug("session rejected")
					}
					return ErrInvalidSession
				}
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"path": c.Request().URL.Path}).WithError(err).Error("failed to verify session")
				}
				if errors.Is(err, ports.ErrStoreUnavailable) {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to verify session")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to verify session")
			}

			helpers.SetSession(c, sess)
			helpers.SetToken(c, token)
			return next(c)
		}
	}
}
