package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/helpers"
)

type GroupsMiddleware struct {
	logger *logrus.Logger
}

func NewGroupsMiddleware(logger *logrus.Logger) *GroupsMiddleware {
	return &GroupsMiddleware{logger: logger}
}

// RequireGroups lets the request through when the session holds any of groups.
func (m *GroupsMiddleware) RequireGroups(groups ...int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := helpers.GetSessionFromContext(c)
			if err != nil {
				return err
			}
			if !sess.InAnyGroup(groups...) {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"session_id": sess.ID, "required": groups}).Debug("permission group missing")
				}
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
