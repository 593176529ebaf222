package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/helpers"
)

func (s *Server) registerUser(c echo.Context) error {
	var req user.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return s.httpError(c, err, "validate request")
	}

	created, err := s.userService.Register(c.Request().Context(), &req)
	if err != nil {
		return s.httpError(c, err, "register user")
	}
	return c.JSON(http.StatusCreated, created.Profile())
}

// getOwnProfile returns the profile of the session owner
func (s *Server) getOwnProfile(c echo.Context) error {
	sess, err := helpers.GetSessionFromContext(c)
	if err != nil {
		return err
	}
	u, err := s.userService.Get(c.Request().Context(), sess.UserID)
	if err != nil {
		return s.httpError(c, err, "get user")
	}
	return c.JSON(http.StatusOK, u.Profile())
}
