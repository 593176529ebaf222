package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/helpers"
)

func (s *Server) login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return s.httpError(c, err, "validate request")
	}

	issued, err := s.userService.Authenticate(c.Request().Context(), &req, session.ClientInfo{
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
	})
	if err != nil {
		return s.httpError(c, err, "sign in")
	}
	return c.JSON(http.StatusOK, issued)
}

func (s *Server) getCurrentSession(c echo.Context) error {
	sess, err := helpers.GetSessionFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) updateCurrentSession(c echo.Context) error {
	sess, err := helpers.GetSessionFromContext(c)
	if err != nil {
		return err
	}

	var req session.UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return s.httpError(c, err, "validate request")
	}

	patch := ports.Document{}
	if req.UserAgent != nil {
		patch[session.FieldUserAgent] = *req.UserAgent
	}
	if len(patch) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	ctx := c.Request().Context()
	if err := s.sessionService.Update(ctx, sess.ID, patch); err != nil {
		return s.httpError(c, err, "update session")
	}
	updated, err := s.sessionService.Get(ctx, sess.ID)
	if err != nil {
		return s.httpError(c, err, "get session")
	}
	if updated == nil {
		return s.httpError(c, auth.ErrSessionDeactivated, "get session")
	}
	return c.JSON(http.StatusOK, updated)
}

// logout deactivates the current session
func (s *Server) logout(c echo.Context) error {
	sess, err := helpers.GetSessionFromContext(c)
	if err != nil {
		return err
	}
	if err := s.sessionService.Delete(c.Request().Context(), sess.ID); err != nil {
		return s.httpError(c, err, "sign out")
	}
	return c.NoContent(http.StatusNoContent)
}
