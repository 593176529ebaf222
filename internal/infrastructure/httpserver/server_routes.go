package httpserver

import (
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1", s.middleware.RateLimit.Handler())
	api.POST("/users", s.registerUser)
	api.POST("/auth/login", s.login)

	protected := api.Group("")
	protected.Use(s.middleware.Auth.RequireSession())

	protected.GET("/users/me", s.getOwnProfile, s.middleware.Groups.RequireGroups(user.DefaultGroup))

	current := protected.Group("/sessions/current")
	current.GET("", s.getCurrentSession)
	current.PATCH("", s.updateCurrentSession)
	current.DELETE("", s.logout)
}
