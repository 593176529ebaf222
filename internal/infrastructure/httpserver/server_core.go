package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	customMiddleware "github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
}

type ServerDeps struct {
	UserService    ports.UserService
	SessionService ports.SessionService
	HealthCheckers []ports.HealthChecker
	// RateLimiter guards the API routes. Nil disables limiting.
	RateLimiter ports.RateLimiterService
	// Validator defaults to services.NewValidator.
	Validator echo.Validator
	// Registry receives the HTTP metrics and backs /metrics. Defaults to
	// the prometheus default registry.
	Registry *prometheus.Registry
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	userService    ports.UserService
	sessionService ports.SessionService
	metrics        *httpMetrics
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = deps.Validator
	if e.Validator == nil {
		e.Validator = services.NewValidator()
	}

	metrics := newHTTPMetrics(deps.Registry)
	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		userService:    deps.UserService,
		sessionService: deps.SessionService,
		metrics:        metrics,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.SessionService,
			deps.RateLimiter,
			logger,
			metrics.requestsTotal,
			metrics.requestDuration,
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
