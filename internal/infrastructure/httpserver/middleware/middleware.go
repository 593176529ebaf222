package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Auth      *AuthMiddleware
	Groups    *GroupsMiddleware
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
	RateLimit *RateLimitMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	sessionService ports.SessionService,
	rateLimiter ports.RateLimiterService,
	logger *logrus.Logger,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Auth:      NewAuthMiddleware(sessionService, logger),
		Groups:    NewGroupsMiddleware(logger),
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
		RateLimit: NewRateLimitMiddleware(rateLimiter, logger),
	}
}
