package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	config "github.com/GX-mob/gx-service-template/configs"
	"github.com/GX-mob/gx-service-template/internal/application/services"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/background"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/db"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/health"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/httpserver"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/memory"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/redis"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/repositories"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/tokens"
	"github.com/GX-mob/gx-service-template/migrations"
)

// cacheBackend is the selected key-value backend. redis is nil for the
// in-process driver.
type cacheBackend struct {
	kv    ports.KVBackend
	redis *goredis.Client
	close func()
}

// stores holds the persistent collections and how to release them.
type stores struct {
	users    ports.DocumentStore
	sessions ports.DocumentStore
	checker  ports.HealthChecker
	close    func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting session service...")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cacheMetrics := cache.NewMetrics(registry)

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open document store")
	}
	defer st.close()

	backend, err := openCacheBackend(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open cache backend")
	}
	defer backend.close()

	guarded := cache.NewBreakerBackend(backend.kv, cache.BreakerSettings{
		Name:         "cache-" + cfg.Cache.Driver,
		MaxRequests:  cfg.Cache.BreakerMaxRequests,
		Interval:     cfg.Cache.BreakerInterval,
		Timeout:      cfg.Cache.BreakerTimeout,
		MinRequests:  cfg.Cache.BreakerMinRequests,
		FailureRatio: cfg.Cache.BreakerFailureRatio,
	}, logger, cacheMetrics)

	schemas := cache.NewSchemaRegistry()
	if err := repositories.RegisterSchemas(schemas); err != nil {
		logger.WithError(err).Fatal("Failed to register cache schemas")
	}
	recordCache := cache.NewStore(guarded, schemas,
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithMetrics(cacheMetrics),
		cache.WithLogger(logger),
	)

	userRecords := repositories.NewRecordHandler[user.User](recordCache, st.users, user.Namespace, user.LinkingKeys, logger)
	sessionRecords := repositories.NewRecordHandler[session.Session](recordCache, st.sessions, session.Namespace, nil, logger)

	signer, err := tokens.NewES256SignerFromPEM(cfg.Auth.KeyID, cfg.Auth.PublicKeyPEM, cfg.Auth.PrivateKeyPEM)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load signing keys")
	}
	if !signer.CanSign() {
		logger.Warn("No private key configured: sessions can be verified but not created")
	}

	runner := background.NewRunner(cfg.Background.Workers, cfg.Background.QueueSize, cfg.Background.TaskTimeout, logger)

	sessionService := services.NewSessionService(sessionRecords, userRecords, recordCache, signer, runner, services.SessionConfig{
		TokenTTL:       cfg.Auth.TokenTTL,
		VerifyCacheTTL: cfg.Auth.VerifyCacheTTL,
		MaxIPs:         cfg.Auth.MaxSessionIPs,
	}, logger)

	validator := services.NewValidator()
	userService, err := services.NewUserService(userRecords, sessionService, validator, cfg.Auth.BcryptCost, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize user service")
	}

	var rateLimiter ports.RateLimiterService
	if cfg.RateLimit.Enabled {
		var counters ports.RateLimitRepository = repositories.NewRateLimitMemoryRepository(nil)
		if backend.redis != nil {
			counters = repositories.NewRateLimitRedisRepository(backend.redis, cfg.RateLimit.KeyPrefix)
		}
		rateLimiter = services.NewRateLimiterService(counters, &services.RateLimiterConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			BurstMultiplier:   cfg.RateLimit.BurstMultiplier,
			Window:            cfg.RateLimit.Window,
		}, logger)
	}

	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Environment:    cfg.Server.Environment,
	}
	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		UserService:    userService,
		SessionService: sessionService,
		HealthCheckers: []ports.HealthChecker{st.checker, health.NewCacheHealthChecker(guarded)},
		RateLimiter:    rateLimiter,
		Validator:      validator,
		Registry:       registry,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	// drain queued IP and claims writes before the backends close
	runner.Close()

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func openStores(cfg *config.Config, logger *logrus.Logger) (*stores, error) {
	if cfg.Store.Driver == "dynamodb" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Store.DynamoRegion))
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Store.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Store.DynamoEndpoint)
			}
		})
		users := repositories.NewDynamoDocuments(client, cfg.Store.DynamoTablePrefix, user.Namespace, logger, user.LinkingKeys...)
		sessions := repositories.NewDynamoDocuments(client, cfg.Store.DynamoTablePrefix, session.Namespace, logger)
		logger.WithField("region", cfg.Store.DynamoRegion).Info("Using DynamoDB document store")
		return &stores{
			users:    users,
			sessions: sessions,
			checker:  health.NewDynamoHealthChecker(client, users.Table(), sessions.Table()),
			close:    func() {},
		}, nil
	}

	database, err := db.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(migrations.FS); err != nil {
		_ = database.Close()
		return nil, err
	}
	logger.Info("Connected to database successfully")
	return &stores{
		users:    repositories.NewPostgresDocuments(database, user.Namespace, logger),
		sessions: repositories.NewPostgresDocuments(database, session.Namespace, logger),
		checker:  health.NewDBHealthChecker(database),
		close:    func() { _ = database.Close() },
	}, nil
}

func openCacheBackend(cfg *config.Config, logger *logrus.Logger) (*cacheBackend, error) {
	if cfg.Cache.Driver == "memory" {
		b, err := memory.NewBackend(memory.Config{
			NumCounters: cfg.Cache.MemoryNumCounters,
			MaxCost:     cfg.Cache.MemoryMaxCost,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using in-process cache")
		return &cacheBackend{kv: b, close: b.Close}, nil
	}

	client, err := redis.NewRedisClient(&cfg.Redis)
	if client == nil {
		return nil, err
	}
	if err != nil {
		// the cache is an accelerator; the breaker covers the outage
		logger.WithError(err).Warn("Redis unreachable at startup, serving from the store")
	} else {
		logger.Info("Connected to Redis successfully")
	}
	return &cacheBackend{
		kv:    redis.NewBackend(client, cfg.Cache.KeyPrefix),
		redis: client,
		close: func() { _ = client.Close() },
	}, nil
}
