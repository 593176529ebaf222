package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Store      StoreConfig
	Auth       AuthConfig
	Background BackgroundConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

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

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	URL      string // overrides the discrete settings below when set
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

// CacheConfig selects and tunes the key-value backend behind the record cache.
type CacheConfig struct {
	Driver     string // redis or memory
	DefaultTTL time.Duration
	KeyPrefix  string
	// In-process backend sizing
	MemoryMaxCost     int64
	MemoryNumCounters int64
	// Circuit breaker around the backend
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// StoreConfig selects the persistent document store.
type StoreConfig struct {
	Driver            string // postgres or dynamodb
	DynamoRegion      string
	DynamoEndpoint    string
	DynamoTablePrefix string
}

type AuthConfig struct {
	KeyID          string
	PublicKeyPEM   string
	PrivateKeyPEM  string // optional; verification-only deployments leave it empty
	TokenTTL       time.Duration
	VerifyCacheTTL time.Duration
	MaxSessionIPs  int
	BcryptCost     int
}

type BackgroundConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// RateLimitConfig limits API requests per client address. Counters live in
// Redis when the cache driver is redis, in process otherwise.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	BurstMultiplier   float64
	Window            time.Duration
	KeyPrefix         string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"*"}),
			Environment:    getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "gx"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Cache: CacheConfig{
			Driver:              getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL:          getDurationEnv("CACHE_DEFAULT_TTL", 15*time.Minute),
			KeyPrefix:           getEnv("CACHE_KEY_PREFIX", ""),
			MemoryMaxCost:       int64(getIntEnv("CACHE_MEMORY_MAX_COST", 64<<20)),
			MemoryNumCounters:   int64(getIntEnv("CACHE_MEMORY_NUM_COUNTERS", 1e6)),
			BreakerMaxRequests:  uint32(getIntEnv("CACHE_BREAKER_MAX_REQUESTS", 3)),
			BreakerInterval:     getDurationEnv("CACHE_BREAKER_INTERVAL", time.Minute),
			BreakerTimeout:      getDurationEnv("CACHE_BREAKER_TIMEOUT", 15*time.Second),
			BreakerMinRequests:  uint32(getIntEnv("CACHE_BREAKER_MIN_REQUESTS", 10)),
			BreakerFailureRatio: getFloatEnv("CACHE_BREAKER_FAILURE_RATIO", 0.5),
		},
		Store: StoreConfig{
			Driver:            getEnv("STORE_DRIVER", "postgres"),
			DynamoRegion:      getEnv("AWS_REGION", "us-east-1"),
			DynamoEndpoint:    getEnv("DYNAMODB_ENDPOINT", ""),
			DynamoTablePrefix: getEnv("DYNAMODB_TABLE_PREFIX", "gx-"),
		},
		Auth: AuthConfig{
			KeyID:          getEnv("AUTH_KID", "default"),
			PublicKeyPEM:   getPEMEnv(getEnvRequired("AUTH_PUBLIC_KEY")),
			PrivateKeyPEM:  getPEMEnv(getEnv("AUTH_PRIVATE_KEY", "")),
			TokenTTL:       getDurationEnv("TOKEN_TTL", 0),
			VerifyCacheTTL: getDurationEnv("VERIFY_CACHE_TTL", 5*time.Minute),
			MaxSessionIPs:  getIntEnv("SESSION_MAX_IPS", 10),
			BcryptCost:     getIntEnv("BCRYPT_COST", 12),
		},
		Background: BackgroundConfig{
			Workers:     getIntEnv("BACKGROUND_WORKERS", 4),
			QueueSize:   getIntEnv("BACKGROUND_QUEUE_SIZE", 1024),
			TaskTimeout: getDurationEnv("BACKGROUND_TASK_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolEnv("RATE_LIMIT_ENABLED", true),
			RequestsPerWindow: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			BurstMultiplier:   getFloatEnv("RATE_LIMIT_BURST_MULTIPLIER", 1),
			Window:            getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			KeyPrefix:         getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Build database DSN
	cfg.Database.DSN = fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
	}
	switch c.Store.Driver {
	case "postgres", "dynamodb":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	if c.Auth.MaxSessionIPs <= 0 {
		return fmt.Errorf("SESSION_MAX_IPS must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getPEMEnv accepts PEM blocks flattened onto one line with literal \n.
func getPEMEnv(value string) string {
	return strings.ReplaceAll(value, `\n`, "\n")
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
