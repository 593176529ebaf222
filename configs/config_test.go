package configs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	config "github.com/GX-mob/gx-service-template/configs"
)

const flatPEM = `-----BEGIN PUBLIC KEY-----\nMFkw\n-----END PUBLIC KEY-----`

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY", flatPEM)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "redis", cfg.Cache.Driver)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.VerifyCacheTTL)
	require.Equal(t, 10, cfg.Auth.MaxSessionIPs)
	require.Zero(t, cfg.Auth.TokenTTL)
	require.Empty(t, cfg.Auth.PrivateKeyPEM)
	require.Contains(t, cfg.Database.DSN, "dbname=gx")
	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 100, cfg.RateLimit.RequestsPerWindow)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "ratelimit", cfg.RateLimit.KeyPrefix)
}

func TestLoad_UnescapesPEM(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY", flatPEM)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "-----BEGIN PUBLIC KEY-----\nMFkw\n-----END PUBLIC KEY-----", cfg.Auth.PublicKeyPEM)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY", flatPEM)
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("STORE_DRIVER", "dynamodb")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CACHE_BREAKER_FAILURE_RATIO", "0.25")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_REQUESTS", "0")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Cache.Driver)
	require.Equal(t, "dynamodb", cfg.Store.Driver)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	require.InDelta(t, 0.25, cfg.Cache.BreakerFailureRatio, 1e-9)
	require.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string][2]string{
		"cache driver":      {"CACHE_DRIVER", "memcached"},
		"store driver":      {"STORE_DRIVER", "mongo"},
		"ip window":         {"SESSION_MAX_IPS", "-1"},
		"default ttl":       {"CACHE_DEFAULT_TTL", "-5m"},
		"rate limit":        {"RATE_LIMIT_REQUESTS", "-1"},
		"rate limit window": {"RATE_LIMIT_WINDOW", "0s"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("AUTH_PUBLIC_KEY", flatPEM)
			t.Setenv(env[0], env[1])

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_RequiresPublicKey(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY", "")
	require.Panics(t, func() { _, _ = config.Load() })
}
