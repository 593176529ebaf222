package redis

import (
	"testing"
	"time"

	config "github.com/GX-mob/gx-service-template/configs"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	cfg := &config.RedisConfig{Host: "cache", Port: "6380", DB: 2, PoolSize: 7, DialTimeout: time.Second}

	opts, err := clientOptions(cfg)
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	cfg.URL = "redis://:secret@redis.internal:6379/5"
	opts, err = clientOptions(cfg)
	require.NoError(t, err)
	require.Equal(t, "redis.internal:6379", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 5, opts.DB)
	require.Equal(t, time.Second, opts.DialTimeout)

	cfg.URL = "http://nope"
	_, err = clientOptions(cfg)
	require.Error(t, err)
}
