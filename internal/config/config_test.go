package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoggerConfig(t *testing.T) {
	config := LoggerConfig{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{"stdout", "stderr"},
	}

	assert.Equal(t, "debug", config.Level)
	assert.Equal(t, "json", config.Format)
	assert.Contains(t, config.OutputPaths, "stdout")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.False(t, cfg.HTTP.FollowRedirects, "a redirect is a response worth recording")
	assert.Equal(t, 10, cfg.HTTP.MaxRedirects)
	assert.False(t, cfg.HTTP.BlockPrivate)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "idorscan", cfg.Telemetry.ServiceName)
	assert.Empty(t, cfg.Redis.Addr, "memory store unless redis is configured")
	assert.Equal(t, 24*time.Hour, cfg.Redis.ResultTTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100000, cfg.Server.MaxRange)
}

func TestRedisConfig(t *testing.T) {
	config := RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		ResultTTL:    time.Hour,
	}

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Hour, config.ResultTTL)
}
