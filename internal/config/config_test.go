package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Database.ReplicaDSN)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Second, cfg.Health.CheckInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "5s")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("DATABASE_REPLICA_DSN", "postgres://replica")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_CHANNEL", "unlocks")
	t.Setenv("REGISTRY_FILE", "/etc/toolkits.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres://replica", cfg.Database.ReplicaDSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "unlocks", cfg.Redis.Channel)
	assert.Equal(t, "/etc/toolkits.yaml", cfg.Registry.File)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, RequestTimeout: time.Second},
			Database: DatabaseConfig{DSN: "postgres://x", MaxOpenConns: 10, MaxIdleConns: 2},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"no connections", func(c *Config) { c.Database.MaxOpenConns = 0 }},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 11 }},
		{"redis without address", func(c *Config) { c.Redis = RedisConfig{Enabled: true} }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
