package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Webhook.DedupeEnabled = true
	applyDefaults(cfg)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "storefront-sync", cfg.App.Name)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 100, cfg.Engine.QueueSize)
	assert.Equal(t, time.Second, cfg.Engine.RetryBase)
	assert.Equal(t, 5*time.Minute, cfg.Engine.RetryCap)
	assert.True(t, cfg.Engine.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Engine.StopTimeout)
	assert.True(t, cfg.Webhook.DedupeEnabled)
	assert.Equal(t, 24*time.Hour, cfg.Webhook.DedupeWindow)
	assert.Equal(t, "@every 10m", cfg.TokenRefresh.Schedule)
	assert.NotEmpty(t, cfg.Connectors.Douyin.BaseURL)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "storefront-sync", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYNC_ENGINE_WORKERS", "9")
	t.Setenv("SYNC_ENGINE_ENABLED", "false")
	t.Setenv("SYNC_WEBHOOK_DEDUPE_WINDOW", "1h")
	t.Setenv("SYNC_ENGINE_STOP_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.Workers)
	assert.False(t, cfg.Engine.Enabled)
	assert.Equal(t, time.Hour, cfg.Webhook.DedupeWindow)
	assert.Equal(t, 45*time.Second, cfg.Engine.StopTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 100 }, "max_idle_conns"},
		{"no workers", func(c *Config) { c.Engine.Workers = -1 }, "engine.workers"},
		{"queue below batch", func(c *Config) { c.Engine.QueueSize = 1 }, "engine.queue_size"},
		{"cap below base", func(c *Config) { c.Engine.RetryCap = time.Millisecond }, "retry_cap"},
		{"sampling above one", func(c *Config) { c.Telemetry.SamplingRatio = 1.5 }, "sampling_ratio"},
		{"production full sql", func(c *Config) {
			c.App.Env = "production"
			c.Database.Password = "secret"
			c.Database.SSLMode = "require"
			c.Redis.Enabled = true
			c.Telemetry.DBLogFullSQL = true
		}, "db_log_full_sql"},
		{"production without redis", func(c *Config) {
			c.App.Env = "production"
			c.Database.Password = "secret"
			c.Database.SSLMode = "require"
		}, "redis must be enabled"},
		{"production wildcard cors", func(c *Config) {
			c.App.Env = "production"
			c.Database.Password = "secret"
			c.Database.SSLMode = "require"
			c.Redis.Enabled = true
			c.HTTP.CORSAllowOrigins = []string{"*"}
		}, "cors_allow_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "sync", Password: "p@ss word", DBName: "storefront", SSLMode: "disable"}
	assert.Equal(t, "postgres://sync:p%40ss%20word@db:5432/storefront?sslmode=disable", d.DSN())
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
