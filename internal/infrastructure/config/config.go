package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Engine       EngineConfig
	Webhook      WebhookConfig
	TokenRefresh TokenRefreshConfig
	Connectors   ConnectorsConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
}

// RedisConfig holds Redis connection settings. Redis backs webhook dedupe.
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	TrustedProxies    []string
}

// EngineConfig holds job engine settings
type EngineConfig struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	BatchSize       int
	ItemConcurrency int
	PollInterval    time.Duration
	RetryBase       time.Duration
	RetryCap        time.Duration
	StaleItemAfter  time.Duration
	StopTimeout     time.Duration
}

// WebhookConfig holds webhook gateway settings
type WebhookConfig struct {
	MaxPayloadBytes     int64
	TimestampTolerance  time.Duration
	DedupeEnabled       bool
	DedupeWindow        time.Duration
	AllowMemoryFallback bool
}

// TokenRefreshConfig holds scheduled token refresh settings
type TokenRefreshConfig struct {
	Enabled  bool
	Schedule string
	LeadTime time.Duration
	Timeout  time.Duration
}

// PlatformEndpoints holds the API and OAuth endpoints of one platform
type PlatformEndpoints struct {
	BaseURL  string
	TokenURL string
}

// ConnectorsConfig holds platform endpoints and validation rule overrides
type ConnectorsConfig struct {
	RulesFile string
	Taobao    PlatformEndpoints
	Douyin    PlatformEndpoints
	Kuaishou  PlatformEndpoints
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled           bool    // Export spans to an OTLP collector
	CollectorEndpoint string  // OTLP gRPC endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // Plaintext gRPC (development only)
	DBTraceEnabled    bool // Trace gorm queries (otelgorm)
	DBLogFullSQL      bool // Include query variables in spans (dev only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_DATABASE_PASSWORD)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	endpoints := func(prefix string) PlatformEndpoints {
		return PlatformEndpoints{
			BaseURL:  v.GetString(prefix + ".base_url"),
			TokenURL: v.GetString(prefix + ".token_url"),
		}
	}

	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowQuery:       v.GetDuration("database.slow_query"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Engine: EngineConfig{
			Enabled:         !v.IsSet("engine.enabled") || v.GetBool("engine.enabled"),
			Workers:         v.GetInt("engine.workers"),
			QueueSize:       v.GetInt("engine.queue_size"),
			BatchSize:       v.GetInt("engine.batch_size"),
			ItemConcurrency: v.GetInt("engine.item_concurrency"),
			PollInterval:    v.GetDuration("engine.poll_interval"),
			RetryBase:       v.GetDuration("engine.retry_base"),
			RetryCap:        v.GetDuration("engine.retry_cap"),
			StaleItemAfter:  v.GetDuration("engine.stale_item_after"),
			StopTimeout:     v.GetDuration("engine.stop_timeout"),
		},
		Webhook: WebhookConfig{
			MaxPayloadBytes:     v.GetInt64("webhook.max_payload_bytes"),
			TimestampTolerance:  v.GetDuration("webhook.timestamp_tolerance"),
			DedupeEnabled:       !v.IsSet("webhook.dedupe_enabled") || v.GetBool("webhook.dedupe_enabled"),
			DedupeWindow:        v.GetDuration("webhook.dedupe_window"),
			AllowMemoryFallback: !v.IsSet("webhook.allow_memory_fallback") || v.GetBool("webhook.allow_memory_fallback"),
		},
		TokenRefresh: TokenRefreshConfig{
			Enabled:  !v.IsSet("token_refresh.enabled") || v.GetBool("token_refresh.enabled"),
			Schedule: v.GetString("token_refresh.schedule"),
			LeadTime: v.GetDuration("token_refresh.lead_time"),
			Timeout:  v.GetDuration("token_refresh.timeout"),
		},
		Connectors: ConnectorsConfig{
			RulesFile: v.GetString("connectors.rules_file"),
			Taobao:    endpoints("connectors.taobao"),
			Douyin:    endpoints("connectors.douyin"),
			Kuaishou:  endpoints("connectors.kuaishou"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQuery == 0 {
		cfg.Database.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "sync:dedupe:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.QueueSize == 0 {
		cfg.Engine.QueueSize = 100
	}
	if cfg.Engine.BatchSize == 0 {
		cfg.Engine.BatchSize = 10
	}
	if cfg.Engine.ItemConcurrency == 0 {
		cfg.Engine.ItemConcurrency = 5
	}
	if cfg.Engine.PollInterval == 0 {
		cfg.Engine.PollInterval = 2 * time.Second
	}
	if cfg.Engine.RetryBase == 0 {
		cfg.Engine.RetryBase = time.Second
	}
	if cfg.Engine.RetryCap == 0 {
		cfg.Engine.RetryCap = 5 * time.Minute
	}
	if cfg.Engine.StaleItemAfter == 0 {
		cfg.Engine.StaleItemAfter = 10 * time.Minute
	}
	if cfg.Engine.StopTimeout == 0 {
		cfg.Engine.StopTimeout = 30 * time.Second
	}
	if cfg.Webhook.MaxPayloadBytes == 0 {
		cfg.Webhook.MaxPayloadBytes = 64 << 10
	}
	if cfg.Webhook.TimestampTolerance == 0 {
		cfg.Webhook.TimestampTolerance = 5 * time.Minute
	}
	if cfg.Webhook.DedupeWindow == 0 {
		cfg.Webhook.DedupeWindow = 24 * time.Hour
	}
	if cfg.TokenRefresh.Schedule == "" {
		cfg.TokenRefresh.Schedule = "@every 10m"
	}
	if cfg.TokenRefresh.LeadTime == 0 {
		cfg.TokenRefresh.LeadTime = 30 * time.Minute
	}
	if cfg.TokenRefresh.Timeout == 0 {
		cfg.TokenRefresh.Timeout = 2 * time.Minute
	}
	if cfg.Connectors.Taobao.BaseURL == "" {
		cfg.Connectors.Taobao.BaseURL = "https://eco.taobao.com/router/rest"
	}
	if cfg.Connectors.Taobao.TokenURL == "" {
		cfg.Connectors.Taobao.TokenURL = "https://oauth.taobao.com/token"
	}
	if cfg.Connectors.Douyin.BaseURL == "" {
		cfg.Connectors.Douyin.BaseURL = "https://openapi-fxg.jinritemai.com"
	}
	if cfg.Connectors.Douyin.TokenURL == "" {
		cfg.Connectors.Douyin.TokenURL = "https://openapi-fxg.jinritemai.com/token/refresh"
	}
	if cfg.Connectors.Kuaishou.BaseURL == "" {
		cfg.Connectors.Kuaishou.BaseURL = "https://openapi.kwaixiaodian.com"
	}
	if cfg.Connectors.Kuaishou.TokenURL == "" {
		cfg.Connectors.Kuaishou.TokenURL = "https://openapi.kwaixiaodian.com/oauth2/refresh_token"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if c.Engine.ItemConcurrency < 1 {
		return fmt.Errorf("engine.item_concurrency must be at least 1")
	}
	if c.Engine.QueueSize < c.Engine.BatchSize {
		return fmt.Errorf("engine.queue_size (%d) cannot be smaller than engine.batch_size (%d)",
			c.Engine.QueueSize, c.Engine.BatchSize)
	}
	if c.Engine.RetryCap < c.Engine.RetryBase {
		return fmt.Errorf("engine.retry_cap must not be below engine.retry_base")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}
	if c.Webhook.DedupeEnabled && c.Webhook.DedupeWindow <= 0 {
		return fmt.Errorf("webhook.dedupe_window must be positive when dedupe is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Webhook.DedupeEnabled && !c.Redis.Enabled {
			return fmt.Errorf("redis must be enabled in production for cross-instance webhook dedupe")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql cannot be enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
