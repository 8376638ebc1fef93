package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SKYBOOK_CACHE_REDIS_ADDRESS.
const EnvPrefix = "SKYBOOK"

// Config represents the runtime configuration for the SkyBook API.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver             string            `mapstructure:"driver"`
	Path               string            `mapstructure:"path"`
	DSN                string            `mapstructure:"dsn"`
	Host               string            `mapstructure:"host"`
	Port               int               `mapstructure:"port"`
	Name               string            `mapstructure:"name"`
	Username           string            `mapstructure:"username"`
	Password           string            `mapstructure:"password"`
	Options            map[string]string `mapstructure:"options"`
	MaxOpenConns       int               `mapstructure:"max_open_conns"`
	MaxIdleConns       int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration     `mapstructure:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration     `mapstructure:"slow_query_threshold"`
}

// CacheConfig describes the key-value store and the cache TTL policy.
type CacheConfig struct {
	DefaultTTL        time.Duration    `mapstructure:"default_ttl"`
	SearchTTL         time.Duration    `mapstructure:"search_ttl"`
	PriceHistoryTTL   time.Duration    `mapstructure:"price_history_ttl"`
	AutocompleteTTL   time.Duration    `mapstructure:"autocomplete_ttl"`
	TokenBlacklistTTL time.Duration    `mapstructure:"token_blacklist_ttl"`
	Redis             RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options. When disabled the process
// keeps its cache and rate-limit windows in memory.
type RedisCacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	TLS         bool          `mapstructure:"tls"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
}

// RateLimitConfig configures the sliding-window limiter and its route policies.
type RateLimitConfig struct {
	Enabled          bool         `mapstructure:"enabled"`
	Prefix           string       `mapstructure:"prefix"`
	TimestampMembers bool         `mapstructure:"timestamp_members"`
	Search           PolicyConfig `mapstructure:"search"`
	Autocomplete     PolicyConfig `mapstructure:"autocomplete"`
	Quotes           PolicyConfig `mapstructure:"quotes"`
	API              PolicyConfig `mapstructure:"api"`
}

// PolicyConfig is one limit per window.
type PolicyConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access token validation.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
	// KeySalt, when set, treats Secret as a passphrase and derives the
	// signing key from it with Argon2id.
	KeySalt string `mapstructure:"key_salt"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Namespace  string           `mapstructure:"namespace"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules the retention jobs.
type MaintenanceConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Schedule              string `mapstructure:"schedule"`
	SnapshotRetentionDays int    `mapstructure:"snapshot_retention_days"`
	RunOnShutdown         bool   `mapstructure:"run_on_shutdown"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "20s")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/skybook.sqlite")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.slow_query_threshold", "500ms")

	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.search_ttl", "5m")
	v.SetDefault("cache.price_history_ttl", "1h")
	v.SetDefault("cache.autocomplete_ttl", "1h")
	v.SetDefault("cache.token_blacklist_ttl", "168h")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.dial_timeout", "10s")
	v.SetDefault("cache.redis.max_retries", 3)
	v.SetDefault("cache.redis.pool_size", 0)
	v.SetDefault("cache.redis.key_prefix", "skybook:")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.prefix", "ratelimit:")
	v.SetDefault("rate_limit.timestamp_members", false)
	v.SetDefault("rate_limit.search.limit", 30)
	v.SetDefault("rate_limit.search.window", "1m")
	v.SetDefault("rate_limit.autocomplete.limit", 120)
	v.SetDefault("rate_limit.autocomplete.window", "1m")
	v.SetDefault("rate_limit.quotes.limit", 60)
	v.SetDefault("rate_limit.quotes.window", "1m")
	v.SetDefault("rate_limit.api.limit", 600)
	v.SetDefault("rate_limit.api.window", "1m")

	v.SetDefault("auth.jwt.issuer", "skybook")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("monitoring.namespace", "skybook")
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "5s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@daily")
	v.SetDefault("maintenance.snapshot_retention_days", 180)
	v.SetDefault("maintenance.run_on_shutdown", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
