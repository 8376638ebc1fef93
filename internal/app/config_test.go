package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/database"
	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/middleware"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Server.TrustedProxies)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 6543, cfg.Database.Port)
	require.Equal(t, map[string]string{"sslmode": "require"}, cfg.Database.Options)
	require.Equal(t, 40, cfg.Database.MaxOpenConns)
	require.Equal(t, 5, cfg.Database.MaxIdleConns)

	require.Equal(t, 2*time.Minute, cfg.Cache.SearchTTL)
	require.Equal(t, time.Hour, cfg.Cache.PriceHistoryTTL)
	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, 10*time.Second, cfg.Cache.Redis.DialTimeout)
	require.Equal(t, 5, cfg.Cache.Redis.MaxRetries)
	require.Equal(t, "sb:", cfg.Cache.Redis.KeyPrefix)

	require.True(t, cfg.RateLimit.Enabled)
	require.True(t, cfg.RateLimit.TimestampMembers)
	require.Equal(t, PolicyConfig{Limit: 3, Window: time.Minute}, cfg.RateLimit.Search)
	require.Equal(t, 120, cfg.RateLimit.Autocomplete.Limit)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "skybook-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, 5*time.Second, cfg.Monitoring.Health.Timeout)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 6h", cfg.Maintenance.Schedule)
	require.Equal(t, 90, cfg.Maintenance.SnapshotRetentionDays)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, "skybook:", cfg.Cache.Redis.KeyPrefix)
	require.Equal(t, 168*time.Hour, cfg.Cache.TokenBlacklistTTL)
	require.Equal(t, 180, cfg.Maintenance.SnapshotRetentionDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SKYBOOK_SERVER_PORT", "7070")
	t.Setenv("SKYBOOK_CACHE_REDIS_ADDRESS", "cache:6379")
	t.Setenv("SKYBOOK_RATE_LIMIT_SEARCH_LIMIT", "11")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "cache:6379", cfg.Cache.Redis.Address)
	require.Equal(t, 11, cfg.RateLimit.Search.Limit)
}

func TestCacheConfigAdapters(t *testing.T) {
	cfg := CacheConfig{
		SearchTTL: time.Minute,
		Redis: RedisCacheConfig{
			Address:     " redis:6379 ",
			Username:    " app ",
			Password:    "pw",
			DB:          1,
			Timeout:     2 * time.Second,
			DialTimeout: 4 * time.Second,
			MaxRetries:  2,
			PoolSize:    8,
			KeyPrefix:   "sb:",
		},
	}

	require.Equal(t, kvstore.RedisConfig{
		Address:     "redis:6379",
		Username:    "app",
		Password:    "pw",
		DB:          1,
		Timeout:     2 * time.Second,
		DialTimeout: 4 * time.Second,
		MaxRetries:  2,
		PoolSize:    8,
		KeyPrefix:   "sb:",
	}, cfg.RedisStoreConfig())

	ttls := cfg.TTLs()
	require.Equal(t, time.Minute, ttls.Search)
	require.Equal(t, cache.DefaultTTL, ttls.Default)
	require.Equal(t, cache.PriceHistoryTTL, ttls.PriceHistory)
	require.Equal(t, cache.AutocompleteTTL, ttls.Autocomplete)
	require.Equal(t, cache.TokenBlacklistTTL, ttls.TokenBlacklist)
}

func TestDatabaseConfigAdapter(t *testing.T) {
	cfg := DatabaseConfig{Driver: " MySQL ", Host: "db", Port: 3306, Name: "skybook", Username: "app", Password: "pw"}

	require.Equal(t, database.Config{
		Driver:   "mysql",
		Host:     "db",
		Port:     3306,
		Name:     "skybook",
		User:     "app",
		Password: "pw",
	}, cfg.DatabaseOptions())
}

func TestRateLimitPolicies(t *testing.T) {
	cfg := RateLimitConfig{
		Enabled: true,
		Search:  PolicyConfig{Limit: 3, Window: time.Minute},
	}
	policies := cfg.Policies()
	require.Equal(t, middleware.RatePolicy{Name: "search", Limit: 3, Window: time.Minute}, policies.Search)
	require.Equal(t, "autocomplete", policies.Autocomplete.Name)

	cfg.Enabled = false
	require.Equal(t, RatePolicies{}, cfg.Policies())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "secret", Issuer: "issuer", TTL: 30 * time.Minute}}

	jwtCfg, err := cfg.JWTServiceConfig()
	require.NoError(t, err)
	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, jwtCfg)
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	jwtCfg, err := cfg.JWTServiceConfig()
	require.NoError(t, err)
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
}

func TestAuthConfigDerivesKey(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "shared passphrase", KeySalt: strings.Repeat("k", 16)}}

	first, err := cfg.JWTServiceConfig()
	require.NoError(t, err)
	require.Len(t, first.Secret, 32)
	require.NotEqual(t, "shared passphrase", first.Secret)

	second, err := cfg.JWTServiceConfig()
	require.NoError(t, err)
	require.Equal(t, first.Secret, second.Secret)

	cfg.JWT.KeySalt = "short"
	_, err = cfg.JWTServiceConfig()
	require.Error(t, err)
}
