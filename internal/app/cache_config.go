package app

import (
	"strings"
	"time"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/kvstore"
)

// RedisStoreConfig converts the application cache configuration into the kvstore representation.
func (c CacheConfig) RedisStoreConfig() kvstore.RedisConfig {
	return kvstore.RedisConfig{
		Address:     strings.TrimSpace(c.Redis.Address),
		Username:    strings.TrimSpace(c.Redis.Username),
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		TLS:         c.Redis.TLS,
		Timeout:     c.Redis.Timeout,
		DialTimeout: c.Redis.DialTimeout,
		MaxRetries:  c.Redis.MaxRetries,
		PoolSize:    c.Redis.PoolSize,
		KeyPrefix:   c.Redis.KeyPrefix,
	}
}

// TTLPolicy is the resolved lifetime per cached data class.
type TTLPolicy struct {
	Default        time.Duration
	Search         time.Duration
	PriceHistory   time.Duration
	Autocomplete   time.Duration
	TokenBlacklist time.Duration
}

// TTLs resolves the configured lifetimes, falling back to the cache package defaults.
func (c CacheConfig) TTLs() TTLPolicy {
	pick := func(configured, fallback time.Duration) time.Duration {
		if configured > 0 {
			return configured
		}
		return fallback
	}
	return TTLPolicy{
		Default:        pick(c.DefaultTTL, cache.DefaultTTL),
		Search:         pick(c.SearchTTL, cache.SearchTTL),
		PriceHistory:   pick(c.PriceHistoryTTL, cache.PriceHistoryTTL),
		Autocomplete:   pick(c.AutocompleteTTL, cache.AutocompleteTTL),
		TokenBlacklist: pick(c.TokenBlacklistTTL, cache.TokenBlacklistTTL),
	}
}
