package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/pkg/logger"
)

// TokenBlacklist records revoked access tokens by id. Revocations outlive any
// access token, so entries simply expire after the blacklist TTL.
type TokenBlacklist struct {
	cache *cache.Service
	ttl   time.Duration
	log   *zap.Logger
}

// NewTokenBlacklist constructs a blacklist. A non-positive ttl uses
// cache.TokenBlacklistTTL.
func NewTokenBlacklist(c *cache.Service, ttl time.Duration) *TokenBlacklist {
	if ttl <= 0 {
		ttl = cache.TokenBlacklistTTL
	}
	return &TokenBlacklist{cache: c, ttl: ttl, log: logger.WithModule("auth")}
}

type revocation struct {
	RevokedAt time.Time `json:"revoked_at"`
}

// Revoke blacklists the token id. It returns false when the entry could not be
// written.
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string) bool {
	jti = strings.TrimSpace(jti)
	if b == nil || b.cache == nil || jti == "" {
		return false
	}
	ok := b.cache.SetWithTTL(ctx, cache.TokenBlacklistKey(jti), revocation{RevokedAt: time.Now().UTC()}, b.ttl)
	if !ok {
		b.log.Warn("token revocation not persisted", zap.String("jti", jti))
	}
	return ok
}

// IsRevoked reports whether the token id is blacklisted. A store outage
// reports false so that otherwise valid tokens keep working.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) bool {
	jti = strings.TrimSpace(jti)
	if b == nil || b.cache == nil || jti == "" {
		return false
	}
	return b.cache.Exists(ctx, cache.TokenBlacklistKey(jti))
}
