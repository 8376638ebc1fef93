package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/pkg/crypto"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT
// service. With a key salt configured the secret is stretched with Argon2id.
func (c AuthConfig) JWTServiceConfig() (auth.JWTConfig, error) {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	secret := c.JWT.Secret
	if salt := strings.TrimSpace(c.JWT.KeySalt); salt != "" {
		key, err := crypto.DeriveSigningKey(secret, salt, crypto.DefaultKDFParams())
		if err != nil {
			return auth.JWTConfig{}, fmt.Errorf("derive jwt signing key: %w", err)
		}
		secret = string(key)
	}

	return auth.JWTConfig{
		Secret:         secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}, nil
}
