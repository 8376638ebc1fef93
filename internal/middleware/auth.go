package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/response"
)

const (
	CtxClaimsKey  = "authClaims"
	CtxUserIDKey  = "userID"
	CtxTokenIDKey = "tokenID"
)

// RevocationChecker is satisfied by *auth.TokenBlacklist.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) bool
}

// Auth enforces JWT authentication and rejects blacklisted tokens. A nil
// revocation checker skips the blacklist lookup.
func Auth(jwt *iauth.JWTService, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, challenge, err := authenticate(c, jwt, revoked)
		if err != nil {
			if challenge != "" {
				c.Header("WWW-Authenticate", challenge)
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller's claims when a valid bearer token is
// present and otherwise lets the request through anonymously.
func OptionalAuth(jwt *iauth.JWTService, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _, err := authenticate(c, jwt, revoked); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, jwt *iauth.JWTService, revoked RevocationChecker) (*iauth.Claims, string, *errors.AppError) {
	authz := c.GetHeader("Authorization")
	if jwt == nil || len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return nil, "", errors.ErrUnauthorized
	}

	claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
	if err != nil {
		return nil, "Bearer", errors.ErrUnauthorized
	}

	if revoked != nil && revoked.IsRevoked(c.Request.Context(), claims.ID) {
		return nil, `Bearer error="invalid_token"`, errors.ErrTokenRevoked
	}
	return claims, "", nil
}

func setClaims(c *gin.Context, claims *iauth.Claims) {
	c.Set(CtxClaimsKey, claims)
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxTokenIDKey, claims.ID)
}

// RequireRole rejects authenticated callers whose token lacks role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if claims.Role != role {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Auth.
func ClaimsFrom(c *gin.Context) (*iauth.Claims, bool) {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*iauth.Claims)
	return claims, ok && claims != nil
}
