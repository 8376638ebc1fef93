package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/middleware"
	appErrors "github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/response"
)

// TokenRevoker is satisfied by *auth.TokenBlacklist.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string) bool
}

// AuthHandler handles token lifecycle endpoints.
type AuthHandler struct {
	revoker TokenRevoker
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{revoker: revoker}
}

// Logout POST /api/auth/logout
//
// The token stays valid for its remaining lifetime when the blacklist store is
// unavailable; the response reports whether revocation was recorded.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || claims.ID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	revoked := h.revoker != nil && h.revoker.Revoke(requestContext(c), claims.ID)
	response.Success(c, http.StatusOK, gin.H{"revoked": revoked})
}
