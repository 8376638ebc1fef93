package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/middleware"
	appErrors "github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/response"
)

// CacheFlusher is satisfied by *cache.Service.
type CacheFlusher interface {
	Flush(ctx context.Context) bool
}

// WindowResetter is satisfied by *ratelimit.Limiter.
type WindowResetter interface {
	Reset(ctx context.Context, key string) bool
}

// AdminHandler exposes operator endpoints for the cache and rate limiter.
type AdminHandler struct {
	cache   CacheFlusher
	limiter WindowResetter
}

// NewAdminHandler constructs an admin handler. Either dependency may be nil.
func NewAdminHandler(cache CacheFlusher, limiter WindowResetter) *AdminHandler {
	return &AdminHandler{cache: cache, limiter: limiter}
}

// FlushCache DELETE /api/admin/cache
func (h *AdminHandler) FlushCache(c *gin.Context) {
	if h.cache == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	flushed := h.cache.Flush(requestContext(c))
	logger.WithModule("admin").Warn("cache flush requested",
		zap.String("user_id", c.GetString(middleware.CtxUserIDKey)),
		zap.Bool("flushed", flushed),
	)
	response.Success(c, http.StatusOK, gin.H{"flushed": flushed})
}

// ResetRateLimit DELETE /api/admin/rate-limits/:key
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	if h.limiter == nil {
		response.Error(c, appErrors.ErrServiceUnavailable)
		return
	}
	key := strings.TrimSpace(strings.TrimPrefix(c.Param("key"), "/"))
	if key == "" {
		response.Error(c, appErrors.NewBadRequest("rate limit key is required"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"key": key, "reset": h.limiter.Reset(requestContext(c), key)})
}
