package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/handlers"
	"github.com/charlesng35/skybook/internal/middleware"
)

func registerAdminRoutes(api *gin.RouterGroup, handler *handlers.AdminHandler, requireAuth gin.HandlerFunc) {
	admin := api.Group("/admin", requireAuth, middleware.RequireRole(iauth.RoleAdmin))
	{
		admin.DELETE("/cache", handler.FlushCache)
		admin.DELETE("/rate-limits/:key", handler.ResetRateLimit)
	}
}
