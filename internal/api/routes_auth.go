package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, requireAuth gin.HandlerFunc) {
	api.POST("/auth/logout", requireAuth, handler.Logout)
}
