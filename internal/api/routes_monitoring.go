package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/handlers"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler) {
	if api == nil || handler == nil {
		return
	}
	api.GET("/monitoring/summary", handler.Summary)
}
