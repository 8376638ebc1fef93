package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/handlers"
)

func registerAirportRoutes(api *gin.RouterGroup, handler *handlers.AirportHandler, optionalAuth, requireAuth, throttle gin.HandlerFunc) {
	airports := api.Group("/airports")
	{
		airports.GET("/autocomplete", optionalAuth, throttle, handler.Autocomplete)
		airports.GET("/recent", requireAuth, handler.Recent)
	}
}
