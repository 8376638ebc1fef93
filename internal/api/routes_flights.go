package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/handlers"
)

type flightRouteDeps struct {
	optionalAuth gin.HandlerFunc
	requireAuth  gin.HandlerFunc
	search       gin.HandlerFunc
	quotes       gin.HandlerFunc
}

func registerFlightRoutes(api *gin.RouterGroup, handler *handlers.FlightHandler, deps flightRouteDeps) {
	flights := api.Group("/flights")
	{
		flights.GET("/search", deps.optionalAuth, deps.search, handler.Search)
		flights.GET("/price-history", handler.PriceHistory)
		flights.GET("/routes", handler.Routes)
		flights.POST("/quotes", deps.requireAuth, deps.quotes, handler.RecordQuote)
	}
}
