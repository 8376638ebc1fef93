package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/middleware"
	"github.com/charlesng35/skybook/internal/services"
	"github.com/charlesng35/skybook/pkg/response"
)

// FlightHandler exposes search, price history and route quote endpoints.
type FlightHandler struct {
	search  *services.FlightSearchService
	history *services.PriceHistoryService
}

// NewFlightHandler constructs a flight handler.
func NewFlightHandler(search *services.FlightSearchService, history *services.PriceHistoryService) (*FlightHandler, error) {
	if search == nil || history == nil {
		return nil, errors.New("flight handler: search and history services are required")
	}
	return &FlightHandler{search: search, history: history}, nil
}

// Search GET /api/flights/search
func (h *FlightHandler) Search(c *gin.Context) {
	var params cache.SearchParams
	if !bindQuery(c, &params) {
		return
	}

	result, err := h.search.Search(requestContext(c), c.GetString(middleware.CtxUserIDKey), params)
	if err != nil {
		response.Error(c, serviceError(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result, &response.Meta{Total: result.Count, Cached: result.Cached})
}

// PriceHistory GET /api/flights/price-history?origin=&destination=&days=
func (h *FlightHandler) PriceHistory(c *gin.Context) {
	days, err := parseIntQuery(c, "days", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	history, err := h.history.History(requestContext(c), c.Query("origin"), c.Query("destination"), days)
	if err != nil {
		response.Error(c, serviceError(err))
		return
	}
	response.Success(c, http.StatusOK, history)
}

// Routes GET /api/flights/routes
func (h *FlightHandler) Routes(c *gin.Context) {
	ctx := requestContext(c)
	routes := h.history.TrackedRoutes(ctx)
	response.SuccessWithMeta(c, http.StatusOK, gin.H{
		"routes": routes,
		"latest": h.history.LatestQuotes(ctx),
	}, &response.Meta{Total: len(routes)})
}

// RecordQuote POST /api/flights/quotes
func (h *FlightHandler) RecordQuote(c *gin.Context) {
	var in services.QuoteInput
	if !bindJSON(c, &in) {
		return
	}

	snapshot, err := h.history.RecordQuote(requestContext(c), in)
	if err != nil {
		response.Error(c, serviceError(err))
		return
	}
	response.Success(c, http.StatusCreated, snapshot)
}
