package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/middleware"
	"github.com/charlesng35/skybook/internal/services"
	appErrors "github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/response"
)

// AirportHandler serves airport autocomplete and per-user recent searches.
type AirportHandler struct {
	autocomplete *services.AutocompleteService
}

// NewAirportHandler constructs an airport handler.
func NewAirportHandler(autocomplete *services.AutocompleteService) (*AirportHandler, error) {
	if autocomplete == nil {
		return nil, errors.New("airport handler: autocomplete service is required")
	}
	return &AirportHandler{autocomplete: autocomplete}, nil
}

// Autocomplete GET /api/airports/autocomplete?q=&limit=
func (h *AirportHandler) Autocomplete(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	airports, err := h.autocomplete.Suggest(requestContext(c), c.Query("q"), limit)
	if err != nil {
		response.Error(c, serviceError(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, airports, &response.Meta{Total: len(airports)})
}

// Recent GET /api/airports/recent
func (h *AirportHandler) Recent(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	recent := h.autocomplete.Recent(requestContext(c), userID)
	response.SuccessWithMeta(c, http.StatusOK, recent, &response.Meta{Total: len(recent)})
}
