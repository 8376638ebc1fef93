package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/skybook/internal/app"
	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/handlers"
	"github.com/charlesng35/skybook/internal/middleware"
	"github.com/charlesng35/skybook/internal/monitoring"
	"github.com/charlesng35/skybook/internal/ratelimit"
	"github.com/charlesng35/skybook/internal/services"
)

// Dependencies are the long-lived components the HTTP surface is built from.
type Dependencies struct {
	Config       *app.Config
	JWT          *iauth.JWTService
	Blacklist    *iauth.TokenBlacklist
	Cache        *cache.Service
	Limiter      *ratelimit.Limiter
	Search       *services.FlightSearchService
	PriceHistory *services.PriceHistoryService
	Autocomplete *services.AutocompleteService
	Monitoring   *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	flightHandler, err := handlers.NewFlightHandler(deps.Search, deps.PriceHistory)
	if err != nil {
		return nil, err
	}
	airportHandler, err := handlers.NewAirportHandler(deps.Autocomplete)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies(deps.Config.Server.TrustedProxies)); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, deps.Config, deps.Monitoring)
	registerMetricsRoute(r, deps.Config, deps.Monitoring)

	// A nil *TokenBlacklist must not become a non-nil interface.
	var revoked middleware.RevocationChecker
	if deps.Blacklist != nil {
		revoked = deps.Blacklist
	}
	policies := deps.Config.RateLimit.Policies()
	var limiter middleware.Checker
	if deps.Limiter != nil {
		limiter = deps.Limiter
	}

	requireAuth := middleware.Auth(deps.JWT, revoked)
	optionalAuth := middleware.OptionalAuth(deps.JWT, revoked)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(limiter, policies.API))

	registerFlightRoutes(api, flightHandler, flightRouteDeps{
		optionalAuth: optionalAuth,
		requireAuth:  requireAuth,
		search:       middleware.RateLimit(limiter, policies.Search),
		quotes:       middleware.RateLimit(limiter, policies.Quotes),
	})
	registerAirportRoutes(api, airportHandler, optionalAuth, requireAuth, middleware.RateLimit(limiter, policies.Autocomplete))
	registerAuthRoutes(api, handlers.NewAuthHandler(revocationStore(deps.Blacklist)), requireAuth)
	registerAdminRoutes(api, handlers.NewAdminHandler(cacheFlusher(deps.Cache), windowResetter(deps.Limiter)), requireAuth)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, deps.Config))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func trustedProxies(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	if mon != nil {
		r.GET(endpoint, gin.WrapH(mon.Handler()))
		return
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}

func revocationStore(b *iauth.TokenBlacklist) handlers.TokenRevoker {
	if b == nil {
		return nil
	}
	return b
}

func cacheFlusher(c *cache.Service) handlers.CacheFlusher {
	if c == nil {
		return nil
	}
	return c
}

func windowResetter(l *ratelimit.Limiter) handlers.WindowResetter {
	if l == nil {
		return nil
	}
	return l
}
