package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/api"
	"github.com/charlesng35/skybook/internal/app"
	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/cache"
	sharedtestutil "github.com/charlesng35/skybook/internal/database/testutil"
	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/models"
	"github.com/charlesng35/skybook/internal/monitoring"
	"github.com/charlesng35/skybook/internal/monitoring/checks"
	"github.com/charlesng35/skybook/internal/ratelimit"
	"github.com/charlesng35/skybook/internal/services"
	"github.com/charlesng35/skybook/pkg/response"
)

const jwtSecret = "test-suite-super-secret-key-32-bytes!!"

// Env encapsulates a fully-wired API instance backed by an in-memory database
// and an in-memory key-value store.
type Env struct {
	T            *testing.T
	Config       *app.Config
	DB           *gorm.DB
	Store        *kvstore.MemoryStore
	Cache        *cache.Service
	Limiter      *ratelimit.Limiter
	JWT          *iauth.JWTService
	Blacklist    *iauth.TokenBlacklist
	Search       *services.FlightSearchService
	PriceHistory *services.PriceHistoryService
	Autocomplete *services.AutocompleteService
	Monitoring   *monitoring.Module
	Router       *gin.Engine
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithConfig mutates the test configuration.
func WithConfig(fn func(cfg *app.Config)) EnvOption {
	return func(cfg *app.Config) {
		fn(cfg)
	}
}

// DefaultConfig returns the configuration handler tests start from.
func DefaultConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{Port: 0},
		Cache: app.CacheConfig{
			SearchTTL:         5 * time.Minute,
			PriceHistoryTTL:   time.Hour,
			AutocompleteTTL:   time.Hour,
			TokenBlacklistTTL: time.Hour,
		},
		RateLimit: app.RateLimitConfig{
			Enabled:      true,
			Prefix:       "ratelimit",
			Search:       app.PolicyConfig{Limit: 100, Window: time.Minute},
			Autocomplete: app.PolicyConfig{Limit: 100, Window: time.Minute},
			Quotes:       app.PolicyConfig{Limit: 100, Window: time.Minute},
			API:          app.PolicyConfig{Limit: 1000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Monitoring: app.MonitoringConfig{
			Namespace:  "skybook_test",
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
	}
}

// NewEnv provisions a fresh handler test environment with migrations and
// seed airports applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	store := kvstore.NewMemoryStore(kvstore.WithJanitorInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	module, err := monitoring.NewModule(monitoring.Options{
		Namespace:               cfg.Monitoring.Namespace,
		DisableGoCollector:      true,
		DisableProcessCollector: true,
	})
	require.NoError(t, err)
	module.Health().SetTimeout(cfg.Monitoring.Health.Timeout)
	module.Health().RegisterReadiness(checks.Database(db, time.Second))
	module.Health().RegisterReadiness(checks.KVStore(store, false, time.Second))
	previous := monitoring.CurrentModule()
	monitoring.SetModule(module)
	t.Cleanup(func() { monitoring.SetModule(previous) })

	ttls := cfg.Cache.TTLs()
	cacheSvc := cache.New(store, cache.WithDefaultTTL(ttls.Default), cache.WithMetrics(module.Sink()))
	limiter := ratelimit.New(store, ratelimit.WithPrefix(cfg.RateLimit.Prefix), ratelimit.WithMetrics(module.Sink()))

	autocomplete, err := services.NewAutocompleteService(db, cacheSvc, services.WithTTL(ttls.Autocomplete))
	require.NoError(t, err)
	search, err := services.NewFlightSearchService(db, cacheSvc, autocomplete, services.WithTTL(ttls.Search))
	require.NoError(t, err)
	history, err := services.NewPriceHistoryService(db, cacheSvc, services.WithTTL(ttls.PriceHistory))
	require.NoError(t, err)

	jwtCfg, err := cfg.Auth.JWTServiceConfig()
	require.NoError(t, err)
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	require.NoError(t, err)
	blacklist := iauth.NewTokenBlacklist(cacheSvc, ttls.TokenBlacklist)

	router, err := api.NewRouter(api.Dependencies{
		Config:       cfg,
		JWT:          jwtSvc,
		Blacklist:    blacklist,
		Cache:        cacheSvc,
		Limiter:      limiter,
		Search:       search,
		PriceHistory: history,
		Autocomplete: autocomplete,
		Monitoring:   module,
	})
	require.NoError(t, err)

	return &Env{
		T:            t,
		Config:       cfg,
		DB:           db,
		Store:        store,
		Cache:        cacheSvc,
		Limiter:      limiter,
		JWT:          jwtSvc,
		Blacklist:    blacklist,
		Search:       search,
		PriceHistory: history,
		Autocomplete: autocomplete,
		Monitoring:   module,
		Router:       router,
	}
}

// Token issues an access token for userID with the given role.
func (e *Env) Token(userID, role string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: role})
	require.NoError(e.T, err)
	return token
}

// SeedFlight inserts a flight departing at depart with the given block time.
func (e *Env) SeedFlight(number, origin, destination string, depart time.Time, block time.Duration, price float64) models.Flight {
	e.T.Helper()
	flight := models.Flight{
		Number:         number,
		Airline:        number[:2],
		Origin:         origin,
		Destination:    destination,
		DepartureAt:    depart,
		ArrivalAt:      depart.Add(block),
		Cabin:          models.CabinEconomy,
		Price:          price,
		Currency:       "USD",
		SeatsAvailable: 9,
	}
	require.NoError(e.T, e.DB.Create(&flight).Error)
	return flight
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	req.RemoteAddr = "192.0.2.10:4321"

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
