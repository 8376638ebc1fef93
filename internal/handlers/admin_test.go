package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skybook/internal/app"
	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/handlers/testutil"
)

func TestLogoutRevokesToken(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("user-1", "")

	w := env.Request(http.MethodGet, "/api/airports/recent", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Revoked bool `json:"revoked"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.True(t, payload.Revoked)

	w = env.Request(http.MethodGet, "/api/airports/recent", nil, token)
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodDelete, "/api/admin/cache", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodDelete, "/api/admin/cache", nil, env.Token("user-1", ""))
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestAdminFlushCache(t *testing.T) {
	env := testutil.NewEnv(t)
	seedRoute(env)

	path := "/api/flights/search?origin=JFK&destination=LHR&departure_date=2030-03-10"
	require.Equal(t, http.StatusOK, env.Request(http.MethodGet, path, nil, "").Code)
	require.True(t, testutil.DecodeResponse(t, env.Request(http.MethodGet, path, nil, "")).Meta.Cached)

	w := env.Request(http.MethodDelete, "/api/admin/cache", nil, env.Token("ops", iauth.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Flushed bool `json:"flushed"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.True(t, payload.Flushed)

	require.False(t, testutil.DecodeResponse(t, env.Request(http.MethodGet, path, nil, "")).Meta.Cached)
}

func TestAdminResetRateLimit(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.RateLimit.Autocomplete.Limit = 1
	}))
	user := env.Token("user-9", "")
	path := "/api/airports/autocomplete?q=par"

	require.Equal(t, http.StatusOK, env.Request(http.MethodGet, path, nil, user).Code)
	require.Equal(t, http.StatusTooManyRequests, env.Request(http.MethodGet, path, nil, user).Code)

	w := env.Request(http.MethodDelete, "/api/admin/rate-limits/autocomplete:user:user-9", nil, env.Token("ops", iauth.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Key   string `json:"key"`
		Reset bool   `json:"reset"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, "autocomplete:user:user-9", payload.Key)
	require.True(t, payload.Reset)

	require.Equal(t, http.StatusOK, env.Request(http.MethodGet, path, nil, user).Code)
}
