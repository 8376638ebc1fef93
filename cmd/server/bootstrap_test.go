package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/models"
)

const testConfig = `
database:
  driver: sqlite
  dsn: "file:bootstrap?mode=memory&cache=shared&_foreign_keys=1"
cache:
  redis:
    enabled: true
    address: "127.0.0.1:1"
    dial_timeout: 100ms
    timeout: 100ms
    max_retries: -1
auth:
  jwt:
    secret: bootstrap-test-secret-with-enough-bytes
maintenance:
  enabled: true
  schedule: "@daily"
  run_on_shutdown: true
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfig), 0o600))
	return dir
}

func TestBootstrapRuntimeFallsBackToMemoryStore(t *testing.T) {
	cfg, err := loadApplicationConfig(filepath.Join(writeConfig(t), "config.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Cache.Redis.Enabled)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.False(t, stack.RedisEnabled)
	require.IsType(t, &kvstore.MemoryStore{}, stack.Store)
	require.NotNil(t, stack.Cleaner)

	var airports int64
	require.NoError(t, stack.DB.Model(&models.Airport{}).Count(&airports).Error)
	require.NotZero(t, airports)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "kvstore")

	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/airports/autocomplete?q=ams", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx, zap.NewNop()))
}

func TestBootstrapRuntimeRejectsUnknownDriver(t *testing.T) {
	cfg, err := loadApplicationConfig(writeConfig(t))
	require.NoError(t, err)
	cfg.Database.Driver = "oracle"

	_, err = bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestMaintenanceMaxAge(t *testing.T) {
	require.Equal(t, 49*time.Hour, maintenanceMaxAge("@daily"))
	require.Equal(t, 3*time.Hour, maintenanceMaxAge("@hourly"))
	require.Equal(t, 15*24*time.Hour, maintenanceMaxAge("@weekly"))
	require.Equal(t, 49*time.Hour, maintenanceMaxAge("0 3 * * *"))
}

func TestShutdownNilStack(t *testing.T) {
	var stack *runtimeStack
	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
}
