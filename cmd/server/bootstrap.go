package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/skybook/internal/api"
	"github.com/charlesng35/skybook/internal/app"
	"github.com/charlesng35/skybook/internal/app/maintenance"
	iauth "github.com/charlesng35/skybook/internal/auth"
	"github.com/charlesng35/skybook/internal/cache"
	"github.com/charlesng35/skybook/internal/database"
	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/monitoring"
	"github.com/charlesng35/skybook/internal/monitoring/checks"
	"github.com/charlesng35/skybook/internal/ratelimit"
	"github.com/charlesng35/skybook/internal/services"
	"github.com/charlesng35/skybook/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Config        *app.Config
	DB            *gorm.DB
	Store         kvstore.Store
	RedisEnabled  bool
	Monitoring    *monitoring.Module
	Cleaner       *maintenance.Cleaner
	Router        *gin.Engine
	runOnShutdown bool
}

// bootstrapRuntime initialises the database, key-value store, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{Config: cfg, runOnShutdown: cfg.Maintenance.RunOnShutdown}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{
		Namespace: cfg.Monitoring.Namespace,
		Logger:    logger.WithModule("monitoring"),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, stack.RedisEnabled = openStore(ctx, cfg, log)
	sink := stack.Monitoring.Sink()

	ttls := cfg.Cache.TTLs()
	cacheSvc := cache.New(stack.Store,
		cache.WithDefaultTTL(ttls.Default),
		cache.WithMetrics(sink),
	)

	limiterOpts := []ratelimit.Option{ratelimit.WithPrefix(cfg.RateLimit.Prefix), ratelimit.WithMetrics(sink)}
	if cfg.RateLimit.TimestampMembers {
		limiterOpts = append(limiterOpts, ratelimit.WithTimestampMembers())
	}
	limiter := ratelimit.New(stack.Store, limiterOpts...)

	autocomplete, err := services.NewAutocompleteService(stack.DB, cacheSvc, services.WithTTL(ttls.Autocomplete))
	if err != nil {
		return nil, fmt.Errorf("initialise autocomplete service: %w", err)
	}
	search, err := services.NewFlightSearchService(stack.DB, cacheSvc, autocomplete, services.WithTTL(ttls.Search))
	if err != nil {
		return nil, fmt.Errorf("initialise flight search service: %w", err)
	}
	history, err := services.NewPriceHistoryService(stack.DB, cacheSvc, services.WithTTL(ttls.PriceHistory))
	if err != nil {
		return nil, fmt.Errorf("initialise price history service: %w", err)
	}

	jwtCfg, err := cfg.Auth.JWTServiceConfig()
	if err != nil {
		return nil, err
	}
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	blacklist := iauth.NewTokenBlacklist(cacheSvc, ttls.TokenBlacklist)

	registerHealthChecks(stack, cfg)

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(history,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithRetentionDays(cfg.Maintenance.SnapshotRetentionDays),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:       cfg,
		JWT:          jwtSvc,
		Blacklist:    blacklist,
		Cache:        cacheSvc,
		Limiter:      limiter,
		Search:       search,
		PriceHistory: history,
		Autocomplete: autocomplete,
		Monitoring:   stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// openStore connects to redis when enabled and falls back to the in-process
// store when it is disabled or unreachable. The boolean reports whether redis
// is in use.
func openStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (kvstore.Store, bool) {
	if cfg.Cache.Redis.Enabled {
		store, err := kvstore.NewRedisStore(ctx, cfg.Cache.RedisStoreConfig())
		if err == nil {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return store, true
		}
		log.Warn("redis unavailable; falling back to in-memory store", zap.Error(err))
	}
	return kvstore.NewMemoryStore(), false
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	health := stack.Monitoring.Health()
	timeout := cfg.Monitoring.Health.Timeout
	health.SetTimeout(timeout)

	health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(stack.DB, timeout))
	health.RegisterReadiness(checks.KVStore(stack.Store, stack.RedisEnabled, timeout))
	if cfg.Maintenance.Enabled {
		health.RegisterReadiness(checks.Maintenance(maintenanceMaxAge(cfg.Maintenance.Schedule)))
	}
}

// maintenanceMaxAge allows two missed runs of the daily job before readiness degrades.
func maintenanceMaxAge(schedule string) time.Duration {
	switch strings.TrimSpace(schedule) {
	case "@hourly":
		return 3 * time.Hour
	case "@weekly":
		return 15 * 24 * time.Hour
	default:
		return 49 * time.Hour
	}
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if s.runOnShutdown {
			if err := s.Cleaner.RunOnce(ctx); err != nil {
				log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
				errs = multierr.Append(errs, err)
			}
		}
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			log.Warn("kvstore shutdown", zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("close kvstore: %w", err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOptions()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}
