// Package app assembles the resolver and its collaborators from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mcp-food-resolver/internal/cache"
	"mcp-food-resolver/internal/config"
	"mcp-food-resolver/internal/providers"
	"mcp-food-resolver/internal/quality"
	"mcp-food-resolver/internal/ratelimit"
	"mcp-food-resolver/internal/resolver"
	"mcp-food-resolver/internal/storage"
	"mcp-food-resolver/internal/telemetry"
)

// App owns every long-lived resource behind a Resolver.
type App struct {
	Resolver *resolver.Resolver
	Cache    *cache.ResultCache

	telemetry *telemetry.Provider
	closers   []func() error
	logger    *slog.Logger
}

func New(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger.With("component", "app")}

	tp, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    cfg.Metrics.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Metrics.OTLPEndpoint,
		Insecure:       cfg.Metrics.Insecure,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.telemetry = tp

	store, err := openStore(ctx, cfg.Cache)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Cache = cache.New(ctx, store, cache.Options{
		Validity:     cfg.Cache.Validity,
		WriteTimeout: cfg.Cache.WriteTimeout,
		Logger:       logger,
	})

	limiter, err := newLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if c, ok := limiter.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	provs, timeouts := buildProviders(cfg.Providers, version)
	r, err := resolver.New(resolver.Options{
		Providers:       provs,
		Cache:           a.Cache,
		Limiter:         limiter,
		Scorer:          quality.DefaultScorer(),
		TrustThreshold:  cfg.Quality.TrustThreshold,
		ProviderTimeout: cfg.Resolver.ProviderTimeout,
		Timeouts:        timeouts,
		WarmDelay:       cfg.Resolver.WarmDelay,
		Logger:          logger,
		Meter:           tp.Meter(),
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	a.Resolver = r

	names := make([]string, 0, len(provs))
	for _, d := range r.Sources() {
		names = append(names, d.Name)
	}
	a.logger.InfoContext(ctx, "resolver ready",
		"sources", names,
		"cache_backend", cfg.Cache.Backend,
		"ratelimit", string(cfg.RateLimit.Strategy))
	return a, nil
}

// Close drains pending cache writes and releases the store, limiter and
// metrics exporter.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.CacheConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres cache: %w", err)
		}
		return s, nil
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (ratelimit.Limiter, error) {
	switch cfg.Strategy {
	case ratelimit.StrategyFixed, "":
		return ratelimit.NewFixedWindow(nil), nil
	case ratelimit.StrategyToken:
		return ratelimit.NewTokenBucket(nil), nil
	case ratelimit.StrategyRedis:
		l := ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err := l.Ping(ctx); err != nil {
			// Redis errors deny calls at runtime; a bad address at start is
			// reported but not fatal.
			logger.WarnContext(ctx, "redis rate limiter unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown rate limit strategy %q", cfg.Strategy)
}

// buildProviders returns the enabled adapters and any per-source timeout
// overrides. The local fallback is always last in rank.
func buildProviders(cfg config.ProvidersConfig, version string) ([]providers.Provider, map[string]time.Duration) {
	var out []providers.Provider
	timeouts := make(map[string]time.Duration)
	ua := fmt.Sprintf("mcp-food-resolver/%s", version)

	add := func(pc config.ProviderConfig, build func(providers.Config) providers.Provider) {
		if !pc.IsEnabled() {
			return
		}
		p := build(providers.Config{
			BaseURL:   pc.BaseURL,
			APIKey:    pc.APIKey,
			AppID:     pc.AppID,
			UserAgent: ua,
			RateLimit: pc.RateLimit,
			Client:    &http.Client{Timeout: 30 * time.Second},
		})
		if pc.Timeout > 0 {
			timeouts[p.Descriptor().Name] = pc.Timeout
		}
		out = append(out, p)
	}

	add(cfg.OpenFoodFacts, func(c providers.Config) providers.Provider { return providers.NewOpenFoodFacts(c) })
	add(cfg.USDA, func(c providers.Config) providers.Provider { return providers.NewUSDA(c) })
	add(cfg.Nutritionix, func(c providers.Config) providers.Provider { return providers.NewNutritionix(c) })
	add(cfg.UPCItemDB, func(c providers.Config) providers.Provider { return providers.NewUPCItemDB(c) })
	add(cfg.Local, func(providers.Config) providers.Provider { return providers.NewLocal() })
	return out, timeouts
}
