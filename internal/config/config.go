// Package config loads the resolver's settings from an optional YAML file
// and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mcp-food-resolver/internal/cache"
	"mcp-food-resolver/internal/models"
	"mcp-food-resolver/internal/quality"
	"mcp-food-resolver/internal/ratelimit"
	"mcp-food-resolver/internal/resolver"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Transport  string `yaml:"transport"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	Cache     CacheConfig     `yaml:"cache"`
	Quality   QualityConfig   `yaml:"quality"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Providers ProvidersConfig `yaml:"providers"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	DBPath       string        `yaml:"db_path"`
	DatabaseURL  string        `yaml:"database_url"`
	Validity     time.Duration `yaml:"validity"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type QualityConfig struct {
	TrustThreshold float64 `yaml:"trust_threshold"`
}

type ResolverConfig struct {
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	WarmDelay       time.Duration `yaml:"warm_delay"`
}

type RateLimitConfig struct {
	Strategy      ratelimit.Strategy `yaml:"strategy"`
	RedisAddr     string             `yaml:"redis_addr"`
	RedisPassword string             `yaml:"redis_password"`
	RedisDB       int                `yaml:"redis_db"`
}

type ProvidersConfig struct {
	OpenFoodFacts ProviderConfig `yaml:"openfoodfacts"`
	USDA          ProviderConfig `yaml:"usda"`
	Nutritionix   ProviderConfig `yaml:"nutritionix"`
	UPCItemDB     ProviderConfig `yaml:"upcitemdb"`
	Local         ProviderConfig `yaml:"local"`
}

// ProviderConfig overrides one adapter's defaults. Enabled defaults to true.
type ProviderConfig struct {
	Enabled   *bool             `yaml:"enabled"`
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	AppID     string            `yaml:"app_id"`
	RateLimit *models.RateLimit `yaml:"rate_limit"`
	Timeout   time.Duration     `yaml:"timeout"`
}

func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type MetricsConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

func Default() Config {
	return Config{
		ListenAddr: "0.0.0.0:8011",
		Transport:  "http",
		LogLevel:   "info",
		LogFormat:  "text",
		Cache: CacheConfig{
			Backend:      BackendSQLite,
			DBPath:       "/data/food-cache.db",
			Validity:     cache.DefaultValidity,
			WriteTimeout: cache.DefaultWriteTimeout,
		},
		Quality: QualityConfig{TrustThreshold: quality.DefaultTrustThreshold},
		Resolver: ResolverConfig{
			ProviderTimeout: resolver.DefaultProviderTimeout,
			WarmDelay:       resolver.DefaultWarmDelay,
		},
		RateLimit: RateLimitConfig{Strategy: ratelimit.StrategyFixed},
		Metrics:   MetricsConfig{ServiceName: "mcp-food-resolver"},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $FOOD_RESOLVER_CONFIG when path is empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FOOD_RESOLVER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getenv("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("LOG_FORMAT", c.LogFormat)

	c.Cache.Backend = getenv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.DBPath = getenv("CACHE_DB_PATH", c.Cache.DBPath)
	c.Cache.DatabaseURL = getenv("DATABASE_URL", c.Cache.DatabaseURL)
	c.RateLimit.Strategy = ratelimit.Strategy(getenv("RATELIMIT_STRATEGY", string(c.RateLimit.Strategy)))
	c.RateLimit.RedisAddr = getenv("REDIS_ADDR", c.RateLimit.RedisAddr)
	c.RateLimit.RedisPassword = getenv("REDIS_PASSWORD", c.RateLimit.RedisPassword)
	c.Providers.USDA.APIKey = getenv("USDA_API_KEY", c.Providers.USDA.APIKey)
	c.Providers.Nutritionix.AppID = getenv("NUTRITIONIX_APP_ID", c.Providers.Nutritionix.AppID)
	c.Providers.Nutritionix.APIKey = getenv("NUTRITIONIX_API_KEY", c.Providers.Nutritionix.APIKey)
	c.Providers.UPCItemDB.APIKey = getenv("UPCITEMDB_API_KEY", c.Providers.UPCItemDB.APIKey)
	c.Metrics.OTLPEndpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Metrics.OTLPEndpoint)

	var err error
	if c.Cache.Validity, err = getenvDuration("CACHE_VALIDITY", c.Cache.Validity); err != nil {
		return err
	}
	if c.Resolver.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", c.Resolver.ProviderTimeout); err != nil {
		return err
	}
	if c.Quality.TrustThreshold, err = getenvFloat("TRUST_THRESHOLD", c.Quality.TrustThreshold); err != nil {
		return err
	}
	if c.RateLimit.RedisDB, err = getenvInt("REDIS_DB", c.RateLimit.RedisDB); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the resolver cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.Transport != "http" {
		errs = append(errs, fmt.Errorf("unsupported transport %q", c.Transport))
	}
	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.DBPath == "" {
			errs = append(errs, errors.New("cache.db_path is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, errors.New("cache.database_url is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Validity <= 0 {
		errs = append(errs, errors.New("cache.validity must be positive"))
	}
	if c.Cache.WriteTimeout <= 0 {
		errs = append(errs, errors.New("cache.write_timeout must be positive"))
	}
	if t := c.Quality.TrustThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("quality.trust_threshold %v outside [0,1]", c.Quality.TrustThreshold))
	}
	if c.Resolver.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("resolver.provider_timeout must be positive"))
	}
	if c.Resolver.WarmDelay < 0 {
		errs = append(errs, errors.New("resolver.warm_delay must not be negative"))
	}
	switch c.RateLimit.Strategy {
	case ratelimit.StrategyFixed, ratelimit.StrategyToken:
	case ratelimit.StrategyRedis:
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("ratelimit.redis_addr is required for the redis strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy))
	}
	for name, p := range c.Providers.byName() {
		if p.RateLimit != nil && (p.RateLimit.Window <= 0 || p.RateLimit.MaxCalls < 0) {
			errs = append(errs, fmt.Errorf("providers.%s.rate_limit needs a positive window and a non-negative max_calls", name))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative", name))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (p ProvidersConfig) byName() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"openfoodfacts": p.OpenFoodFacts,
		"usda":          p.USDA,
		"nutritionix":   p.Nutritionix,
		"upcitemdb":     p.UPCItemDB,
		"local":         p.Local,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
