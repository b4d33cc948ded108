// Package resolver turns a raw barcode or product name into a single
// ResolutionResult by consulting the cache and then each provider in
// priority order until one produces an acceptable record.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"mcp-food-resolver/internal/cache"
	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/models"
	"mcp-food-resolver/internal/providers"
	"mcp-food-resolver/internal/quality"
	"mcp-food-resolver/internal/ratelimit"
)

const (
	DefaultProviderTimeout = 8 * time.Second
	DefaultWarmDelay       = 250 * time.Millisecond
)

var (
	ErrExhausted = errors.New("unable to resolve from any source")
	ErrCanceled  = errors.New("resolution canceled")
	ErrNoSources = errors.New("no providers configured")
)

type Options struct {
	// Providers are tried in ascending PriorityRank; ties keep the given order.
	Providers []providers.Provider
	Cache     *cache.ResultCache
	Limiter   ratelimit.Limiter
	Scorer    *quality.Scorer

	TrustThreshold  float64
	ProviderTimeout time.Duration
	// Timeouts overrides ProviderTimeout per source name.
	Timeouts  map[string]time.Duration
	WarmDelay time.Duration

	Logger *slog.Logger
	Meter  metric.Meter
}

type source struct {
	provider providers.Provider
	desc     models.SourceDescriptor
	timeout  time.Duration
}

// Resolver is safe for concurrent use. It holds no lock while a provider is
// being called; shared state lives in the cache and the limiter.
type Resolver struct {
	sources   []source
	cache     *cache.ResultCache
	limiter   ratelimit.Limiter
	scorer    *quality.Scorer
	gate      quality.Gate
	slack     time.Duration
	warmDelay time.Duration
	logger    *slog.Logger
	metrics   *metrics
}

func New(opts Options) (*Resolver, error) {
	if len(opts.Providers) == 0 {
		return nil, ErrNoSources
	}
	if opts.TrustThreshold == 0 {
		opts.TrustThreshold = quality.DefaultTrustThreshold
	}
	if t := opts.TrustThreshold; math.IsNaN(t) || t < 0 || t > 1 {
		return nil, fmt.Errorf("trust threshold %v outside [0,1]", opts.TrustThreshold)
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.WarmDelay < 0 {
		opts.WarmDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(context.Background(), nil, cache.Options{Logger: opts.Logger})
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewFixedWindow(nil)
	}
	if opts.Scorer == nil {
		opts.Scorer = quality.DefaultScorer()
	}

	m, err := newMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	sources := make([]source, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		d := p.Descriptor()
		timeout := opts.ProviderTimeout
		if t, ok := opts.Timeouts[d.Name]; ok && t > 0 {
			timeout = t
		}
		sources = append(sources, source{provider: p, desc: d, timeout: timeout})
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].desc.PriorityRank < sources[j].desc.PriorityRank
	})

	return &Resolver{
		sources:   sources,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		scorer:    opts.Scorer,
		gate:      quality.Gate{Threshold: opts.TrustThreshold},
		slack:     opts.ProviderTimeout,
		warmDelay: opts.WarmDelay,
		logger:    opts.Logger.With("component", "resolver"),
		metrics:   m,
	}, nil
}

// Resolve never fails outright: problems are reported through the result's
// ErrorMessage.
func (r *Resolver) Resolve(ctx context.Context, raw string) models.ResolutionResult {
	result, _ := r.ResolveDetailed(ctx, raw)
	return result
}

// ResolveDetailed is Resolve plus the classified error behind a failed
// result: a *identifier.ValidationError, ErrCanceled or ErrExhausted.
func (r *Resolver) ResolveDetailed(ctx context.Context, raw string) (models.ResolutionResult, error) {
	logger := r.logger.With("request_id", uuid.NewString())

	id, err := identifier.Validate(raw)
	if err != nil {
		logger.InfoContext(ctx, "rejected identifier", "error", err)
		r.metrics.resolution(ctx, outcomeInvalid)
		return models.Failed(err.Error()), err
	}
	logger = logger.With("key", id.Key, "kind", string(id.Kind))

	if entry, ok := r.cache.Get(id.Key); ok {
		logger.DebugContext(ctx, "cache hit", "source", entry.Result.SourceName)
		r.metrics.resolution(ctx, outcomeCacheHit)
		return entry.Result, nil
	}

	for _, src := range r.sources {
		if ctx.Err() != nil {
			return r.canceled(ctx, logger)
		}
		name := src.desc.Name

		if !providers.Supports(src.provider, id) {
			logger.DebugContext(ctx, "source does not support identifier", "source", name)
			continue
		}
		if !r.limiter.TryAcquire(ctx, name, src.desc.AccessPolicy.RateLimit) {
			logger.DebugContext(ctx, "source rate limited", "source", name)
			r.metrics.attempt(ctx, name, attemptRateLimited)
			continue
		}

		start := time.Now()
		result, err := r.call(ctx, src, id)
		if err != nil {
			if ctx.Err() != nil {
				return r.canceled(ctx, logger)
			}
			logger.InfoContext(ctx, "source failed",
				"source", name,
				"kind", providers.Kind(err),
				"error", err,
				"elapsed", time.Since(start))
			r.metrics.attempt(ctx, name, attemptError)
			continue
		}

		result = r.annotate(result, src.desc)
		switch {
		case r.gate.Passes(result):
			r.metrics.attempt(ctx, name, attemptSuccess)
			r.metrics.resolution(ctx, outcomeAccepted)
		case src.desc.Fallback:
			logger.InfoContext(ctx, "accepting fallback below quality gate",
				"source", name, "trust", *result.TrustScore, "incomplete", result.Incomplete)
			r.metrics.attempt(ctx, name, attemptSuccess)
			r.metrics.resolution(ctx, outcomeFallback)
		default:
			logger.InfoContext(ctx, "source below quality gate",
				"source", name, "trust", *result.TrustScore, "incomplete", result.Incomplete)
			r.metrics.attempt(ctx, name, attemptRejected)
			continue
		}

		r.cache.Put(id.Key, result)
		logger.InfoContext(ctx, "resolved", "source", name, "trust", *result.TrustScore)
		return result, nil
	}

	if ctx.Err() != nil {
		return r.canceled(ctx, logger)
	}
	logger.WarnContext(ctx, "no source produced an acceptable result")
	r.metrics.resolution(ctx, outcomeExhausted)
	return models.Failed(ErrExhausted.Error()), ErrExhausted
}

func (r *Resolver) canceled(ctx context.Context, logger *slog.Logger) (models.ResolutionResult, error) {
	err := fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	logger.InfoContext(ctx, "resolution aborted", "error", ctx.Err())
	r.metrics.resolution(ctx, outcomeCanceled)
	return models.Failed(err.Error()), err
}

type callResult struct {
	result models.ResolutionResult
	err    error
}

// call runs one provider under its own deadline. The provider runs in its own
// goroutine so that an adapter ignoring ctx cannot hold up the chain, and a
// panic inside it becomes an ordinary failure.
func (r *Resolver) call(ctx context.Context, src source, id identifier.Identifier) (models.ResolutionResult, error) {
	cctx, cancel := context.WithTimeout(ctx, src.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callResult{err: &providers.Error{Source: src.desc.Name, Err: fmt.Errorf("adapter panicked: %v", p)}}
			}
		}()
		res, err := src.provider.Resolve(cctx, id)
		done <- callResult{result: res, err: err}
	}()

	var out callResult
	select {
	case out = <-done:
	case <-cctx.Done():
		return models.ResolutionResult{}, &providers.Error{
			Source: src.desc.Name,
			Err:    fmt.Errorf("%w: %v", providers.ErrTransport, cctx.Err()),
		}
	}

	if out.err != nil {
		return models.ResolutionResult{}, out.err
	}
	if !out.result.Success || out.result.Record == nil {
		msg := out.result.ErrorMessage
		if msg == "" {
			msg = "no record returned"
		}
		return models.ResolutionResult{}, &providers.Error{Source: src.desc.Name, Err: errors.New(msg)}
	}
	return out.result, nil
}

// annotate fills in what the adapter left out: trust, completeness, source
// and attribution.
func (r *Resolver) annotate(result models.ResolutionResult, desc models.SourceDescriptor) models.ResolutionResult {
	result.Success = true
	result.ErrorMessage = ""
	result.SourceName = desc.Name
	if result.TrustScore == nil {
		score := r.scorer.Score(result.Record, desc.Name)
		result.TrustScore = &score
	}
	result.Incomplete = result.Incomplete || quality.IsIncomplete(result.Record)
	if result.Record.ServingSizeGrams <= 0 {
		result.Record.ServingSizeGrams = models.DefaultServingSizeGrams
	}
	if desc.AccessPolicy.AttributionRequired {
		result.AttributionText = desc.AccessPolicy.AttributionText
	}
	return result
}

func (r *Resolver) ClearCache(ctx context.Context) error {
	if err := r.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	r.logger.InfoContext(ctx, "cache cleared")
	return nil
}

// Invalidate drops the cached result for raw so the next lookup asks the
// providers again.
func (r *Resolver) Invalidate(ctx context.Context, raw string) (bool, error) {
	id, err := identifier.Validate(raw)
	if err != nil {
		return false, err
	}
	found, err := r.cache.Delete(ctx, id.Key)
	if err != nil {
		return found, fmt.Errorf("failed to invalidate %q: %w", id.Key, err)
	}
	return found, nil
}

func (r *Resolver) CacheStats() models.CacheStats {
	return r.cache.Stats()
}

// Sources lists the configured descriptors in the order they are tried.
// ChainTimeout is the longest a resolution can take when every source runs
// to its timeout, plus one provider timeout of slack. A caller deadline
// shorter than this can cut the chain off before the fallback runs.
func (r *Resolver) ChainTimeout() time.Duration {
	total := r.slack
	for _, s := range r.sources {
		total += s.timeout
	}
	return total
}

func (r *Resolver) Sources() []models.SourceDescriptor {
	out := make([]models.SourceDescriptor, len(r.sources))
	for i, s := range r.sources {
		out[i] = s.desc
	}
	return out
}

// AttributionText joins the notices of every source whose license requires
// attribution.
func (r *Resolver) AttributionText() string {
	var lines []string
	seen := make(map[string]bool)
	for _, s := range r.sources {
		p := s.desc.AccessPolicy
		if !p.AttributionRequired || p.AttributionText == "" || seen[p.AttributionText] {
			continue
		}
		seen[p.AttributionText] = true
		lines = append(lines, p.AttributionText)
	}
	return strings.Join(lines, "\n")
}
