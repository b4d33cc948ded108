package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"mcp-food-resolver/internal/cache"
	"mcp-food-resolver/internal/clock"
	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/models"
	"mcp-food-resolver/internal/providers"
	"mcp-food-resolver/internal/ratelimit"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type stubProvider struct {
	desc    models.SourceDescriptor
	resolve func(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error)
	calls   atomic.Int32
}

func (s *stubProvider) Descriptor() models.SourceDescriptor { return s.desc }

func (s *stubProvider) Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	s.calls.Add(1)
	return s.resolve(ctx, id)
}

func completeRecord(name string) *models.FoodRecord {
	return &models.FoodRecord{
		ProductName:      name,
		Brand:            "Acme",
		Ingredients:      []string{"oats", "sugar"},
		ServingSizeGrams: 40,
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(27),
			FiberGrams:      models.Grams(4),
			SugarsGrams:     models.Grams(1),
		},
	}
}

// succeeding returns a provider that always answers with a complete record
// and the given trust score.
func succeeding(name string, rank int, trust float64) *stubProvider {
	return &stubProvider{
		desc: models.SourceDescriptor{Name: name, PriorityRank: rank},
		resolve: func(_ context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
			res := models.Succeeded(name, completeRecord(name+" "+id.Query))
			res.TrustScore = &trust
			return res, nil
		},
	}
}

func failing(name string, rank int, err error) *stubProvider {
	return &stubProvider{
		desc: models.SourceDescriptor{Name: name, PriorityRank: rank},
		resolve: func(context.Context, identifier.Identifier) (models.ResolutionResult, error) {
			return models.ResolutionResult{}, err
		},
	}
}

type fixture struct {
	clock   *clock.Fake
	cache   *cache.ResultCache
	limiter *ratelimit.FixedWindow
}

func newFixture() *fixture {
	c := clock.NewFake(start)
	return &fixture{
		clock:   c,
		cache:   cache.New(context.Background(), nil, cache.Options{Clock: c}),
		limiter: ratelimit.NewFixedWindow(c),
	}
}

func (f *fixture) resolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	opts.Cache = f.cache
	opts.Limiter = f.limiter
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestNewRequiresProviders(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = New(Options{Providers: []providers.Provider{providers.NewLocal()}, TrustThreshold: 1.5})
	assert.Error(t, err)

	_, err = New(Options{Providers: []providers.Provider{providers.NewLocal()}, TrustThreshold: math.NaN()})
	assert.Error(t, err)
}

func TestPriorityOrderStopsAtFirstAcceptedSource(t *testing.T) {
	low := succeeding("first", 1, 0.5)
	good := succeeding("second", 2, 0.9)
	never := succeeding("third", 3, 1.0)

	r := newFixture().resolver(t, Options{
		// Deliberately out of order; rank decides.
		Providers: []providers.Provider{never, good, low},
	})

	res, err := r.ResolveDetailed(context.Background(), "12345678")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "second", res.SourceName)
	assert.Equal(t, int32(1), low.calls.Load())
	assert.Equal(t, int32(1), good.calls.Load())
	assert.Equal(t, int32(0), never.calls.Load())

	names := []string{}
	for _, d := range r.Sources() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestCacheHitSkipsProviders(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})

	first := r.Resolve(context.Background(), "Rolled Oats")
	second := r.Resolve(context.Background(), "  rolled   OATS ")
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, []string{"rolled oats"}, r.CacheStats().Keys)
}

func TestExpiredCacheEntryTriggersFreshChain(t *testing.T) {
	f := newFixture()
	p := succeeding("primary", 1, 0.9)
	r := f.resolver(t, Options{Providers: []providers.Provider{p}})

	r.Resolve(context.Background(), "12345678")
	f.clock.Advance(cache.DefaultValidity - time.Second)
	r.Resolve(context.Background(), "12345678")
	assert.Equal(t, int32(1), p.calls.Load())

	f.clock.Advance(time.Second)
	r.Resolve(context.Background(), "12345678")
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestFallbackGuaranteesAnAnswer(t *testing.T) {
	f := newFixture()
	broken := failing("broken", 1, &providers.Error{Source: "broken", Err: providers.ErrTransport})
	limited := succeeding("limited", 2, 1.0)
	limited.desc.AccessPolicy.RateLimit = &models.RateLimit{Window: time.Minute, MaxCalls: 1}

	r := f.resolver(t, Options{Providers: []providers.Provider{broken, limited, providers.NewLocal()}})

	// Use up the only call the limited source has this window.
	res := r.Resolve(context.Background(), "11111111")
	require.Equal(t, "limited", res.SourceName)

	res = r.Resolve(context.Background(), "22222222")
	assert.True(t, res.Success)
	assert.Equal(t, models.SourceLocal, res.SourceName)
	assert.True(t, res.Incomplete)
	assert.Empty(t, res.ErrorMessage)
	assert.Equal(t, int32(1), limited.calls.Load())
}

func TestFallbackResolvesKnownBarcode(t *testing.T) {
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{providers.NewLocal()}})

	res := r.Resolve(context.Background(), "049000006346")
	require.True(t, res.Success)
	assert.Equal(t, models.SourceLocal, res.SourceName)
	require.NotNil(t, res.Record.Nutrition.SugarsGrams)
	assert.Equal(t, 39.0, *res.Record.Nutrition.SugarsGrams)
	assert.Equal(t, 355.0, res.Record.ServingSizeGrams)
	assert.Len(t, res.Record.Ingredients, 6)
	require.NotNil(t, res.TrustScore)
	assert.InDelta(t, 0.95, *res.TrustScore, 1e-9)
}

func TestValidationFailureConsultsNoProvider(t *testing.T) {
	p := succeeding("primary", 1, 1.0)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})

	for _, raw := range []string{"", "1234567", "123456789012345"} {
		res, err := r.ResolveDetailed(context.Background(), raw)
		assert.False(t, res.Success, raw)
		assert.Nil(t, res.Record, raw)
		assert.NotEmpty(t, res.ErrorMessage, raw)

		var verr *identifier.ValidationError
		assert.True(t, errors.As(err, &verr), raw)
	}
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestExhaustion(t *testing.T) {
	low := succeeding("weak", 1, 0.2)
	gone := failing("gone", 2, &providers.Error{Source: "gone", Err: providers.ErrNotFound})
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{low, gone}})

	res, err := r.ResolveDetailed(context.Background(), "12345678")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.False(t, res.Success)
	assert.Nil(t, res.Record)
	assert.Equal(t, "unable to resolve from any source", res.ErrorMessage)
	assert.Zero(t, r.CacheStats().Size)
}

func TestAdapterReportedFailureContinuesChain(t *testing.T) {
	soft := &stubProvider{
		desc: models.SourceDescriptor{Name: "soft", PriorityRank: 1},
		resolve: func(context.Context, identifier.Identifier) (models.ResolutionResult, error) {
			return models.Failed("quota exceeded"), nil
		},
	}
	good := succeeding("good", 2, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{soft, good}})

	res := r.Resolve(context.Background(), "12345678")
	assert.Equal(t, "good", res.SourceName)
}

func TestPanickingAdapterIsSkipped(t *testing.T) {
	bad := &stubProvider{
		desc: models.SourceDescriptor{Name: "bad", PriorityRank: 1},
		resolve: func(context.Context, identifier.Identifier) (models.ResolutionResult, error) {
			panic("nil map")
		},
	}
	good := succeeding("good", 2, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{bad, good}})

	res := r.Resolve(context.Background(), "12345678")
	assert.True(t, res.Success)
	assert.Equal(t, "good", res.SourceName)
}

func TestSlowAdapterTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	slow := &stubProvider{
		desc: models.SourceDescriptor{Name: "slow", PriorityRank: 1},
		resolve: func(context.Context, identifier.Identifier) (models.ResolutionResult, error) {
			<-release // ignores ctx on purpose
			return models.ResolutionResult{}, nil
		},
	}
	good := succeeding("good", 2, 0.9)
	r := newFixture().resolver(t, Options{
		Providers: []providers.Provider{slow, good},
		Timeouts:  map[string]time.Duration{"slow": 20 * time.Millisecond},
	})

	begin := time.Now()
	res := r.Resolve(context.Background(), "12345678")
	assert.Equal(t, "good", res.SourceName)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestCallerCancellation(t *testing.T) {
	p := succeeding("primary", 1, 1.0)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.ResolveDetailed(ctx, "12345678")
	assert.ErrorIs(t, err, ErrCanceled)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestCancellationDuringProviderCallAbortsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := &stubProvider{
		desc: models.SourceDescriptor{Name: "blocking", PriorityRank: 1},
		resolve: func(ctx context.Context, _ identifier.Identifier) (models.ResolutionResult, error) {
			cancel()
			<-ctx.Done()
			return models.ResolutionResult{}, ctx.Err()
		},
	}
	next := succeeding("next", 2, 1.0)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{blocking, next}})

	_, err := r.ResolveDetailed(ctx, "12345678")
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestTrustAndCompletenessAreFilledIn(t *testing.T) {
	thin := &stubProvider{
		desc: models.SourceDescriptor{Name: models.SourceUSDA, PriorityRank: 1},
		resolve: func(context.Context, identifier.Identifier) (models.ResolutionResult, error) {
			rec := completeRecord("Granola")
			rec.Ingredients = nil
			return models.Succeeded("whatever", rec), nil
		},
	}
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{thin, providers.NewLocal()}})

	res := r.Resolve(context.Background(), "granola")
	// Rejected for missing ingredients, then the fallback answers.
	assert.Equal(t, models.SourceLocal, res.SourceName)
	assert.Equal(t, int32(1), thin.calls.Load())
}

func TestAttribution(t *testing.T) {
	off := providers.NewOpenFoodFacts(providers.Config{})
	nix := providers.NewNutritionix(providers.Config{})
	attributed := succeeding("attributed", 1, 0.9)
	attributed.desc.AccessPolicy = models.AccessPolicy{AttributionRequired: true, AttributionText: "Data by Attributed"}

	r := newFixture().resolver(t, Options{Providers: []providers.Provider{attributed, off, nix, providers.NewLocal()}})

	res := r.Resolve(context.Background(), "12345678")
	assert.Equal(t, "Data by Attributed", res.AttributionText)

	text := r.AttributionText()
	assert.Contains(t, text, "Data by Attributed")
	assert.Contains(t, text, "Open Food Facts")
	assert.Contains(t, text, "Powered by Nutritionix")
}

func TestClearCache(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})

	r.Resolve(context.Background(), "12345678")
	require.NoError(t, r.ClearCache(context.Background()))
	assert.Zero(t, r.CacheStats().Size)

	r.Resolve(context.Background(), "12345678")
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestWarmCache(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{
		Providers: []providers.Provider{p},
		WarmDelay: time.Millisecond,
	})

	summary := r.WarmCache(context.Background(), []string{"12345678", "123", "banana"})
	assert.Equal(t, WarmSummary{Requested: 3, Resolved: 2, Failed: 1}, summary)
	assert.Equal(t, []string{"12345678", "banana"}, r.CacheStats().Keys)
}

func TestWarmCacheStopsOnCancel(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{
		Providers: []providers.Provider{p},
		WarmDelay: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	summary := r.WarmCache(ctx, []string{"11111111", "22222222", "33333333"})
	assert.Equal(t, WarmSummary{Requested: 3, Resolved: 1, Failed: 2}, summary)
}

func TestConcurrentResolves(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := r.Resolve(context.Background(), fmt.Sprintf("%08d", i%10))
			assert.True(t, res.Success)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, r.CacheStats().Size)
	assert.GreaterOrEqual(t, p.calls.Load(), int32(10))
}

func counterValues(t *testing.T, reader *sdkmetric.ManualReader, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	low := succeeding("weak", 1, 0.1)
	r := newFixture().resolver(t, Options{
		Providers: []providers.Provider{low, providers.NewLocal()},
		Meter:     mp.Meter("test"),
	})

	r.Resolve(context.Background(), "049000006346")
	r.Resolve(context.Background(), "049000006346")
	r.Resolve(context.Background(), "bad\x00id")
	r.Resolve(context.Background(), "unheard of snack")

	outcomes := counterValues(t, reader, "food_resolver.resolutions", "outcome")
	assert.Equal(t, int64(1), outcomes[outcomeAccepted])
	assert.Equal(t, int64(1), outcomes[outcomeCacheHit])
	assert.Equal(t, int64(1), outcomes[outcomeInvalid])
	assert.Equal(t, int64(1), outcomes[outcomeFallback])

	attempts := counterValues(t, reader, "food_resolver.provider_attempts", "outcome")
	assert.Equal(t, int64(2), attempts[attemptRejected])
	assert.Equal(t, int64(2), attempts[attemptSuccess])
}

func TestInvalidate(t *testing.T) {
	p := succeeding("primary", 1, 0.9)
	r := newFixture().resolver(t, Options{Providers: []providers.Provider{p}})
	ctx := context.Background()

	r.Resolve(ctx, "Banana")
	found, err := r.Invalidate(ctx, "BANANA")
	require.NoError(t, err)
	assert.True(t, found)

	r.Resolve(ctx, "banana")
	assert.Equal(t, int32(2), p.calls.Load())

	_, err = r.Invalidate(ctx, "")
	var verr *identifier.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestChainTimeoutCoversEverySource(t *testing.T) {
	f := newFixture()
	r := f.resolver(t, Options{
		Providers: []providers.Provider{
			succeeding("A", 1, 0.9),
			succeeding("B", 2, 0.9),
			providers.NewLocal(),
		},
		ProviderTimeout: time.Second,
		Timeouts:        map[string]time.Duration{"B": 3 * time.Second},
	})
	// A + B + Local, plus one provider timeout of slack.
	assert.Equal(t, 6*time.Second, r.ChainTimeout())
}

type barcodeOnly struct {
	*stubProvider
}

func (barcodeOnly) Supports(id identifier.Identifier) bool { return id.IsBarcode() }

func TestUnsupportedSourceKeepsQuota(t *testing.T) {
	f := newFixture()
	upc := barcodeOnly{succeeding("UPC", 1, 0.9)}
	upc.desc.AccessPolicy.RateLimit = &models.RateLimit{Window: time.Hour, MaxCalls: 1}
	r := f.resolver(t, Options{Providers: []providers.Provider{upc, providers.NewLocal()}})

	res := r.Resolve(context.Background(), "banana")
	require.True(t, res.Success)
	assert.Equal(t, models.SourceLocal, res.SourceName)
	assert.Equal(t, int32(0), upc.calls.Load())
	count, _ := f.limiter.Usage("UPC")
	assert.Equal(t, 0, count)

	res = r.Resolve(context.Background(), "12345678")
	require.True(t, res.Success)
	assert.Equal(t, "UPC", res.SourceName)
	assert.Equal(t, int32(1), upc.calls.Load())
}
