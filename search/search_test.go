package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/dealscout/cache"
	"github.com/use-agent/dealscout/extractor"
	"github.com/use-agent/dealscout/models"
)

// ── fakes ───────────────────────────────────────────────────────────

type nopPage struct{ closed *atomic.Int32 }

func (nopPage) SetUserAgent(string) error              { return nil }
func (nopPage) Navigate(context.Context, string) error { return nil }
func (nopPage) Scroll(context.Context, int) error      { return nil }
func (nopPage) HTML(context.Context) (string, error)   { return "", nil }
func (nopPage) URL() string                            { return "" }
func (p nopPage) Close() error                         { p.closed.Add(1); return nil }

type fakePages struct {
	opened atomic.Int32
	closed atomic.Int32
	err    error
}

func (f *fakePages) NewPage(context.Context) (extractor.Page, error) {
	f.opened.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return nopPage{closed: &f.closed}, nil
}

type fakeExtractor struct {
	platform models.Platform
	records  []models.ProductRecord
	delay    time.Duration
	panics   bool
	gate     chan struct{}
	calls    atomic.Int32
}

func (f *fakeExtractor) Platform() models.Platform { return f.platform }

func (f *fakeExtractor) Extract(ctx context.Context, _ extractor.Page, _ string) []models.ProductRecord {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("selector blew up")
	}
	return f.records
}

func rec(platform models.Platform, name string) models.ProductRecord {
	return models.ProductRecord{
		Platform: platform.DisplayName(),
		Name:     name,
		Price:    "₹1299",
		Rating:   4.3,
		Reviews:  210,
		URL:      "https://example.com/p/" + name,
		Image:    "https://example.com/i/" + name + ".jpg",
	}
}

type fixture struct {
	agg   *Aggregator
	pages *fakePages
	cache *cache.Cache
}

func newFixture(t *testing.T, exts ...*fakeExtractor) *fixture {
	t.Helper()
	list := make([]extractor.Extractor, len(exts))
	for i, e := range exts {
		list[i] = e
	}
	c := cache.New(cache.Options{TTL: time.Hour})
	t.Cleanup(c.Stop)
	pages := &fakePages{}
	agg := New(Options{
		Registry: extractor.NewRegistry(list...),
		Pages:    pages,
		Cache:    c,
	})
	return &fixture{agg: agg, pages: pages, cache: c}
}

// ── tests ───────────────────────────────────────────────────────────

func TestSearch_MergesInRegistryOrderAndCaches(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "laptop-a")}, delay: 30 * time.Millisecond}
	myntra := &fakeExtractor{platform: models.PlatformMyntra, records: []models.ProductRecord{rec(models.PlatformMyntra, "laptop-m")}}
	f := newFixture(t, amazon, myntra)

	res, err := f.agg.Search(context.Background(), "laptop", []models.Platform{models.PlatformAmazon, models.PlatformMyntra})
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.False(t, res.CacheHit)
	assert.Equal(t, "Amazon", res.Products[0].Platform)
	assert.Equal(t, "Myntra", res.Products[1].Platform)

	cached, ok := f.cache.Get(cache.Key("laptop", []string{"amazon", "myntra"}))
	require.True(t, ok, "result should be cached under laptop|amazon,myntra")
	assert.Equal(t, res.Products, cached)

	assert.EqualValues(t, 2, f.pages.opened.Load())
	assert.EqualValues(t, 2, f.pages.closed.Load(), "every page must be closed")
}

func TestSearch_RepeatServedFromCache(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}}
	myntra := &fakeExtractor{platform: models.PlatformMyntra, records: []models.ProductRecord{rec(models.PlatformMyntra, "m")}}
	f := newFixture(t, amazon, myntra)
	platforms := []models.Platform{models.PlatformAmazon, models.PlatformMyntra}

	first, err := f.agg.Search(context.Background(), "laptop", platforms)
	require.NoError(t, err)

	second, err := f.agg.Search(context.Background(), "laptop", platforms)
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Products, second.Products)
	assert.EqualValues(t, 1, amazon.calls.Load())
	assert.EqualValues(t, 1, myntra.calls.Load())
	assert.EqualValues(t, 2, f.pages.opened.Load(), "a cache hit must not open pages")
}

func TestSearch_PlatformOrderDoesNotMatter(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}}
	myntra := &fakeExtractor{platform: models.PlatformMyntra, records: []models.ProductRecord{rec(models.PlatformMyntra, "m")}}
	f := newFixture(t, amazon, myntra)

	first, err := f.agg.Search(context.Background(), "laptop", []models.Platform{models.PlatformMyntra, models.PlatformAmazon})
	require.NoError(t, err)
	require.Len(t, first.Products, 2)
	assert.Equal(t, "Amazon", first.Products[0].Platform, "records follow registry order, not request order")
	assert.Equal(t, "Myntra", first.Products[1].Platform)

	second, err := f.agg.Search(context.Background(), "Laptop", []models.Platform{models.PlatformAmazon, models.PlatformMyntra})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Products, second.Products)
	assert.EqualValues(t, 1, amazon.calls.Load())
	assert.EqualValues(t, 1, myntra.calls.Load())
}

func TestSearch_EmptyQueryFailsFast(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon}
	f := newFixture(t, amazon)

	for _, q := range []string{"", "   \t"} {
		_, err := f.agg.Search(context.Background(), q, nil)
		require.Error(t, err)
		assert.True(t, models.HasCode(err, models.ErrCodeInvalidRequest))
	}
	assert.Zero(t, f.pages.opened.Load())
	assert.Zero(t, amazon.calls.Load())
	assert.Zero(t, f.cache.Len())
}

func TestSearch_AllFailingReturnsEmptyAndDoesNotCache(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, panics: true}
	myntra := &fakeExtractor{platform: models.PlatformMyntra}
	f := newFixture(t, amazon, myntra)

	res, err := f.agg.Search(context.Background(), "nothing", []models.Platform{models.PlatformAmazon, models.PlatformMyntra})
	require.NoError(t, err)
	require.NotNil(t, res.Products)
	assert.Empty(t, res.Products)

	_, ok := f.cache.Get(cache.Key("nothing", []string{"amazon", "myntra"}))
	assert.False(t, ok, "empty aggregation must not be cached")

	// The next request aggregates again instead of hitting a poisoned entry.
	_, err = f.agg.Search(context.Background(), "nothing", []models.Platform{models.PlatformAmazon, models.PlatformMyntra})
	require.NoError(t, err)
	assert.EqualValues(t, 2, myntra.calls.Load())
}

func TestSearch_FaultIsolation(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a1"), rec(models.PlatformAmazon, "a2")}}
	jiomart := &fakeExtractor{platform: models.PlatformJioMart, panics: true}
	ajio := &fakeExtractor{platform: models.PlatformAjio, records: []models.ProductRecord{rec(models.PlatformAjio, "j1")}}
	f := newFixture(t, amazon, jiomart, ajio)

	res, err := f.agg.Search(context.Background(), "kurta", []models.Platform{models.PlatformAmazon, models.PlatformJioMart, models.PlatformAjio})
	require.NoError(t, err)

	names := make([]string, len(res.Products))
	for i, p := range res.Products {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"a1", "a2", "j1"}, names)
	assert.EqualValues(t, 3, f.pages.closed.Load(), "the panicking branch must still close its page")
}

func TestSearch_PageSourceFailure(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}}
	f := newFixture(t, amazon)
	f.pages.err = models.NewSearchError(models.ErrCodeBrowserLaunch, "failed to launch browser", errors.New("no chrome"))

	res, err := f.agg.Search(context.Background(), "laptop", []models.Platform{models.PlatformAmazon})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Zero(t, amazon.calls.Load())
}

func TestSearch_DefaultsDedupAndUnregistered(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}}
	ajio := &fakeExtractor{platform: models.PlatformAjio, records: []models.ProductRecord{rec(models.PlatformAjio, "j")}}
	flipkart := &fakeExtractor{platform: models.PlatformFlipkart, records: []models.ProductRecord{rec(models.PlatformFlipkart, "f")}}
	f := newFixture(t, amazon, ajio, flipkart)

	// Defaults are amazon, jiomart, myntra, ajio; only amazon and ajio are registered.
	res, err := f.agg.Search(context.Background(), "shoes", nil)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "Amazon", res.Products[0].Platform)
	assert.Equal(t, "Ajio", res.Products[1].Platform)
	assert.Zero(t, flipkart.calls.Load(), "flipkart is not a default platform")

	_, err = f.agg.Search(context.Background(), "bag", []models.Platform{models.PlatformAjio, models.PlatformAjio, models.PlatformMyntra})
	require.NoError(t, err)
	assert.EqualValues(t, 2, ajio.calls.Load(), "duplicate platform must run once")

	res, err = f.agg.Search(context.Background(), "bag", []models.Platform{models.PlatformMyntra})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
}

func TestSearch_ConcurrentMissesShareOneAggregation(t *testing.T) {
	gate := make(chan struct{})
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}, gate: gate}
	f := newFixture(t, amazon)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.agg.Search(context.Background(), "phone", []models.Platform{models.PlatformAmazon})
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	require.Eventually(t, func() bool { return amazon.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 1, amazon.calls.Load())
	for _, r := range results {
		assert.Len(t, r.Products, 1)
	}
}

func TestSearch_CallerCancelDoesNotAbortSharedAggregation(t *testing.T) {
	gate := make(chan struct{})
	amazon := &fakeExtractor{platform: models.PlatformAmazon, records: []models.ProductRecord{rec(models.PlatformAmazon, "a")}, gate: gate}
	f := newFixture(t, amazon)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.agg.Search(ctx, "tv", []models.Platform{models.PlatformAmazon})
		done <- err
	}()

	require.Eventually(t, func() bool { return amazon.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	err := <-done
	assert.True(t, models.HasCode(err, models.ErrCodeTimeout))

	close(gate)
	require.Eventually(t, func() bool {
		_, ok := f.cache.Get(cache.Key("tv", []string{"amazon"}))
		return ok
	}, time.Second, 5*time.Millisecond, "abandoned aggregation should still complete and cache")
}

func TestSearch_SampleFallback(t *testing.T) {
	amazon := &fakeExtractor{platform: models.PlatformAmazon}
	f := newFixture(t, amazon)
	var got []models.Platform
	f.agg.fallback = func(query string, platforms []models.Platform) []models.ProductRecord {
		got = platforms
		return []models.ProductRecord{rec(models.PlatformAmazon, query+"-sample")}
	}

	res, err := f.agg.Search(context.Background(), "watch", []models.Platform{models.PlatformAmazon})
	require.NoError(t, err)
	assert.True(t, res.Sampled)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "watch-sample", res.Products[0].Name)
	assert.Equal(t, []models.Platform{models.PlatformAmazon}, got)

	_, ok := f.cache.Get(cache.Key("watch", []string{"amazon"}))
	assert.False(t, ok, "sample records must not be cached")
}

func TestParsePlatforms(t *testing.T) {
	tests := []struct {
		in      string
		known   []models.Platform
		unknown []string
	}{
		{"amazon,myntra", []models.Platform{models.PlatformAmazon, models.PlatformMyntra}, nil},
		{" Amazon , AJIO,amazon", []models.Platform{models.PlatformAmazon, models.PlatformAjio}, nil},
		{"ebay,flipkart,,", []models.Platform{models.PlatformFlipkart}, []string{"ebay"}},
		{"", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			known, unknown := ParsePlatforms(tt.in)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.unknown, unknown)
		})
	}
}
