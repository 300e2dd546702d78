// Package search fans a query out to the per-site extractors, merges what
// they return and caches non-empty results.
package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/use-agent/dealscout/cache"
	"github.com/use-agent/dealscout/extractor"
	"github.com/use-agent/dealscout/models"
)

// PageSource hands out exclusively owned pages. *browser.Manager and
// *engine.Chain satisfy it.
type PageSource interface {
	NewPage(ctx context.Context) (extractor.Page, error)
}

// FallbackFunc produces records for the degraded case where every site
// came back empty.
type FallbackFunc func(query string, platforms []models.Platform) []models.ProductRecord

// Options configures an Aggregator.
type Options struct {
	Registry *extractor.Registry
	Pages    PageSource
	Cache    *cache.Cache

	// DefaultPlatforms is used when a request names none.
	DefaultPlatforms []models.Platform

	// Fallback, when set, replaces an empty aggregation. Its records are
	// never cached.
	Fallback FallbackFunc
}

// Result is the outcome of one search.
type Result struct {
	Products []models.ProductRecord
	CacheHit bool

	// Sampled is true when Products came from the fallback.
	Sampled bool
}

// Aggregator runs searches. It is safe for concurrent use.
type Aggregator struct {
	registry *extractor.Registry
	pages    PageSource
	cache    *cache.Cache
	defaults []models.Platform
	fallback FallbackFunc

	flights singleflight.Group
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	defaults := opts.DefaultPlatforms
	if len(defaults) == 0 {
		defaults = []models.Platform{
			models.PlatformAmazon,
			models.PlatformJioMart,
			models.PlatformMyntra,
			models.PlatformAjio,
		}
	}
	return &Aggregator{
		registry: opts.Registry,
		pages:    opts.Pages,
		cache:    opts.Cache,
		defaults: defaults,
		fallback: opts.Fallback,
	}
}

// Search returns the merged records for query across platforms, in registry
// order (amazon, jiomart, myntra, ajio, flipkart for the default registry). Per-site failures only shrink the result; the sole error cases
// are an empty query and the caller's ctx ending while it waits on a
// shared aggregation.
func (a *Aggregator) Search(ctx context.Context, query string, platforms []models.Platform) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, models.NewSearchError(models.ErrCodeInvalidRequest, "Query parameter is required", nil)
	}

	targets := a.resolve(platforms)
	if len(targets) == 0 {
		slog.Warn("no registered platforms requested", "query", query, "requested", platforms)
		return Result{Products: []models.ProductRecord{}}, nil
	}

	key := cache.Key(query, names(targets))
	if recs, ok := a.cache.Get(key); ok {
		slog.Info("serving cached result", "query", query, "key", key, "count", len(recs))
		return Result{Products: recs, CacheHit: true}, nil
	}

	// The shared aggregation outlives any single caller so that one
	// client hanging up does not cancel it for the others.
	ch := a.flights.DoChan(key, func() (any, error) {
		return a.aggregate(context.WithoutCancel(ctx), key, query, targets), nil
	})

	select {
	case res := <-ch:
		recs := res.Val.([]models.ProductRecord)
		if len(recs) > 0 {
			return Result{Products: slices.Clone(recs)}, nil
		}
		if a.fallback != nil {
			slog.Info("no live results, serving sample records", "query", query)
			return Result{Products: a.fallback(query, targets), Sampled: true}, nil
		}
		return Result{Products: []models.ProductRecord{}}, nil
	case <-ctx.Done():
		return Result{}, models.NewSearchError(models.ErrCodeTimeout, "search abandoned before aggregation finished", ctx.Err())
	}
}

// aggregate runs one extractor per platform concurrently and merges their
// output in targets order. Non-empty results are written to the cache.
func (a *Aggregator) aggregate(ctx context.Context, key, query string, targets []models.Platform) []models.ProductRecord {
	// A flight for this key may have finished between our cache miss and
	// joining the group.
	if recs, ok := a.cache.Get(key); ok {
		return recs
	}

	start := time.Now()
	slots := make([][]models.ProductRecord, len(targets))

	var g errgroup.Group
	for i, p := range targets {
		ext, _ := a.registry.Lookup(p)
		g.Go(func() error {
			slots[i] = a.extract(ctx, ext, query)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]models.ProductRecord, 0)
	for _, recs := range slots {
		merged = append(merged, recs...)
	}

	if len(merged) > 0 {
		a.cache.Set(key, merged)
	}
	slog.Info("search complete",
		"query", query,
		"platforms", strings.Join(names(targets), ","),
		"count", len(merged),
		"elapsed", time.Since(start),
	)
	return merged
}

// extract runs one platform branch. It never fails: a page that cannot be
// opened or an extractor that panics contributes nothing.
func (a *Aggregator) extract(ctx context.Context, ext extractor.Extractor, query string) (recs []models.ProductRecord) {
	log := slog.With("platform", ext.Platform(), "query", query)

	defer func() {
		if r := recover(); r != nil {
			log.Error("platform branch panic recovered", "panic", r)
			recs = nil
		}
	}()

	page, err := a.pages.NewPage(ctx)
	if err != nil {
		log.Warn("could not open page", "error", err)
		return nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("page close failed", "error", err)
		}
	}()

	return ext.Extract(ctx, page, query)
}

// resolve applies the defaults, drops duplicates and skips platforms with
// no registered extractor. The result follows registry order, so every
// permutation of a platform set aggregates and merges identically.
func (a *Aggregator) resolve(requested []models.Platform) []models.Platform {
	if len(requested) == 0 {
		requested = a.defaults
	}
	want := make(map[models.Platform]struct{}, len(requested))
	for _, p := range requested {
		if _, ok := a.registry.Lookup(p); !ok {
			slog.Warn("skipping platform without extractor", "platform", p)
			continue
		}
		want[p] = struct{}{}
	}
	out := make([]models.Platform, 0, len(want))
	for _, p := range a.registry.Platforms() {
		if _, ok := want[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ParsePlatforms splits a comma-separated platform list. Known platforms
// are returned in order without duplicates; unknown names are returned
// separately so the caller can report them.
func ParsePlatforms(csv string) ([]models.Platform, []string) {
	var known []models.Platform
	var unknown []string
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, ok := models.ParsePlatform(raw)
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		if !slices.Contains(known, p) {
			known = append(known, p)
		}
	}
	return known, unknown
}

func names(ps []models.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
