package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/dealscout/browser"
	"github.com/use-agent/dealscout/cache"
	"github.com/use-agent/dealscout/config"
	"github.com/use-agent/dealscout/engine"
	"github.com/use-agent/dealscout/extractor"
	"github.com/use-agent/dealscout/httpfetch"
	"github.com/use-agent/dealscout/search"
)

// stack is every long-lived component behind a search.
type stack struct {
	browser    *browser.Manager // nil in http fetch mode
	pages      *engine.Chain
	cache      *cache.Cache
	aggregator *search.Aggregator
}

func buildStack(cfg *config.Config) (*stack, error) {
	// ── Page sources ────────────────────────────────────────────────
	var mgr *browser.Manager
	var browserSource engine.Source
	if cfg.Search.FetchMode != engine.ModeHTTP {
		mgr = browser.NewManager(browser.NewRodLauncher(cfg.Browser), cfg.Browser.LaunchTimeout)
		browserSource = mgr
	}
	httpSource := httpfetch.New(httpfetch.Options{Proxy: cfg.Browser.Proxy, Timeout: 15 * time.Second})

	pages, err := engine.ForMode(cfg.Search.FetchMode, browserSource, httpSource)
	if err != nil {
		return nil, err
	}

	// ── Extractors ──────────────────────────────────────────────────
	registry := extractor.Default(extractor.Options{
		UserAgent:        cfg.Search.UserAgent,
		PlaceholderImage: cfg.PlaceholderImageURL(),
	})

	defaults, unknown := search.ParsePlatforms(strings.Join(cfg.Search.DefaultPlatforms, ","))
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown default platforms: %s", strings.Join(unknown, ", "))
	}

	// ── Cache and aggregator ────────────────────────────────────────
	cc := cache.New(cache.Options{
		TTL:           cfg.Cache.TTL,
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: cfg.Cache.SweepInterval,
	})

	opts := search.Options{
		Registry:         registry,
		Pages:            pages,
		Cache:            cc,
		DefaultPlatforms: defaults,
	}
	if cfg.Search.SampleFallback {
		opts.Fallback = registry.Samples
	}

	slog.Info("search stack ready",
		"fetch_mode", cfg.Search.FetchMode,
		"sources", pages.Name(),
		"platforms", registry.Platforms(),
		"defaults", defaults,
		"cache_ttl", cfg.Cache.TTL,
	)

	return &stack{
		browser:    mgr,
		pages:      pages,
		cache:      cc,
		aggregator: search.New(opts),
	}, nil
}

// Close stops the cache sweep and shuts the page sources down, including
// the browser process.
func (s *stack) Close() error {
	s.cache.Stop()
	return s.pages.Close()
}
