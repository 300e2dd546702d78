package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dealscout/models"
)

// sleep waits for d or until ctx ends. Tests replace it to skip settle delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// site describes how one platform is navigated and parsed. The steps run
// in a fixed order and any failing step ends the extraction with no records:
//
//  1. user agent
//  2. navigate to searchURL (then fallbackURL once, if set)
//  3. settle, optional scroll and second settle
//  4. read rendered HTML
//  5. parse cards with the layout's selector chains
//  6. cap to limit and normalize
type site struct {
	platform models.Platform
	home     *url.URL

	navTimeout   time.Duration
	settle       time.Duration
	scrollBy     int
	scrollSettle time.Duration
	limit        int

	searchURL   func(query string) string
	fallbackURL func(query string) string

	layout layout
	opts   Options
}

func newSite(s site, opts Options) *site {
	s.opts = opts.withDefaults()
	return &s
}

func (s *site) Platform() models.Platform { return s.platform }

// Extract implements Extractor.
func (s *site) Extract(ctx context.Context, page Page, query string) (records []models.ProductRecord) {
	query = strings.TrimSpace(query)
	log := slog.With("platform", s.platform, "query", query)

	defer func() {
		if r := recover(); r != nil {
			log.Error("extractor panic recovered", "panic", r)
			records = []models.ProductRecord{}
		}
	}()

	start := time.Now()
	log.Info("extraction starting")

	out, err := s.run(ctx, page, query, log)
	if err != nil {
		log.Warn("extraction failed", "error", err, "elapsed", time.Since(start))
		return []models.ProductRecord{}
	}

	log.Info("extraction complete", "count", len(out), "elapsed", time.Since(start))
	return out
}

func (s *site) run(ctx context.Context, page Page, query string, log *slog.Logger) ([]models.ProductRecord, error) {
	// ── 1. User agent ───────────────────────────────────────────────
	if err := page.SetUserAgent(s.opts.UserAgent); err != nil {
		return nil, stepError("user-agent", err)
	}

	// ── 2. Navigate, with a single fallback URL ─────────────────────
	target := s.searchURL(query)
	if err := s.navigate(ctx, page, target); err != nil {
		if s.fallbackURL == nil {
			return nil, stepError("navigate", err)
		}
		log.Warn("primary navigation failed, trying fallback URL", "url", target, "error", err)
		target = s.fallbackURL(query)
		if err := s.navigate(ctx, page, target); err != nil {
			return nil, stepError("navigate-fallback", err)
		}
	}

	// ── 3. Settle and lazy-load ─────────────────────────────────────
	if err := sleep(ctx, s.settle); err != nil {
		return nil, stepError("settle", err)
	}
	if s.scrollBy > 0 {
		if err := page.Scroll(ctx, s.scrollBy); err != nil {
			log.Debug("scroll failed, extracting current DOM", "error", err)
		} else if err := sleep(ctx, s.scrollSettle); err != nil {
			return nil, stepError("settle", err)
		}
	}

	// ── 4. Rendered HTML ────────────────────────────────────────────
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, stepError("html", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, stepError("parse", err)
	}

	base := s.home
	if u, err := url.Parse(page.URL()); err == nil && models.IsAbsoluteURL(u.String()) {
		base = u
	}

	// ── 5-6. Cards → records ────────────────────────────────────────
	p := &parser{site: s, base: base, query: query}
	records := p.parse(doc)
	log.Debug("parsed listings", "url", target, "records", len(records))
	return records, nil
}

// navigate bounds a single navigation with the site's timeout.
func (s *site) navigate(ctx context.Context, page Page, target string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, target); err != nil {
		return categorizeError(err, "navigation to "+target+" failed")
	}
	return nil
}

// pathURL builds search URLs that carry the query as a path segment.
func pathURL(prefix string) func(string) string {
	return func(query string) string { return prefix + url.PathEscape(query) }
}

// queryURL builds search URLs that carry the query as a parameter value.
func queryURL(prefix string) func(string) string {
	return func(query string) string { return prefix + url.QueryEscape(query) }
}

func stepError(step string, err error) error {
	return models.NewSearchError(models.ErrCodeExtraction, fmt.Sprintf("step %s failed", step), err)
}

// categorizeError wraps raw errors into typed SearchErrors so timeouts can
// be told apart from other navigation failures.
func categorizeError(err error, msg string) *models.SearchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewSearchError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewSearchError(models.ErrCodeTimeout, "navigation canceled", err)
	default:
		return models.NewSearchError(models.ErrCodeNavigation, msg, err)
	}
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
