// Package extractor turns a platform's search-results page into normalized
// product records. Each supported site is one Extractor; the Registry maps
// platform identifiers to them.
package extractor

import (
	"context"

	"github.com/use-agent/dealscout/models"
)

// DefaultUserAgent is the fixed desktop user agent sent by every extractor.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultPlaceholderImage is used when Options.PlaceholderImage is empty.
const DefaultPlaceholderImage = "http://localhost:3000/api/placeholder/60/60"

// Page is an exclusively owned browsing context. The caller that obtained
// the page closes it.
type Page interface {
	// SetUserAgent overrides the user agent for subsequent navigations.
	SetUserAgent(ua string) error

	// Navigate loads url and returns once the DOM content has loaded or
	// ctx ends.
	Navigate(ctx context.Context, url string) error

	// Scroll scrolls the viewport vertically by dy pixels.
	Scroll(ctx context.Context, dy int) error

	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)

	// URL returns the current document URL, or "" if unknown.
	URL() string

	Close() error
}

// Extractor is the per-site extraction capability.
//
// Extract never fails: navigation errors, timeouts and parse failures are
// logged and produce an empty slice, so the caller treats an unreachable
// site and a site with no results the same way.
type Extractor interface {
	Platform() models.Platform
	Extract(ctx context.Context, page Page, query string) []models.ProductRecord
}

// Options holds settings shared by every site extractor.
type Options struct {
	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// PlaceholderImage is the absolute image URL used when a listing has
	// no usable image.
	PlaceholderImage string
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if !models.IsAbsoluteURL(o.PlaceholderImage) {
		o.PlaceholderImage = DefaultPlaceholderImage
	}
	return o
}

// Registry is the lookup table of extractors keyed by platform.
type Registry struct {
	byPlatform map[models.Platform]Extractor
	order      []models.Platform
}

// NewRegistry registers the given extractors. A later extractor for the
// same platform replaces an earlier one.
func NewRegistry(exts ...Extractor) *Registry {
	r := &Registry{byPlatform: make(map[models.Platform]Extractor, len(exts))}
	for _, e := range exts {
		p := e.Platform()
		if _, dup := r.byPlatform[p]; !dup {
			r.order = append(r.order, p)
		}
		r.byPlatform[p] = e
	}
	return r
}

// Default builds a registry with every supported site.
func Default(opts Options) *Registry {
	return NewRegistry(
		NewAmazon(opts),
		NewJioMart(opts),
		NewMyntra(opts),
		NewAjio(opts),
		NewFlipkart(opts),
	)
}

// Lookup returns the extractor registered for p.
func (r *Registry) Lookup(p models.Platform) (Extractor, bool) {
	e, ok := r.byPlatform[p]
	return e, ok
}

// Platforms lists registered platforms in registration order.
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, len(r.order))
	copy(out, r.order)
	return out
}
