// Package engine picks where extraction pages come from. A Chain holds one
// or more page sources in preference order; the fetch mode decides which.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/use-agent/dealscout/extractor"
)

// Fetch modes.
const (
	ModeBrowser = "browser"
	ModeHTTP    = "http"
	ModeAuto    = "auto"
)

// Source hands out exclusively owned pages.
type Source interface {
	// Name returns the source identifier (e.g. "browser", "http").
	Name() string

	NewPage(ctx context.Context) (extractor.Page, error)
}

// Chain tries its sources in order and returns the first page that opens.
type Chain struct {
	sources []Source
}

// NewChain returns a chain over sources, most preferred first.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// ForMode builds the chain for a fetch mode: the browser alone, plain HTTP
// alone, or the browser with HTTP behind it.
func ForMode(mode string, browser, http Source) (*Chain, error) {
	switch mode {
	case ModeBrowser:
		return NewChain(browser), nil
	case ModeHTTP:
		return NewChain(http), nil
	case ModeAuto:
		return NewChain(browser, http), nil
	default:
		return nil, fmt.Errorf("engine: unknown fetch mode %q", mode)
	}
}

// Name lists the sources in order, e.g. "browser>http".
func (c *Chain) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ">")
}

// NewPage returns a page from the first source that can open one. When
// every source fails, the last error is returned.
func (c *Chain) NewPage(ctx context.Context) (extractor.Page, error) {
	var lastErr error
	for i, s := range c.sources {
		page, err := s.NewPage(ctx)
		if err == nil {
			if i > 0 {
				slog.Info("page served by fallback source", "source", s.Name())
			}
			return page, nil
		}
		lastErr = err
		if i < len(c.sources)-1 {
			slog.Warn("page source failed, trying next", "source", s.Name(), "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("engine: no page sources configured")
	}
	return nil, lastErr
}

// Close closes every source that holds resources.
func (c *Chain) Close() error {
	var errs []error
	for _, s := range c.sources {
		if cl, ok := s.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
