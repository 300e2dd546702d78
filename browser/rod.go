package browser

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/dealscout/config"
	"github.com/use-agent/dealscout/extractor"
	"github.com/use-agent/dealscout/models"
	"github.com/ysmood/gson"
)

// acceptLanguage matches the Indian storefronts the extractors target.
const acceptLanguage = "en-IN,en;q=0.9"

// NewRodLauncher returns a Launcher that starts a local Chromium with Rod.
func NewRodLauncher(cfg config.BrowserConfig) Launcher {
	return func(ctx context.Context) (Conn, error) {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)

		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.Proxy != "" {
			l = l.Proxy(cfg.Proxy)
		}

		// ── Container-friendly flags ────────────────────────────────
		l.Set(flags.Flag("disable-setuid-sandbox"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-accelerated-2d-canvas"))
		l.Set(flags.Flag("disable-gpu"))
		l.Set(flags.Flag("no-first-run"))
		l.Set(flags.Flag("no-zygote"))

		// ── Automation masking ──────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "TranslateUI")
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-extensions"))

		controlURL, err := launch(ctx, l)
		if err != nil {
			return nil, err
		}
		slog.Debug("browser process started", "controlURL", controlURL)

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, err
		}

		c := &rodConn{browser: b, launcher: l, cfg: cfg, gone: make(chan struct{})}
		go c.watch()
		return c, nil
	}
}

// launch runs l.Launch under ctx. A process that starts after ctx ended is
// killed.
func launch(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		ch <- result{u, err}
	}()

	select {
	case r := <-ch:
		return r.url, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				l.Kill()
			}
		}()
		return "", ctx.Err()
	}
}

// rodConn is a Conn backed by a Rod browser.
type rodConn struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	gone     chan struct{}
}

// watch drains the browser event stream; it ends when the CDP connection
// drops, whether from a crash or from Close.
func (c *rodConn) watch() {
	for range c.browser.Event() {
	}
	close(c.gone)
}

func (c *rodConn) Disconnected() <-chan struct{} { return c.gone }

func (c *rodConn) NewPage(ctx context.Context) (extractor.Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	if c.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": acceptLanguage}),
	}.Call(page)

	p := &rodPage{page: page}
	if b := newBlocker(c.cfg.BlockedResourceTypes, c.cfg.BlockAds); b != nil {
		p.router = b.attach(page)
	}
	return p, nil
}

func (c *rodConn) Close() error {
	err := c.browser.Close()
	c.launcher.Kill()
	c.launcher.Cleanup()
	if err != nil {
		return models.NewSearchError(models.ErrCodeInternal, "failed to close browser", err)
	}
	return nil
}

// rodPage adapts a Rod page to extractor.Page.
type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *rodPage) SetUserAgent(ua string) error {
	return p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: acceptLanguage,
	})
}

// Navigate loads target and waits for DOMContentLoaded. The waiter is
// registered before navigating so the event cannot be missed.
func (p *rodPage) Navigate(ctx context.Context, target string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(target); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (p *rodPage) Scroll(ctx context.Context, dy int) error {
	_, err := p.page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
