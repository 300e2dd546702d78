// Package httpfetch is a page source that downloads search pages with
// plain HTTP and a Chrome TLS fingerprint. It runs no JavaScript, so it
// only helps on sites that render listings server-side; it exists as the
// degraded path when no browser is available.
package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/dealscout/extractor"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const maxBody = 10 << 20

// chromeH1Spec is a Chrome ClientHello with ALPN limited to http/1.1,
// since net/http cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Options configures a Source.
type Options struct {
	// Proxy is an optional http(s) proxy URL.
	Proxy string

	// Timeout bounds dialing and the TLS handshake.
	Timeout time.Duration // default: 10s
}

// Source hands out HTTP-backed pages. It is safe for concurrent use.
type Source struct {
	client *http.Client
}

// New returns a Source whose TLS handshakes look like Chrome's.
func New(opts Options) *Source {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChrome(ctx, network, addr, opts.Timeout)
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return NewWithClient(&http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	})
}

// NewWithClient returns a Source that uses client as is.
func NewWithClient(client *http.Client) *Source {
	return &Source{client: client}
}

func (s *Source) Name() string { return "http" }

// NewPage returns an empty page. Nothing is fetched until Navigate.
func (s *Source) NewPage(context.Context) (extractor.Page, error) {
	return &page{client: s.client, ua: extractor.DefaultUserAgent}, nil
}

// Close releases idle connections.
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func dialChrome(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// page is a single-document, script-free extractor.Page.
type page struct {
	client *http.Client
	ua     string

	html     string
	finalURL string
	loaded   bool
}

func (p *page) SetUserAgent(ua string) error {
	p.ua = ua
	return nil
}

func (p *page) Navigate(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", p.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 {
		return fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, target)
	}
	if !isHTML(ct) {
		return fmt.Errorf("httpfetch: non-html response (content-type: %s)", ct)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), ct)
	if err != nil {
		return fmt.Errorf("httpfetch: decode body: %w", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("httpfetch: read body: %w", err)
	}

	if scriptRendered(raw) {
		slog.Debug("page looks script-rendered, listings may be missing", "url", target)
	}

	p.html = string(raw)
	p.finalURL = resp.Request.URL.String()
	p.loaded = true
	return nil
}

// Scroll is a no-op: there is no viewport and nothing lazy-loads.
func (p *page) Scroll(context.Context, int) error { return nil }

func (p *page) HTML(context.Context) (string, error) {
	if !p.loaded {
		return "", errors.New("httpfetch: no document loaded")
	}
	return p.html, nil
}

func (p *page) URL() string { return p.finalURL }

func (p *page) Close() error {
	p.html = ""
	return nil
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// scriptRendered guesses whether a document is an SPA shell: little visible
// body text under many script tags.
func scriptRendered(body []byte) bool {
	text := visibleText(body)
	scripts := bytes.Count(bytes.ToLower(body), []byte("<script"))
	return len(text) < 200 || (scripts > 10 && len(text) < 500)
}

// visibleText collects body text outside script, style and noscript.
func visibleText(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skip++
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if inBody && skip == 0 {
				if t := strings.TrimSpace(string(z.Text())); t != "" {
					buf.WriteString(t)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
