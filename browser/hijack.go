package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerDomains are ad and analytics hosts that results pages pull in but
// extraction never needs.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"amazon-adsystem.com":   {},
	"adnxs.com":             {},
	"criteo.com":            {},
	"criteo.net":            {},
	"taboola.com":           {},
	"outbrain.com":          {},
	"hotjar.com":            {},
	"clarity.ms":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"scorecardresearch.com": {},
	"moengage.com":          {},
	"clevertap-prod.com":    {},
	"webengage.com":         {},
	"branch.io":             {},
	"appsflyer.com":         {},
	"sentry.io":             {},
	"newrelic.com":          {},
	"nr-data.net":           {},
}

// blocker decides which page requests are failed before they leave the
// browser.
type blocker struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
}

// newBlocker returns nil when there is nothing to block. Unknown type
// names are ignored.
func newBlocker(typeNames []string, blockTrackers bool) *blocker {
	b := &blocker{
		types:    make(map[proto.NetworkResourceType]struct{}, len(typeNames)),
		trackers: blockTrackers,
	}
	for _, name := range typeNames {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		}
	}
	if len(b.types) == 0 && !b.trackers {
		return nil
	}
	return b
}

func (b *blocker) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := b.types[rt]; ok {
		return true
	}
	if !b.trackers {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && isTrackerHost(u.Hostname())
}

// attach starts a hijack router on page. The caller stops it when the page
// is closed.
func (b *blocker) attach(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// isTrackerHost matches host or any parent domain against trackerDomains.
func isTrackerHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}
