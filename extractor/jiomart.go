package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dealscout/models"
	"golang.org/x/net/html"
)

var jioPriceRe = regexp.MustCompile(`₹\s?([0-9,.]+)`)

// NewJioMart returns the jiomart.com extractor. JioMart's markup changes
// often between categories, so it carries the longest selector chains and
// text-based fallbacks for cards, names and prices.
func NewJioMart(opts Options) Extractor {
	return newSite(site{
		platform:     models.PlatformJioMart,
		home:         mustParseURL("https://www.jiomart.com/"),
		navTimeout:   45 * time.Second,
		settle:       4 * time.Second,
		scrollBy:     500,
		scrollSettle: 2 * time.Second,
		limit:        8,
		searchURL:    pathURL("https://www.jiomart.com/search/"),
		fallbackURL:  queryURL("https://www.jiomart.com/catalogsearch/result?q="),
		layout: layout{
			cards: sel(
				`[role="listitem"]`,
				`.jm-col-3 [data-testid="product-grid-container"]`,
				`.product-grid-item`,
				`.jm-col.jm-col-3`,
				`[data-testid="product-grid"] > div`,
				`.plp-card-container`,
				`.ais-InfiniteHits-item`,
				`.product-list .item`,
				`.ais-Hits-item`,
				`[data-testid="vertical-product-card"]`,
				`.jm-row [data-testid="plp-productCard"]`,
				`.jm-row .jm-col-6`,
				`.jm-col-4.jm-mb-base`,
				`.plp-card-image`,
			),
			name: sel(
				`[data-testid="product-name"]`,
				`[data-testid="brand-name"]`,
				`.jm-heading-xs`,
				`.product-name`,
				`.plp-product-name`,
				`.clsgetname`,
				`.name-rating h3`,
				`.brand-name`,
				`.jm-body-xs`,
				`.jm-body-s`,
				`h3`,
				`.category-name`,
				`.item-name`,
			),
			price: sel(
				`[data-testid="actual-price"]`,
				`[data-testid="current-price"]`,
				`.jm-price`,
				`.plp-product-offer-price`,
				`.final-price`,
				`.price-box span`,
				`.product-price`,
				`.item-price`,
				`.jm-heading-xs.jm-mb-xxs`,
			),
			link:  sel(`a[href*="/p/"]`, `a[data-testid="Anchor"]`, `a[href*="jiomart.com"]`, `a`),
			image: sel(`img`),

			reviewBase: 50,
			reviewSpan: 500,

			cardsFallback: jioCards,
			nameFallback:  longestText,
			priceFallback: func(card *goquery.Selection) string {
				if m := jioPriceRe.FindStringSubmatch(card.Text()); m != nil {
					return m[1]
				}
				return ""
			},
			rewriteURL: func(rec models.ProductRecord) string {
				if strings.Contains(rec.URL, "/p/") {
					return rec.URL
				}
				return "https://www.jiomart.com/search/" + url.PathEscape(rec.Name)
			},
		},
	}, opts)
}

// jioCards finds the innermost divs that look like a product tile: they
// mention a rupee amount and contain both an image and a link.
func jioCards(root *goquery.Selection) *goquery.Selection {
	tile := func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), currency) &&
			s.Find("img").Length() > 0 &&
			s.Find("a").Length() > 0
	}
	return root.Find("div").FilterFunction(func(i int, s *goquery.Selection) bool {
		return tile(i, s) && s.Find("div").FilterFunction(tile).Length() == 0
	})
}

// longestText picks the longest text node in the card that is not a price
// and is long enough to be a product name.
func longestText(card *goquery.Selection) string {
	var best string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := collapse(n.Data)
			if len(t) > 5 && !strings.Contains(t, currency) && len(t) > len(best) {
				best = t
			}
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range card.Nodes {
		walk(n)
	}
	return best
}
