package extractor

import (
	"time"

	"github.com/use-agent/dealscout/models"
)

// NewAmazon returns the amazon.in extractor.
func NewAmazon(opts Options) Extractor {
	return newSite(site{
		platform:   models.PlatformAmazon,
		home:       mustParseURL("https://www.amazon.in/"),
		navTimeout: 30 * time.Second,
		settle:     2 * time.Second,
		limit:      5,
		searchURL:  queryURL("https://www.amazon.in/s?k="),
		layout: layout{
			cards: sel(
				`[data-component-type="s-search-result"]`,
				`.s-result-item[data-asin]`,
				`.sg-col-4-of-24.sg-col-4-of-12`,
				`.s-desktop-width-max.s-desktop-content .s-matching-dir`,
			),
			name:    sel(`h2 a span`, `h2 span`, `.a-text-normal`, `.a-size-base-plus`),
			price:   sel(`.a-price-whole`, `.a-price .a-offscreen`, `.a-price`),
			rating:  sel(`.a-icon-star-small .a-icon-alt, .a-icon-star .a-icon-alt`),
			reviews: sel(`span.a-size-base.s-underline-text, .a-size-small .a-link-normal`),
			link:    sel(`h2 a`, `.a-link-normal.a-text-normal`, `.a-link-normal[href*="/dp/"]`),
			image:   sel(`img.s-image, .s-product-image-container img`),

			reviewBase: 100,
			reviewSpan: 1000,
		},
	}, opts)
}
