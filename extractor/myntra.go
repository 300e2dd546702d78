package extractor

import (
	"time"

	"github.com/use-agent/dealscout/models"
)

// NewMyntra returns the myntra.com extractor. Myntra renders brand and
// product title separately and shows no ratings on results pages.
func NewMyntra(opts Options) Extractor {
	return newSite(site{
		platform:   models.PlatformMyntra,
		home:       mustParseURL("https://www.myntra.com/"),
		navTimeout: 30 * time.Second,
		settle:     2 * time.Second,
		limit:      5,
		searchURL:  pathURL("https://www.myntra.com/"),
		layout: layout{
			cards: sel(`.product-base`),
			name:  sel(`.product-brand`),
			title: sel(`.product-product`),
			price: sel(`.product-discountedPrice`, `.product-price`),
			link:  sel(`a`),
			image: sel(`img.product-image`, `img`),

			reviewBase: 100,
			reviewSpan: 1000,
		},
	}, opts)
}
