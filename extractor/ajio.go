package extractor

import (
	"time"

	"github.com/use-agent/dealscout/models"
)

// NewAjio returns the ajio.com extractor.
func NewAjio(opts Options) Extractor {
	return newSite(site{
		platform:   models.PlatformAjio,
		home:       mustParseURL("https://www.ajio.com/"),
		navTimeout: 30 * time.Second,
		settle:     2 * time.Second,
		limit:      5,
		searchURL:  queryURL("https://www.ajio.com/search/?text="),
		layout: layout{
			cards: sel(`.item.rilrtl-products-list__item`),
			name:  sel(`.brand`),
			title: sel(`.nameCls`),
			price: sel(`.price`),
			link:  sel(`a`),
			image: sel(`img`),

			reviewBase: 100,
			reviewSpan: 1000,
		},
	}, opts)
}
