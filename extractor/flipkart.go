package extractor

import (
	"strings"
	"time"

	"github.com/use-agent/dealscout/models"
)

// NewFlipkart returns the flipkart.com extractor. It is registered but not
// part of the default platform set.
func NewFlipkart(opts Options) Extractor {
	return newSite(site{
		platform:   models.PlatformFlipkart,
		home:       mustParseURL("https://www.flipkart.com/"),
		navTimeout: 30 * time.Second,
		settle:     2 * time.Second,
		limit:      5,
		searchURL:  queryURL("https://www.flipkart.com/search?q="),
		layout: layout{
			cards: sel(
				`._1AtVbE ._13oc-S`,
				`._1YokD2 ._3pLy-c`,
				`._4ddWXP`,
				`._1xHGtK`,
				`.CXW8mj`,
				`.s1Q9rs`,
				`._2kHMtA`,
			),
			name:    sel(`._4rR01T`, `.s1Q9rs`, `.IRpwTa`, `._2WkVRV`),
			price:   sel(`._30jeq3`, `._1_WHN1`),
			rating:  sel(`._3LWZlK`),
			reviews: sel(`._2_R_DZ`),
			link:    sel(`a[href*="/p/"]`, `._2rpwqI`, `a.IRpwTa`, `a.s1Q9rs`, `a`),
			image:   sel(`img`),

			reviewBase: 100,
			reviewSpan: 1000,

			// Support widgets share the card markup.
			skip: func(name string) bool {
				return strings.Contains(strings.ToLower(name), "need help")
			},
		},
	}, opts)
}
