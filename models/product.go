package models

import (
	"net/url"
	"strconv"
	"strings"
)

// Platform identifies one supported e-commerce site.
type Platform string

const (
	PlatformAmazon   Platform = "amazon"
	PlatformJioMart  Platform = "jiomart"
	PlatformMyntra   Platform = "myntra"
	PlatformAjio     Platform = "ajio"
	PlatformFlipkart Platform = "flipkart"
)

var displayNames = map[Platform]string{
	PlatformAmazon:   "Amazon",
	PlatformJioMart:  "JioMart",
	PlatformMyntra:   "Myntra",
	PlatformAjio:     "Ajio",
	PlatformFlipkart: "Flipkart",
}

// AllPlatforms returns every known platform identifier in a stable order.
func AllPlatforms() []Platform {
	return []Platform{PlatformAmazon, PlatformJioMart, PlatformMyntra, PlatformAjio, PlatformFlipkart}
}

// ParsePlatform resolves a case-insensitive platform name.
func ParsePlatform(name string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	_, ok := displayNames[p]
	return p, ok
}

// DisplayName is the label emitted in ProductRecord.Platform.
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

func (p Platform) String() string { return string(p) }

// ProductRecord is a single normalized product listing.
type ProductRecord struct {
	// Platform is the display label of the source site, e.g. "Amazon".
	Platform string `json:"platform" yaml:"platform"`

	// Name is the display name. Brand and title are joined when a site
	// renders them separately.
	Name string `json:"name" yaml:"name"`

	// Price is a currency-prefixed display string such as "₹1299".
	Price string `json:"price" yaml:"price"`

	// Rating is in [0, 5].
	Rating float64 `json:"rating" yaml:"rating"`

	// Reviews is the review count.
	Reviews int `json:"reviews" yaml:"reviews"`

	// URL is the absolute product page, or an absolute search URL when the
	// listing had no usable link.
	URL string `json:"url" yaml:"url"`

	// Image is the absolute image URL or the placeholder image URL.
	Image string `json:"image" yaml:"image"`
}

// PriceValue derives the numeric price from the display string by keeping
// digits only.
func (r ProductRecord) PriceValue() (int64, bool) {
	var b strings.Builder
	for _, c := range r.Price {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Valid reports whether every field is populated and both URLs are absolute.
func (r ProductRecord) Valid() bool {
	if r.Platform == "" || strings.TrimSpace(r.Name) == "" {
		return false
	}
	if _, ok := r.PriceValue(); !ok {
		return false
	}
	if r.Rating < 0 || r.Rating > 5 || r.Reviews < 0 {
		return false
	}
	return IsAbsoluteURL(r.URL) && IsAbsoluteURL(r.Image)
}

// IsAbsoluteURL reports whether raw is an http(s) URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
