package extractor

import (
	"strconv"
	"strings"

	"github.com/use-agent/dealscout/models"
)

// sampler is implemented by extractors that can describe a canned listing
// for a query without touching the network.
type sampler interface {
	sample(query string) models.ProductRecord
}

// SearchURL returns the site search URL for query.
func (s *site) SearchURL(query string) string {
	return s.searchURL(strings.TrimSpace(query))
}

func (s *site) sample(query string) models.ProductRecord {
	query = strings.TrimSpace(query)
	h := fingerprint(s.platform, query)
	return models.ProductRecord{
		Platform: s.platform.DisplayName(),
		Name:     query + " (sample listing)",
		Price:    currency + strconv.FormatUint(uint64(499+h%9500), 10),
		Rating:   syntheticRating(h),
		Reviews:  syntheticReviews(h, s.layout.reviewBase, s.layout.reviewSpan),
		URL:      s.SearchURL(query),
		Image:    s.opts.PlaceholderImage,
	}
}

// Samples returns one canned record per platform, in the given order, for
// the degraded mode where every site came back empty. Each record links to
// the live search page so it stays useful. Unregistered platforms are
// skipped.
func (r *Registry) Samples(query string, platforms []models.Platform) []models.ProductRecord {
	out := make([]models.ProductRecord, 0, len(platforms))
	for _, p := range platforms {
		e, ok := r.byPlatform[p]
		if !ok {
			continue
		}
		if s, ok := e.(sampler); ok {
			out = append(out, s.sample(query))
		}
	}
	return out
}
