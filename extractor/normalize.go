package extractor

import (
	"hash/fnv"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/dealscout/models"
)

const currency = "₹"

var (
	numberRe = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	ratingRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	countRe  = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*([km]\b)?`)
)

// maxCount bounds parsed review counts. Anything larger is noise.
const maxCount = 1_000_000_000

// collapse trims s and folds whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parsePrice extracts the first amount in s and renders it as "₹" plus its
// integer digits. Thousands separators and paise are dropped.
func parsePrice(s string) (string, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return "", false
	}
	if i := strings.IndexByte(m, '.'); i >= 0 {
		m = m[:i]
	}
	m = strings.ReplaceAll(m, ",", "")
	m = strings.TrimLeft(m, "0")
	if m == "" {
		return "", false
	}
	return currency + m, true
}

// parseRating reads the leading number of s, e.g. "4.3 out of 5 stars".
func parseRating(s string) (float64, bool) {
	m := ratingRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// parseCount reads review counts such as "(1,234)", "2.1K" or "1M ratings".
// A k/m suffix only counts as a multiplier when it stands alone.
func parseCount(s string) (int, bool) {
	m := countRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	if v > maxCount {
		return 0, false
	}
	return int(math.Round(v)), true
}

// absoluteURL resolves raw against base. data: and javascript: URLs are
// rejected, as is anything that does not end up http(s) with a host.
func absoluteURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	out := ref.String()
	return out, models.IsAbsoluteURL(out)
}

// fingerprint is a stable hash of a listing used for synthetic values.
func fingerprint(p models.Platform, name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(string(p) + "|" + strings.ToLower(name)))
	return h.Sum32()
}

// syntheticRating maps h into 4.0..4.9 in steps of 0.1.
func syntheticRating(h uint32) float64 {
	return float64(40+h%10) / 10
}

// syntheticReviews maps h into base..base+span-1.
func syntheticReviews(h uint32, base, span int) int {
	if span <= 0 {
		return base
	}
	return base + int(h%uint32(span))
}
