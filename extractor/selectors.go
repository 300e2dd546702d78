package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// chain is an ordered list of candidate selectors. Lookups stop at the
// first selector that matches anything.
type chain []cascadia.Selector

// sel compiles a chain. It panics on an invalid selector, so chains are
// built at package init or in constructors only.
func sel(exprs ...string) chain {
	c := make(chain, len(exprs))
	for i, e := range exprs {
		c[i] = cascadia.MustCompile(e)
	}
	return c
}

// first returns the first element under s matched by the earliest matching
// selector, or nil.
func (c chain) first(s *goquery.Selection) *goquery.Selection {
	for _, m := range c {
		if found := s.FindMatcher(m); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

// all returns every element under s matched by the earliest matching
// selector. The result is empty, never nil, when nothing matches.
func (c chain) all(s *goquery.Selection) *goquery.Selection {
	for _, m := range c {
		if found := s.FindMatcher(m); found.Length() > 0 {
			return found
		}
	}
	return s.FilterFunction(func(int, *goquery.Selection) bool { return false })
}

// text returns the collapsed text content of s.
func text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return collapse(s.Text())
}

// attr returns the first non-empty attribute among names.
func attr(s *goquery.Selection, names ...string) string {
	if s == nil {
		return ""
	}
	for _, n := range names {
		if v, ok := s.Attr(n); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// hrefOf resolves the card's link. A card that is itself an anchor is its
// own link when no descendant matches.
func hrefOf(card *goquery.Selection, links chain) string {
	if href := attr(links.first(card), "href"); href != "" {
		return href
	}
	if goquery.NodeName(card) == "a" {
		return attr(card, "href")
	}
	return ""
}
