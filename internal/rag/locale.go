package rag

import (
	"sort"
	"strings"
)

// Locale codes accepted by the pipeline.
const (
	LocaleKo = "ko"
	LocaleEn = "en"
)

// NormalizeLocale maps unknown locale values to Korean, the blog's default.
func NormalizeLocale(locale string) string {
	if locale == LocaleEn {
		return LocaleEn
	}
	return LocaleKo
}

const enSlugSuffix = ".en"

// FilterByLocale keeps, per base document, the hits matching the requested
// locale, falling back to the other locale's hits when no localized variant
// was retrieved. The merged set is re-sorted by score descending because
// grouping breaks global score order.
func FilterByLocale(hits []SemanticHit, locale string) []SemanticHit {
	if len(hits) == 0 {
		return hits
	}
	locale = NormalizeLocale(locale)

	slugs := make(map[string]bool, len(hits))
	for _, hit := range hits {
		slugs[slugFromURL(hit.Chunk.Metadata.URL)] = true
	}

	type group struct {
		matching []SemanticHit
		other    []SemanticHit
	}
	groups := make(map[string]*group)
	var order []string

	for _, hit := range hits {
		slug := slugFromURL(hit.Chunk.Metadata.URL)
		base, hitLocale := splitLocaleVariant(slug, slugs)

		g := groups[base]
		if g == nil {
			g = &group{}
			groups[base] = g
			order = append(order, base)
		}
		if hitLocale == locale {
			g.matching = append(g.matching, hit)
		} else {
			g.other = append(g.other, hit)
		}
	}

	filtered := make([]SemanticHit, 0, len(hits))
	for _, base := range order {
		g := groups[base]
		if len(g.matching) > 0 {
			filtered = append(filtered, g.matching...)
		} else {
			filtered = append(filtered, g.other...)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

// slugFromURL extracts the last path segment of a canonical post URL.
func slugFromURL(url string) string {
	trimmed := strings.Trim(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// splitLocaleVariant detects the English variant of a localized slug pair.
// "foo.en" is the English rendition of base "foo"; "fooen" counts only when
// a sibling slug "foo" exists. Everything else is the Korean base document.
func splitLocaleVariant(slug string, allSlugs map[string]bool) (base, locale string) {
	if strings.HasSuffix(slug, enSlugSuffix) {
		return strings.TrimSuffix(slug, enSlugSuffix), LocaleEn
	}
	if strings.HasSuffix(slug, "en") {
		candidate := strings.TrimSuffix(slug, "en")
		if candidate != "" && allSlugs[candidate] {
			return candidate, LocaleEn
		}
	}
	return slug, LocaleKo
}
