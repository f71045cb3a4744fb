package feed

import (
	"sort"
	"strings"
)

// Filters narrow the item collection for the items view. Zero values
// mean "no filtering" for each dimension.
type Filters struct {
	Search string
	Source string
	Pillar string
}

// Apply returns the items matching every set filter, preserving input
// order. The receiver slice is never modified.
func Apply(items []Item, f Filters) []Item {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	source := strings.TrimSpace(f.Source)
	pillar := strings.TrimSpace(f.Pillar)

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if search != "" && !matchesSearch(it, search) {
			continue
		}
		if source != "" && !strings.EqualFold(source, "all") && !matchesSource(it, source) {
			continue
		}
		if pillar != "" && !strings.EqualFold(pillar, "all") && !hasPillar(it, pillar) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// matchesSearch does a case-insensitive substring match against the
// item's title, tldr, why, and pillar tags joined by spaces.
func matchesSearch(it Item, search string) bool {
	haystack := it.Title + " " + it.TLDR + " " + it.Why + " " + strings.Join(it.Pillars, " ")
	return strings.Contains(strings.ToLower(haystack), search)
}

// matchesSource compares against source_type, falling back to the source
// label when the type is absent.
func matchesSource(it Item, source string) bool {
	st := it.SourceType
	if st == "" {
		st = it.Source
	}
	return strings.EqualFold(st, source)
}

func hasPillar(it Item, pillar string) bool {
	for _, p := range it.Pillars {
		if p == pillar {
			return true
		}
	}
	return false
}

// SortItems returns a new slice ordered by the given key: "overall"
// (descending, the default), "date" (descending), "relevance"
// (descending), or "source" (ascending). Ties keep input order.
func SortItems(items []Item, key string) []Item {
	out := make([]Item, len(items))
	copy(out, items)

	switch key {
	case "date":
		// Dates are ISO formatted, so lexicographic order is
		// chronological.
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	case "relevance":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	case "source":
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(sourceKey(out[i])) < strings.ToLower(sourceKey(out[j]))
		})
	default: // "overall"
		sort.SliceStable(out, func(i, j int) bool { return out[i].Overall > out[j].Overall })
	}
	return out
}

func sourceKey(it Item) string {
	if it.SourceType != "" {
		return it.SourceType
	}
	return it.Source
}

// Cap truncates to at most n items. It is a render guard for the view
// layer, not a data limit; n <= 0 disables the cap.
func Cap(items []Item, n int) []Item {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
