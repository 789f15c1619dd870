package daterange

import "github.com/jwtham/folioharvest/internal/types"

// The predicates below assume collectors return items in strictly
// non-increasing chronological order (latest first). The pre-crawl scroll
// controller relies on that ordering: once every loaded item is older than
// From, nothing newer will ever appear further down the page.

// AnyInRange reports whether at least one dated item falls inside the range.
func AnyInRange(items []types.Item, rng Range) bool {
	for _, item := range items {
		if item.PublishDate != "" && InRange(item.PublishDate, rng) {
			return true
		}
	}
	return false
}

// AllBeforeFrom reports whether every dated item is strictly before the
// range's From month. Returns false when From is unset or no item carries a
// parseable date.
func AllBeforeFrom(items []types.Item, rng Range) bool {
	if rng.From == nil {
		return false
	}
	hasAny := false
	for _, item := range items {
		month, ok := parseItemMonth(item.PublishDate)
		if !ok {
			continue
		}
		hasAny = true
		if !month.Before(*rng.From) {
			return false
		}
	}
	return hasAny
}

// AllAfterTo reports whether every dated item is strictly after the range's
// To month. Returns false when To is unset or no item carries a parseable
// date.
func AllAfterTo(items []types.Item, rng Range) bool {
	if rng.To == nil {
		return false
	}
	hasAny := false
	for _, item := range items {
		month, ok := parseItemMonth(item.PublishDate)
		if !ok {
			continue
		}
		hasAny = true
		if !month.After(*rng.To) {
			return false
		}
	}
	return hasAny
}

// FirstInRangeIndex returns the index of the first dated item inside the
// range, or -1 when none qualifies.
func FirstInRangeIndex(items []types.Item, rng Range) int {
	for i, item := range items {
		if item.PublishDate != "" && InRange(item.PublishDate, rng) {
			return i
		}
	}
	return -1
}
