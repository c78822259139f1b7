// ABOUTME: Query helpers for list/discover operations: filtering, sorting, and pagination.
// ABOUTME: Sorting is stable so ties keep the store's insertion order.

package store

import "sort"

// Filter keeps the elements of items for which keep returns true.
func Filter[T any](items []*T, keep func(*T) bool) []*T {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// SortDesc sorts items in place, descending by the less relation on keys.
// less(a, b) must report whether a's key sorts before b's ascending; the
// result is reversed. Stability preserves insertion order on ties.
func SortDesc[T any](items []*T, less func(a, b *T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[j], items[i])
	})
}

// Paginate applies offset and limit to items. A non-positive limit means
// no limit; offsets past the end return an empty slice.
func Paginate[T any](items []*T, limit, offset int) []*T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
