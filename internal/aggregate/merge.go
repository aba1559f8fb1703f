package aggregate

import (
	"math"
	"sort"

	"shopscout/aggregatorservice/internal/domain"
)

// MergeItems concatenates per-provider result groups into one set, keeping
// the first occurrence of every (source, sourceId) pair. Items from
// different providers are never folded into one record: cross-provider
// identity resolution is out of scope.
func MergeItems(groups ...[]domain.CanonicalItem) []domain.CanonicalItem {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	merged := make([]domain.CanonicalItem, 0, total)
	seen := make(map[string]struct{}, total)
	for _, group := range groups {
		for _, item := range group {
			key := item.ProductID()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

// RelevanceScore ranks an item by rating weighted by review volume.
func RelevanceScore(item domain.CanonicalItem) float64 {
	return item.Rating * math.Log1p(float64(item.ReviewCount))
}

// SortByRelevance orders items by relevance score descending, review count
// descending, then title ascending. The final tie-break makes the order
// deterministic for identical inputs.
func SortByRelevance(items []domain.CanonicalItem) {
	sort.SliceStable(items, func(i, j int) bool {
		left, right := items[i], items[j]
		leftScore, rightScore := RelevanceScore(left), RelevanceScore(right)
		if leftScore != rightScore {
			return leftScore > rightScore
		}
		if left.ReviewCount != right.ReviewCount {
			return left.ReviewCount > right.ReviewCount
		}
		return left.Title < right.Title
	})
}
