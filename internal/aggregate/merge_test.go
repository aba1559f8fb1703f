package aggregate

import (
	"reflect"
	"testing"

	"shopscout/aggregatorservice/internal/domain"
)

func item(source domain.Source, id, title string, rating float64, reviews int) domain.CanonicalItem {
	return domain.CanonicalItem{Source: source, SourceID: id, Title: title, Rating: rating, ReviewCount: reviews}
}

func TestMergeItemsKeepsFirstOccurrence(t *testing.T) {
	first := []domain.CanonicalItem{
		item(domain.SourceAmazon, "A1", "First", 4, 10),
	}
	second := []domain.CanonicalItem{
		item(domain.SourceAmazon, "A1", "Duplicate", 2, 1),
		item(domain.SourceWalmart, "A1", "Other Source", 3, 5),
	}
	merged := MergeItems(first, second)
	if len(merged) != 2 {
		t.Fatalf("expected 2 items, got %d", len(merged))
	}
	if merged[0].Title != "First" {
		t.Fatalf("first occurrence must win, got %q", merged[0].Title)
	}
	if merged[1].Source != domain.SourceWalmart {
		t.Fatal("same native id from another source must survive")
	}
}

func TestSortByRelevanceOrdering(t *testing.T) {
	items := []domain.CanonicalItem{
		item(domain.SourceAmazon, "low", "Budget Mouse", 3.0, 10),
		item(domain.SourceAmazon, "high", "Great Mouse", 4.8, 5000),
		item(domain.SourceWalmart, "mid", "Okay Mouse", 4.0, 100),
	}
	SortByRelevance(items)
	if items[0].SourceID != "high" || items[1].SourceID != "mid" || items[2].SourceID != "low" {
		t.Fatalf("unexpected order: %s %s %s", items[0].SourceID, items[1].SourceID, items[2].SourceID)
	}
}

func TestSortByRelevanceTieBreaks(t *testing.T) {
	// Zero rating zeroes the score; review count then title decide.
	items := []domain.CanonicalItem{
		item(domain.SourceAmazon, "b", "Bravo", 0, 10),
		item(domain.SourceAmazon, "a", "Alpha", 0, 10),
		item(domain.SourceAmazon, "c", "Charlie", 0, 20),
	}
	SortByRelevance(items)
	if items[0].Title != "Charlie" || items[1].Title != "Alpha" || items[2].Title != "Bravo" {
		t.Fatalf("unexpected tie-break order: %s %s %s", items[0].Title, items[1].Title, items[2].Title)
	}
}

func TestSortByRelevanceDeterministic(t *testing.T) {
	build := func() []domain.CanonicalItem {
		return []domain.CanonicalItem{
			item(domain.SourceAmazon, "1", "Zeta", 4.0, 50),
			item(domain.SourceWalmart, "2", "Echo", 4.0, 50),
			item(domain.SourceBestBuy, "3", "Echo", 4.5, 200),
		}
	}
	left, right := build(), build()
	SortByRelevance(left)
	SortByRelevance(right)
	if !reflect.DeepEqual(left, right) {
		t.Fatal("sort must be deterministic for identical inputs")
	}
	SortByRelevance(left)
	if !reflect.DeepEqual(left, right) {
		t.Fatal("sort must be idempotent")
	}
}
