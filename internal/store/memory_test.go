package store

import (
	"context"
	"errors"
	"testing"

	"shopscout/aggregatorservice/internal/domain"
)

func TestMemoryProductUpsertOverwrites(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	err := mem.UpsertItems(ctx, []domain.CanonicalItem{
		{Source: domain.SourceAmazon, SourceID: "A1", Title: "Old"},
		{Source: domain.SourceAmazon, SourceID: "A1", Title: "New"},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	item, err := mem.GetProduct(ctx, domain.SourceAmazon, "A1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if item.Title != "New" {
		t.Fatalf("colliding write must overwrite, got %q", item.Title)
	}
}

func TestMemoryProductNotFound(t *testing.T) {
	mem := NewMemory()
	if _, err := mem.GetProduct(context.Background(), domain.SourceAmazon, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryProductIdentityScopedToSource(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	err := mem.UpsertItems(ctx, []domain.CanonicalItem{
		{Source: domain.SourceAmazon, SourceID: "X", Title: "From Amazon"},
		{Source: domain.SourceWalmart, SourceID: "X", Title: "From Walmart"},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	amazonItem, err := mem.GetProduct(ctx, domain.SourceAmazon, "X")
	if err != nil || amazonItem.Title != "From Amazon" {
		t.Fatalf("unexpected amazon row: %+v err=%v", amazonItem, err)
	}
	walmartItem, err := mem.GetProduct(ctx, domain.SourceWalmart, "X")
	if err != nil || walmartItem.Title != "From Walmart" {
		t.Fatalf("unexpected walmart row: %+v err=%v", walmartItem, err)
	}
}

func TestMemoryReviewUpsertIgnoresDuplicates(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	reviews := []domain.ReviewItem{
		{ProductID: "amazon:A1", Source: domain.SourceAmazon, SourceReviewID: "r1", Rating: 5},
		{ProductID: "amazon:A1", Source: domain.SourceAmazon, SourceReviewID: "r2", Rating: 4},
	}
	inserted, err := mem.UpsertReviews(ctx, reviews)
	if err != nil || inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d err=%v", inserted, err)
	}

	inserted, err = mem.UpsertReviews(ctx, reviews)
	if err != nil || inserted != 0 {
		t.Fatalf("re-ingesting the same reviews must insert 0, got %d err=%v", inserted, err)
	}

	stored, err := mem.ListReviews(ctx, "amazon:A1")
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected 2 stored reviews, got %d err=%v", len(stored), err)
	}
}

func TestMemoryReviewRequiresIdentity(t *testing.T) {
	mem := NewMemory()
	inserted, err := mem.UpsertReviews(context.Background(), []domain.ReviewItem{
		{ProductID: "", SourceReviewID: "r1"},
		{ProductID: "amazon:A1", SourceReviewID: " "},
	})
	if err != nil || inserted != 0 {
		t.Fatalf("reviews without identity must be skipped, got %d err=%v", inserted, err)
	}
}

func TestMemoryVideoUpsertIgnoresDuplicates(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	videos := []domain.VideoItem{
		{ProductID: "amazon:A1", VideoID: "tiktok:v1", Title: "Review"},
		{ProductID: "amazon:A1", VideoID: "tiktok:v1", Title: "Duplicate"},
		{ProductID: "amazon:A1", VideoID: "shorts:s1", Title: "Other"},
	}
	inserted, err := mem.UpsertVideos(ctx, videos)
	if err != nil || inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d err=%v", inserted, err)
	}

	stored, err := mem.ListVideos(ctx, "amazon:A1")
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected 2 stored videos, got %d err=%v", len(stored), err)
	}
	if stored[0].Title != "Review" {
		t.Fatalf("first occurrence must win, got %q", stored[0].Title)
	}
}
