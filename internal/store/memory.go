// Package store persists merged canonical records, reviews and videos.
// Both backends enforce the identity invariants with upsert semantics:
// colliding writes overwrite products and are ignored for reviews/videos.
package store

import (
	"context"
	"strings"
	"sync"

	"shopscout/aggregatorservice/internal/domain"
)

// Memory is an in-process store, used in tests and when Redis is not
// configured.
type Memory struct {
	mu       sync.RWMutex
	products map[string]domain.CanonicalItem
	reviews  map[string][]domain.ReviewItem
	videos   map[string][]domain.VideoItem
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]domain.CanonicalItem),
		reviews:  make(map[string][]domain.ReviewItem),
		videos:   make(map[string][]domain.VideoItem),
	}
}

func (m *Memory) UpsertItems(_ context.Context, items []domain.CanonicalItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if strings.TrimSpace(item.SourceID) == "" {
			continue
		}
		m.products[item.ProductID()] = item
	}
	return nil
}

func (m *Memory) GetProduct(_ context.Context, source domain.Source, sourceID string) (domain.CanonicalItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.products[string(source)+":"+sourceID]
	if !ok {
		return domain.CanonicalItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (m *Memory) UpsertReviews(_ context.Context, reviews []domain.ReviewItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, review := range reviews {
		if review.ProductID == "" || strings.TrimSpace(review.SourceReviewID) == "" {
			continue
		}
		if containsReview(m.reviews[review.ProductID], review) {
			continue
		}
		m.reviews[review.ProductID] = append(m.reviews[review.ProductID], review)
		inserted++
	}
	return inserted, nil
}

func containsReview(existing []domain.ReviewItem, review domain.ReviewItem) bool {
	for _, candidate := range existing {
		if candidate.Source == review.Source && candidate.SourceReviewID == review.SourceReviewID {
			return true
		}
	}
	return false
}

func (m *Memory) ListReviews(_ context.Context, productID string) ([]domain.ReviewItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ReviewItem(nil), m.reviews[productID]...), nil
}

func (m *Memory) UpsertVideos(_ context.Context, videos []domain.VideoItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, video := range videos {
		if video.ProductID == "" || strings.TrimSpace(video.VideoID) == "" {
			continue
		}
		if containsVideo(m.videos[video.ProductID], video.VideoID) {
			continue
		}
		m.videos[video.ProductID] = append(m.videos[video.ProductID], video)
		inserted++
	}
	return inserted, nil
}

func containsVideo(existing []domain.VideoItem, videoID string) bool {
	for _, candidate := range existing {
		if candidate.VideoID == videoID {
			return true
		}
	}
	return false
}

func (m *Memory) ListVideos(_ context.Context, productID string) ([]domain.VideoItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.VideoItem(nil), m.videos[productID]...), nil
}
