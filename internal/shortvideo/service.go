// Package shortvideo aggregates short-form video reviews from video
// platforms. It is a narrower sibling of the product aggregator: same
// fan-out, cache and single-flight machinery, scoped to a disjoint provider
// set and keyed by product rather than by query.
package shortvideo

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"shopscout/aggregatorservice/internal/domain"
	"shopscout/aggregatorservice/internal/metrics"
)

var ErrInvalidKey = errors.New("product id or title hint is required")

const (
	defaultCacheTTL        = 12 * time.Hour
	defaultCacheMaxEntries = 500
	maxConcurrentProviders = 4
	maxVideosPerProduct    = 25
)

// Provider fetches short-form videos about a product from one platform.
// Empty results are success; failures are classified *domain.ProviderError.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	FetchVideos(ctx context.Context, productID, titleHint string) ([]domain.ShortVideoItem, error)
}

// VideoStore persists fetched videos under the (productId, videoId)
// uniqueness rule so repeated fetches never re-ingest the same video.
type VideoStore interface {
	UpsertVideos(ctx context.Context, videos []domain.VideoItem) (int, error)
}

type cachedVideos struct {
	videos    []domain.ShortVideoItem
	cachedAt  time.Time
	expiresAt time.Time
}

type Service struct {
	providers map[string]Provider
	timeout   time.Duration
	ttl       time.Duration
	maxCache  int
	store     VideoStore

	mu     sync.Mutex
	cache  map[string]*cachedVideos
	flight singleflight.Group

	// Process-wide counters, reset only on restart.
	hits   atomic.Int64
	misses atomic.Int64
}

type ServiceOption func(*Service)

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithVideoStore(store VideoStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	registry := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		registry[name] = provider
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	svc := &Service{
		providers: registry,
		timeout:   timeout,
		ttl:       defaultCacheTTL,
		maxCache:  defaultCacheMaxEntries,
		cache:     make(map[string]*cachedVideos),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// cacheKey prefers the product id; before a canonical record exists a cold
// lookup is keyed by the normalized title hint instead.
func cacheKey(productID, titleHint string) string {
	if id := strings.TrimSpace(productID); id != "" {
		return "p:" + id
	}
	title := strings.ToLower(strings.Join(strings.Fields(titleHint), " "))
	if title == "" {
		return ""
	}
	return "t:" + title
}

// ProductVideos returns the ranked short-video reviews for a product,
// serving from cache when the entry is still live. Every lookup counts
// exactly one hit or one miss; an expired entry counts as a miss even
// though it is still physically present.
func (s *Service) ProductVideos(ctx context.Context, productID, titleHint string) ([]domain.ShortVideoItem, error) {
	key := cacheKey(productID, titleHint)
	if key == "" {
		return nil, ErrInvalidKey
	}

	if videos, ok := s.cacheGet(key); ok {
		return videos, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		videos, fetched := s.fetchAll(ctx, productID, titleHint)
		rankVideos(videos)
		if len(videos) > maxVideosPerProduct {
			videos = videos[:maxVideosPerProduct]
		}
		// A total platform outage must not freeze an empty entry for the
		// whole TTL; only a result at least one platform vouched for is
		// cacheable.
		if fetched {
			s.cachePut(key, videos)
			s.persistVideos(productID, videos)
		}
		return videos, nil
	})
	if err != nil {
		return nil, err
	}
	videos, _ := value.([]domain.ShortVideoItem)
	return videos, nil
}

// fetchAll fans out to every platform concurrently. A failing platform
// contributes nothing; the merged list from the healthy ones still serves.
// The second return reports whether at least one platform answered.
func (s *Service) fetchAll(ctx context.Context, productID, titleHint string) ([]domain.ShortVideoItem, bool) {
	selected := make([]Provider, 0, len(s.providers))
	for _, provider := range s.providers {
		selected = append(selected, provider)
	}
	sort.Slice(selected, func(i, j int) bool {
		return strings.ToLower(selected[i].Name()) < strings.ToLower(selected[j].Name())
	})

	groups := make([][]domain.ShortVideoItem, len(selected))
	succeeded := make([]bool, len(selected))
	sem := semaphore.NewWeighted(maxConcurrentProviders)
	var wg sync.WaitGroup
	for i, provider := range selected {
		wg.Add(1)
		go func(index int, current Provider) {
			defer wg.Done()

			name := strings.ToLower(strings.TrimSpace(current.Name()))
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			startedAt := time.Now()
			videos, err := current.FetchVideos(fetchCtx, productID, titleHint)
			metrics.ProviderRequestDuration.WithLabelValues(name).Observe(time.Since(startedAt).Seconds())
			if err != nil {
				status := "error"
				if kind, ok := domain.ProviderErrorKindOf(err); ok {
					status = string(kind)
				}
				metrics.ProviderRequestsTotal.WithLabelValues(name, status).Inc()
				slog.Warn("short-video fetch failed",
					slog.String("provider", name),
					slog.String("productId", productID),
					slog.String("error", err.Error()),
				)
				return
			}
			metrics.ProviderRequestsTotal.WithLabelValues(name, "ok").Inc()
			groups[index] = videos
			succeeded[index] = true
		}(i, provider)
	}
	wg.Wait()

	fetched := false
	for _, ok := range succeeded {
		if ok {
			fetched = true
			break
		}
	}
	return mergeVideos(productID, groups), fetched
}

// mergeVideos concatenates platform results, dropping duplicate
// (source, videoId) pairs. Same-video-on-two-platforms stays two entries;
// cross-platform identity merge is out of scope.
func mergeVideos(productID string, groups [][]domain.ShortVideoItem) []domain.ShortVideoItem {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	merged := make([]domain.ShortVideoItem, 0, total)
	seen := make(map[string]struct{}, total)
	for _, group := range groups {
		for _, video := range group {
			id := strings.TrimSpace(video.VideoID)
			if id == "" || strings.TrimSpace(video.Title) == "" {
				continue
			}
			key := string(video.Source) + ":" + id
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if video.ProductID == "" {
				video.ProductID = productID
			}
			merged = append(merged, video)
		}
	}
	return merged
}

// rankVideos orders by engagement: likes×10+views descending, creator
// ascending on ties for determinism.
func rankVideos(videos []domain.ShortVideoItem) {
	sort.SliceStable(videos, func(i, j int) bool {
		left, right := videos[i], videos[j]
		leftScore := left.Likes*10 + left.Views
		rightScore := right.Likes*10 + right.Views
		if leftScore != rightScore {
			return leftScore > rightScore
		}
		return left.Creator < right.Creator
	})
}

func (s *Service) cacheGet(key string) ([]domain.ShortVideoItem, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[key]
	if !ok || now.After(entry.expiresAt) {
		s.misses.Add(1)
		metrics.ShortVideoCacheMissesTotal.Inc()
		if ok {
			delete(s.cache, key)
		}
		return nil, false
	}
	s.hits.Add(1)
	metrics.ShortVideoCacheHitsTotal.Inc()
	return append([]domain.ShortVideoItem(nil), entry.videos...), true
}

func (s *Service) cachePut(key string, videos []domain.ShortVideoItem) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = &cachedVideos{
		videos:    append([]domain.ShortVideoItem(nil), videos...),
		cachedAt:  now,
		expiresAt: now.Add(s.ttl),
	}

	if len(s.cache) <= s.maxCache {
		return
	}
	oldestKey := ""
	var oldestAt time.Time
	for candidate, entry := range s.cache {
		if oldestKey == "" || entry.cachedAt.Before(oldestAt) {
			oldestKey = candidate
			oldestAt = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(s.cache, oldestKey)
	}
}

// persistVideos records fetched videos against the product. Best effort;
// requires a real product id.
func (s *Service) persistVideos(productID string, videos []domain.ShortVideoItem) {
	if s.store == nil || strings.TrimSpace(productID) == "" || len(videos) == 0 {
		return
	}
	records := make([]domain.VideoItem, 0, len(videos))
	for _, video := range videos {
		records = append(records, domain.VideoItem{
			ProductID: productID,
			VideoID:   string(video.Source) + ":" + video.VideoID,
			Title:     video.Title,
			URL:       video.URL,
			Creator:   video.Creator,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := s.store.UpsertVideos(ctx, records); err != nil {
		metrics.StoreWritesTotal.WithLabelValues("video", "error").Inc()
		slog.Warn("persisting videos failed", slog.String("productId", productID), slog.String("error", err.Error()))
		return
	}
	metrics.StoreWritesTotal.WithLabelValues("video", "ok").Inc()
}

// CacheStats exposes the process-wide hit/miss counters.
func (s *Service) CacheStats() domain.CacheStats {
	return domain.CacheStats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.providers) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, provider := range s.providers {
		info := provider.Info()
		if info.Name == "" {
			info.Name = strings.ToLower(strings.TrimSpace(provider.Name()))
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
