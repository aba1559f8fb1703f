package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"shopscout/aggregatorservice/internal/domain"
	"shopscout/aggregatorservice/internal/metrics"
)

const (
	defaultCacheTTL        = 6 * time.Hour
	defaultCacheMaxEntries = 1000
	defaultProviderRPS     = 5
	defaultProviderBurst   = 5
)

// cachedItems is one cache row: the normalized items one provider returned
// for one query key. A row past expiresAt reads as a miss; it is removed
// lazily as housekeeping.
type cachedItems struct {
	items     []domain.CanonicalItem
	cachedAt  time.Time
	expiresAt time.Time
}

// providerCacheKey builds the (normalizedQuery, source) cache key. The
// zipcode qualifier participates when present because providers localize
// availability and pricing by it.
func providerCacheKey(query, zipcode, providerName string) string {
	parts := []string{
		"q=" + query,
		"s=" + strings.ToLower(strings.TrimSpace(providerName)),
	}
	if zip := strings.TrimSpace(zipcode); zip != "" {
		parts = append(parts, "zip="+zip)
	}
	return strings.Join(parts, "|")
}

// cacheGet consults Redis first when configured, then the in-memory map.
// A Redis error is logged and degrades to the in-memory path; the cache
// being down must never fail a query.
func (s *Service) cacheGet(ctx context.Context, key string) ([]domain.CanonicalItem, bool) {
	now := time.Now()
	if s.redisCache != nil {
		items, found, err := s.redisCache.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("redis cache read failed, falling back to memory",
				slog.String("key", key), slog.String("error", err.Error()))
		case found:
			metrics.SearchCacheHitsTotal.Inc()
			s.cachePutMemory(key, items, now)
			return items, true
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.SearchCacheMissesTotal.Inc()
		return nil, false
	}
	if now.After(entry.expiresAt) {
		metrics.SearchCacheMissesTotal.Inc()
		delete(s.cache, key)
		return nil, false
	}
	metrics.SearchCacheHitsTotal.Inc()
	return append([]domain.CanonicalItem(nil), entry.items...), true
}

// cachePut upserts the row for key: a colliding write overwrites the
// previous payload and restarts the TTL window.
func (s *Service) cachePut(ctx context.Context, key string, items []domain.CanonicalItem) {
	if s.redisCache != nil {
		if err := s.redisCache.Set(ctx, key, items, s.cacheTTL); err != nil {
			slog.Warn("redis cache write failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	s.cachePutMemory(key, items, time.Now())
}

func (s *Service) cachePutMemory(key string, items []domain.CanonicalItem, now time.Time) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedItems{
		items:     append([]domain.CanonicalItem(nil), items...),
		cachedAt:  now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) trimCacheLocked(now time.Time) {
	for key, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, key)
		}
	}

	maxEntries := s.cacheMax
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedItems
	}
	entries := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		entries = append(entries, pair{key: key, entry: entry})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.cachedAt.Before(entries[j].entry.cachedAt)
	})
	for i := 0; i < len(entries)-maxEntries; i++ {
		delete(s.cache, entries[i].key)
	}
}
