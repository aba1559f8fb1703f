package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"shopscout/aggregatorservice/internal/domain"
	"shopscout/aggregatorservice/internal/metrics"
)

// maxConcurrentProviders limits the number of provider queries that can run
// simultaneously, so a wide provider set cannot overwhelm the process or the
// remote services.
const maxConcurrentProviders = 8

const (
	defaultResultLimit = 20
	maxResultLimit     = 100
	minQueryLength     = 2
)

// Search runs one aggregated query: per-provider cache lookups, concurrent
// fan-out for the misses, normalization, merge, relevance sort and
// truncation. A failing provider contributes zero items and flags the
// response as degraded; it never delays or aborts its siblings.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error) {
	query := NormalizeQuery(request.Query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return domain.SearchResponse{}, ErrInvalidQuery
	}

	selected := s.selectedProviders()
	if len(selected) == 0 {
		return domain.SearchResponse{}, ErrNoProviders
	}

	limit := request.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	if limit > maxResultLimit {
		limit = maxResultLimit
	}

	startedAt := time.Now()
	statuses := make([]domain.ProviderStatus, len(selected))
	groups := make([][]domain.CanonicalItem, len(selected))

	sem := semaphore.NewWeighted(maxConcurrentProviders)
	var wg sync.WaitGroup
	for i, provider := range selected {
		wg.Add(1)
		go func(index int, current Provider) {
			defer wg.Done()

			name := strings.ToLower(strings.TrimSpace(current.Name()))
			if err := sem.Acquire(ctx, 1); err != nil {
				statuses[index] = domain.ProviderStatus{Name: name, OK: false, Error: "context cancelled"}
				return
			}
			defer sem.Release(1)

			items, cached, err := s.providerItems(ctx, current, query, request)
			status := domain.ProviderStatus{
				Name:   name,
				OK:     err == nil,
				Count:  len(items),
				Cached: cached,
			}
			if err != nil {
				status.Error = err.Error()
				slog.Warn("provider query failed",
					slog.String("provider", name),
					slog.String("query", query),
					slog.String("error", err.Error()),
				)
			}
			statuses[index] = status
			groups[index] = items
		}(i, provider)
	}
	wg.Wait()

	merged := MergeItems(groups...)
	SortByRelevance(merged)
	total := len(merged)

	s.persistItems(merged)

	page := merged
	if len(page) > limit {
		page = page[:limit]
	}

	degraded := false
	for _, status := range statuses {
		if !status.OK {
			degraded = true
			break
		}
	}

	return domain.SearchResponse{
		Query:      query,
		Items:      page,
		Providers:  statuses,
		TotalCount: total,
		Degraded:   degraded,
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
	}, nil
}

// providerItems returns one provider's normalized items for the query,
// serving from cache when possible. Concurrent misses for the same key
// collapse to a single in-flight fetch; later callers wait on and share the
// first caller's result instead of multiplying outbound calls.
func (s *Service) providerItems(ctx context.Context, provider Provider, query string, request domain.SearchRequest) ([]domain.CanonicalItem, bool, error) {
	name := strings.ToLower(strings.TrimSpace(provider.Name()))
	key := providerCacheKey(query, request.Zipcode, name)
	useCache := !s.cacheDisabled && !request.NoCache

	if useCache {
		if items, ok := s.cacheGet(ctx, key); ok {
			return items, true, nil
		}
	}

	value, err, shared := s.flight.Do(key, func() (any, error) {
		// A waiter that lost the race may have populated the cache while
		// this call was queued behind the flight lock.
		if useCache {
			if items, ok := s.cacheGet(ctx, key); ok {
				return items, nil
			}
		}

		now := time.Now()
		if blocked, until, lastErr := s.isProviderBlocked(name, now); blocked {
			return nil, fmt.Errorf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr)
		}
		if err := s.waitProviderRateLimit(ctx, name); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		fetchStartedAt := time.Now()
		var raw []domain.RawItem
		fetchErr := RetryWithBackoff(fetchCtx, DefaultRetryConfig(), func() error {
			var err error
			raw, err = provider.Fetch(fetchCtx, query, request.Zipcode)
			return err
		})
		s.recordProviderResult(name, fetchErr, time.Since(fetchStartedAt), time.Now())
		if fetchErr != nil {
			return nil, fetchErr
		}

		items := NormalizeItems(raw)
		if useCache {
			s.cachePut(ctx, key, items)
		}
		return items, nil
	})
	if err != nil {
		return nil, false, err
	}
	items, ok := value.([]domain.CanonicalItem)
	if !ok {
		return nil, false, nil
	}
	// shared means this caller rode an in-flight fetch started by another;
	// from the caller's perspective that is equivalent to a cache hit.
	return items, shared, nil
}

// persistItems writes the merged set to the store so product lookups can be
// served without re-triggering a live aggregation. Best effort: a store
// outage never fails the query.
func (s *Service) persistItems(items []domain.CanonicalItem) {
	if s.store == nil || len(items) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.UpsertItems(ctx, items); err != nil {
		metrics.StoreWritesTotal.WithLabelValues("product", "error").Inc()
		slog.Warn("persisting merged items failed", slog.Int("count", len(items)), slog.String("error", err.Error()))
		return
	}
	metrics.StoreWritesTotal.WithLabelValues("product", "ok").Inc()
}

// GetProduct serves a previously persisted canonical record by its composite
// id. It never triggers a live aggregation.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.CanonicalItem, error) {
	source, sourceID, ok := domain.SplitProductID(id)
	if !ok {
		return domain.CanonicalItem{}, ErrInvalidProductID
	}
	if s.store == nil {
		return domain.CanonicalItem{}, domain.ErrNotFound
	}
	return s.store.GetProduct(ctx, source, sourceID)
}

// ProductReviews returns the persisted reviews for a product, first pulling
// fresh ones from the owning provider when it supports review listing. The
// (productId, source, sourceReviewId) upsert keeps repeated fetches from
// re-ingesting the same review.
func (s *Service) ProductReviews(ctx context.Context, id string) ([]domain.ReviewItem, error) {
	source, sourceID, ok := domain.SplitProductID(id)
	if !ok {
		return nil, ErrInvalidProductID
	}

	var fetched []domain.ReviewItem
	if provider := s.providerForSource(source); provider != nil {
		if fetcher, ok := provider.(ReviewFetcher); ok {
			fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
			reviews, err := fetcher.FetchReviews(fetchCtx, sourceID)
			cancel()
			if err != nil {
				slog.Warn("review fetch failed",
					slog.String("provider", string(source)),
					slog.String("productId", id),
					slog.String("error", err.Error()),
				)
			} else {
				for i := range reviews {
					reviews[i].ProductID = id
					reviews[i].Source = source
				}
				fetched = reviews
			}
		}
	}

	if s.store == nil {
		return fetched, nil
	}
	if len(fetched) > 0 {
		inserted, err := s.store.UpsertReviews(ctx, fetched)
		if err != nil {
			metrics.StoreWritesTotal.WithLabelValues("review", "error").Inc()
			slog.Warn("persisting reviews failed", slog.String("productId", id), slog.String("error", err.Error()))
		} else {
			metrics.StoreWritesTotal.WithLabelValues("review", "ok").Inc()
			if inserted > 0 {
				slog.Debug("reviews ingested", slog.String("productId", id), slog.Int("new", inserted))
			}
		}
	}
	return s.store.ListReviews(ctx, id)
}
