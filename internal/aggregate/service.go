package aggregate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"shopscout/aggregatorservice/internal/domain"
)

var (
	ErrInvalidQuery     = errors.New("query is missing or too short")
	ErrNoProviders      = errors.New("no providers configured")
	ErrInvalidProductID = errors.New("invalid product id")
)

// Provider fetches raw candidate items for a normalized query from one
// external source. Implementations classify failures as *domain.ProviderError
// and never cache or retry on their own; both are the aggregator's job.
// An empty result list is success, not an error.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Fetch(ctx context.Context, query, zipcode string) ([]domain.RawItem, error)
}

// ReviewFetcher is an optional interface for providers that can list reviews
// for one of their own items.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, sourceID string) ([]domain.ReviewItem, error)
}

// RemoteCache is the shared cache tier consulted before the in-memory map.
// *RedisCacheBackend is the production implementation.
type RemoteCache interface {
	Get(ctx context.Context, key string) ([]domain.CanonicalItem, bool, error)
	Set(ctx context.Context, key string, items []domain.CanonicalItem, ttl time.Duration) error
}

// Store persists merged canonical records and their reviews. Implementations
// uphold the identity invariants: one row per (source, sourceId) product and
// per (productId, source, sourceReviewId) review.
type Store interface {
	UpsertItems(ctx context.Context, items []domain.CanonicalItem) error
	GetProduct(ctx context.Context, source domain.Source, sourceID string) (domain.CanonicalItem, error)
	UpsertReviews(ctx context.Context, reviews []domain.ReviewItem) (int, error)
	ListReviews(ctx context.Context, productID string) ([]domain.ReviewItem, error)
}

type Service struct {
	providers     map[string]Provider
	timeout       time.Duration
	cacheDisabled bool
	cacheTTL      time.Duration
	cacheMax      int

	cacheMu sync.Mutex
	cache   map[string]*cachedItems
	flight  singleflight.Group

	redisCache RemoteCache
	store      Store

	providerRPS   float64
	providerBurst int
	limiterMu     sync.Mutex
	limiters      map[string]*rate.Limiter

	healthMu sync.Mutex
	health   map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithRedisCache(backend RemoteCache) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithStore(store Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithProviderRate sets the per-provider outbound pacing. Zero rps disables
// pacing.
func WithProviderRate(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		s.providerRPS = rps
		if burst > 0 {
			s.providerBurst = burst
		}
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
		providers:     registry,
		timeout:       timeout,
		cacheTTL:      defaultCacheTTL,
		cacheMax:      defaultCacheMaxEntries,
		cache:         make(map[string]*cachedItems),
		providerRPS:   defaultProviderRPS,
		providerBurst: defaultProviderBurst,
		limiters:      make(map[string]*rate.Limiter),
		health:        make(map[string]*providerHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// selectedProviders returns all configured providers in deterministic order.
func (s *Service) selectedProviders() []Provider {
	if len(s.providers) == 0 {
		return nil
	}
	selected := make([]Provider, 0, len(s.providers))
	for _, provider := range s.providers {
		selected = append(selected, provider)
	}
	sort.Slice(selected, func(i, j int) bool {
		return strings.ToLower(selected[i].Name()) < strings.ToLower(selected[j].Name())
	})
	return selected
}

func (s *Service) providerForSource(source domain.Source) Provider {
	return s.providers[strings.ToLower(strings.TrimSpace(string(source)))]
}

func (s *Service) Providers() []domain.ProviderInfo {
	selected := s.selectedProviders()
	if len(selected) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(selected))
	for _, provider := range selected {
		info := provider.Info()
		if info.Name == "" {
			info.Name = strings.ToLower(strings.TrimSpace(provider.Name()))
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	return items
}

func (s *Service) waitProviderRateLimit(ctx context.Context, name string) error {
	if s.providerRPS <= 0 {
		return nil
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[name]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.providerRPS), s.providerBurst)
		s.limiters[name] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Wait(ctx)
}
