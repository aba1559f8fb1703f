package aggregate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shopscout/aggregatorservice/internal/domain"
	"shopscout/aggregatorservice/internal/store"
)

type fakeProvider struct {
	name  string
	items []domain.RawItem
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{Name: p.name, Label: p.name, Kind: "marketplace", Enabled: true}
}

func (p *fakeProvider) Fetch(ctx context.Context, _, _ string) ([]domain.RawItem, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.items, nil
}

func (p *fakeProvider) fetchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func rawItem(source domain.Source, id, title string, rating float64, reviews int) domain.RawItem {
	return domain.RawItem{
		Source:      source,
		SourceID:    id,
		Title:       title,
		URL:         "https://example.com/" + id,
		Rating:      rating,
		RatingScale: 5,
		ReviewCount: reviews,
	}
}

func TestSearchRejectsEmptyOrTooShortQuery(t *testing.T) {
	svc := NewService([]Provider{&fakeProvider{name: "amazon"}}, time.Second)
	for _, query := range []string{"   ", "", "x", " a "} {
		if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: query}); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("query %q: expected ErrInvalidQuery, got %v", query, err)
		}
	}
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "tv"}); errors.Is(err, ErrInvalidQuery) {
		t.Fatal("two-character query must be accepted")
	}
}

func TestSearchNoProviders(t *testing.T) {
	svc := NewService(nil, time.Second)
	if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "mouse"}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestSearchMergesAcrossProviders(t *testing.T) {
	amazon := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "A1", "Wireless Mouse", 4.5, 1200),
		rawItem(domain.SourceAmazon, "A2", "Wireless Mouse Pro", 4.0, 300),
	}}
	walmart := &fakeProvider{name: "walmart", items: []domain.RawItem{
		// Same native id as amazon's A1; different source keeps it distinct.
		rawItem(domain.SourceWalmart, "A1", "Wireless Mouse", 4.2, 90),
	}}
	svc := NewService([]Provider{amazon, walmart}, time.Second)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "Wireless  MOUSE"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if resp.Query != "wireless mouse" {
		t.Fatalf("query not normalized: %q", resp.Query)
	}
	if resp.TotalCount != 3 || len(resp.Items) != 3 {
		t.Fatalf("expected 3 merged items, got total=%d len=%d", resp.TotalCount, len(resp.Items))
	}
	if resp.Degraded {
		t.Fatal("all providers healthy, response must not be degraded")
	}
	seen := make(map[string]bool)
	for _, item := range resp.Items {
		if seen[item.ProductID()] {
			t.Fatalf("duplicate product id %s", item.ProductID())
		}
		seen[item.ProductID()] = true
	}
}

func TestSearchPartialFailure(t *testing.T) {
	healthy := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "A1", "Laptop Stand", 4.1, 50),
		rawItem(domain.SourceAmazon, "A2", "Laptop Stand XL", 4.3, 70),
		rawItem(domain.SourceAmazon, "A3", "Laptop Riser", 3.9, 10),
		rawItem(domain.SourceAmazon, "A4", "Laptop Tray", 4.0, 5),
		rawItem(domain.SourceAmazon, "A5", "Laptop Desk", 4.6, 900),
	}}
	failing := &fakeProvider{
		name: "walmart",
		err:  domain.NewProviderError(domain.SourceWalmart, domain.ProviderErrAuthFailure, errors.New("bad key")),
	}
	svc := NewService([]Provider{healthy, failing}, time.Second)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "laptop stand"})
	if err != nil {
		t.Fatalf("partial failure must not fail the search: %v", err)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	if resp.TotalCount != 5 {
		t.Fatalf("expected 5 items from the healthy provider, got %d", resp.TotalCount)
	}
	for _, status := range resp.Providers {
		switch status.Name {
		case "amazon":
			if !status.OK || status.Count != 5 {
				t.Fatalf("unexpected amazon status: %+v", status)
			}
		case "walmart":
			if status.OK || status.Error == "" {
				t.Fatalf("unexpected walmart status: %+v", status)
			}
		}
	}
}

func TestSearchProviderTimeoutDegrades(t *testing.T) {
	fast := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "A1", "Desk Lamp", 4.4, 210),
	}}
	slow := &fakeProvider{name: "walmart", delay: time.Second}
	svc := NewService([]Provider{fast, slow}, 50*time.Millisecond)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "desk lamp"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !resp.Degraded {
		t.Fatal("expected degraded response after provider timeout")
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected 1 item from the fast provider, got %d", resp.TotalCount)
	}
}

func TestSearchTruncatesAfterSort(t *testing.T) {
	items := make([]domain.RawItem, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, rawItem(domain.SourceAmazon, "A"+string(rune('a'+i)), "Headphones", float64(i%5)+0.5, i*10))
	}
	provider := &fakeProvider{name: "amazon", items: items}
	svc := NewService([]Provider{provider}, time.Second)

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "headphones", Limit: 10})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Items) != 10 {
		t.Fatalf("expected 10 items after truncation, got %d", len(resp.Items))
	}
	if resp.TotalCount != 30 {
		t.Fatalf("total count must be the pre-truncation size, got %d", resp.TotalCount)
	}
	for i := 1; i < len(resp.Items); i++ {
		if RelevanceScore(resp.Items[i]) > RelevanceScore(resp.Items[i-1]) {
			t.Fatalf("items not sorted by relevance at index %d", i)
		}
	}
}

func TestSearchSecondCallServedFromCache(t *testing.T) {
	provider := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "A1", "Keyboard", 4.0, 40),
	}}
	svc := NewService([]Provider{provider}, time.Second)

	if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "keyboard"}); err != nil {
		t.Fatalf("first search failed: %v", err)
	}
	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "  KEYBOARD "})
	if err != nil {
		t.Fatalf("second search failed: %v", err)
	}
	if provider.fetchCalls() != 1 {
		t.Fatalf("expected 1 provider fetch, got %d", provider.fetchCalls())
	}
	if !resp.Providers[0].Cached {
		t.Fatal("second call must be marked as cached")
	}
}

func TestSearchNoCacheBypassesCache(t *testing.T) {
	provider := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "A1", "Monitor", 4.0, 40),
	}}
	svc := NewService([]Provider{provider}, time.Second)

	for i := 0; i < 2; i++ {
		if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "monitor", NoCache: true}); err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
	}
	if provider.fetchCalls() != 2 {
		t.Fatalf("noCache must bypass the cache, got %d fetches", provider.fetchCalls())
	}
}

func TestSearchSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	provider := &fakeProvider{
		name:  "amazon",
		delay: 100 * time.Millisecond,
		items: []domain.RawItem{rawItem(domain.SourceAmazon, "A1", "Webcam", 4.2, 20)},
	}
	svc := NewService([]Provider{provider}, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "webcam"}); err != nil {
				t.Errorf("concurrent search failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.fetchCalls() != 1 {
		t.Fatalf("concurrent identical misses must collapse to one fetch, got %d", provider.fetchCalls())
	}
}

func TestProviderBlockedAfterConsecutiveFailures(t *testing.T) {
	failing := &fakeProvider{
		name: "walmart",
		err:  domain.NewProviderError(domain.SourceWalmart, domain.ProviderErrAuthFailure, errors.New("bad key")),
	}
	svc := NewService([]Provider{failing}, time.Second)

	for i := 0; i < 3; i++ {
		if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "tablet", NoCache: true}); err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
	}
	if failing.fetchCalls() != 3 {
		t.Fatalf("expected 3 fetches before the block, got %d", failing.fetchCalls())
	}

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "tablet", NoCache: true})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if failing.fetchCalls() != 3 {
		t.Fatalf("blocked provider must not be queried, got %d fetches", failing.fetchCalls())
	}
	if !strings.Contains(resp.Providers[0].Error, "temporarily unhealthy") {
		t.Fatalf("unexpected status error: %q", resp.Providers[0].Error)
	}

	diags := svc.ProviderDiagnostics()
	if len(diags) != 1 || diags[0].BlockedUntil == nil {
		t.Fatalf("diagnostics must report the block: %+v", diags)
	}
	if diags[0].ConsecutiveFailures != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", diags[0].ConsecutiveFailures)
	}
}

func TestGetProduct(t *testing.T) {
	provider := &fakeProvider{name: "amazon", items: []domain.RawItem{
		rawItem(domain.SourceAmazon, "B0TEST", "USB Hub", 4.3, 77),
	}}
	mem := store.NewMemory()
	svc := NewService([]Provider{provider}, time.Second, WithStore(mem))

	if _, err := svc.Search(context.Background(), domain.SearchRequest{Query: "usb hub"}); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	item, err := svc.GetProduct(context.Background(), "amazon:B0TEST")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if item.Title != "USB Hub" {
		t.Fatalf("unexpected product: %+v", item)
	}

	if _, err := svc.GetProduct(context.Background(), "no-separator"); !errors.Is(err, ErrInvalidProductID) {
		t.Fatalf("expected ErrInvalidProductID, got %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), "amazon:missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type reviewProvider struct {
	fakeProvider
	reviews []domain.ReviewItem
}

func (p *reviewProvider) FetchReviews(_ context.Context, _ string) ([]domain.ReviewItem, error) {
	return append([]domain.ReviewItem(nil), p.reviews...), nil
}

func TestProductReviewsIngestsOnce(t *testing.T) {
	provider := &reviewProvider{
		fakeProvider: fakeProvider{name: "amazon"},
		reviews: []domain.ReviewItem{
			{SourceReviewID: "r1", Author: "ana", Rating: 5},
			{SourceReviewID: "r2", Author: "ben", Rating: 3},
		},
	}
	mem := store.NewMemory()
	svc := NewService([]Provider{provider}, time.Second, WithStore(mem))

	for i := 0; i < 2; i++ {
		reviews, err := svc.ProductReviews(context.Background(), "amazon:B0TEST")
		if err != nil {
			t.Fatalf("reviews call %d failed: %v", i, err)
		}
		if len(reviews) != 2 {
			t.Fatalf("call %d: expected 2 reviews, got %d", i, len(reviews))
		}
	}
}
