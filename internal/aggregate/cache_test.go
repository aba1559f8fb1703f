package aggregate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"shopscout/aggregatorservice/internal/domain"
)

func TestProviderCacheKeyNormalizedEquivalence(t *testing.T) {
	left := providerCacheKey(NormalizeQuery("Wireless  Mouse"), "", "amazon")
	right := providerCacheKey(NormalizeQuery("wireless mouse"), "", "AMAZON")
	if left != right {
		t.Fatalf("keys must match: %q vs %q", left, right)
	}

	withZip := providerCacheKey("wireless mouse", "94103", "amazon")
	if withZip == left {
		t.Fatal("zipcode must qualify the key")
	}
	if other := providerCacheKey("wireless mouse", "", "walmart"); other == left {
		t.Fatal("provider name must qualify the key")
	}
}

func TestCachePutGetRoundtrip(t *testing.T) {
	svc := NewService(nil, time.Second)
	items := []domain.CanonicalItem{
		{Source: domain.SourceAmazon, SourceID: "A1", Title: "Mouse", Availability: "in_stock"},
	}

	key := providerCacheKey("mouse", "", "amazon")
	if _, ok := svc.cacheGet(context.Background(), key); ok {
		t.Fatal("empty cache must miss")
	}

	svc.cachePut(context.Background(), key, items)
	got, ok := svc.cacheGet(context.Background(), key)
	if !ok || len(got) != 1 || got[0].Title != "Mouse" {
		t.Fatalf("expected cached items back, got ok=%v items=%+v", ok, got)
	}
}

func TestCacheExpiryReadsAsMiss(t *testing.T) {
	svc := NewService(nil, time.Second)
	key := providerCacheKey("mouse", "", "amazon")
	svc.cachePut(context.Background(), key, []domain.CanonicalItem{{Source: domain.SourceAmazon, SourceID: "A1", Title: "Mouse"}})

	svc.cacheMu.Lock()
	svc.cache[key].expiresAt = time.Now().Add(-time.Minute)
	svc.cacheMu.Unlock()

	if _, ok := svc.cacheGet(context.Background(), key); ok {
		t.Fatal("expired entry must read as a miss")
	}

	// The expired row is removed lazily on read.
	svc.cacheMu.Lock()
	_, present := svc.cache[key]
	svc.cacheMu.Unlock()
	if present {
		t.Fatal("expired entry must be deleted on read")
	}
}

func TestCacheUpsertOverwrites(t *testing.T) {
	svc := NewService(nil, time.Second)
	key := providerCacheKey("mouse", "", "amazon")

	svc.cachePut(context.Background(), key, []domain.CanonicalItem{{Source: domain.SourceAmazon, SourceID: "A1", Title: "Old"}})
	svc.cachePut(context.Background(), key, []domain.CanonicalItem{{Source: domain.SourceAmazon, SourceID: "A1", Title: "New"}})

	got, ok := svc.cacheGet(context.Background(), key)
	if !ok || len(got) != 1 {
		t.Fatalf("expected exactly one row after upsert, got ok=%v len=%d", ok, len(got))
	}
	if got[0].Title != "New" {
		t.Fatalf("colliding write must overwrite, got %q", got[0].Title)
	}
}

type failingRemoteCache struct {
	getErr error
	setErr error
	gets   int
	sets   int
}

func (c *failingRemoteCache) Get(context.Context, string) ([]domain.CanonicalItem, bool, error) {
	c.gets++
	return nil, false, c.getErr
}

func (c *failingRemoteCache) Set(context.Context, string, []domain.CanonicalItem, time.Duration) error {
	c.sets++
	return c.setErr
}

func TestCacheRedisOutageFallsBackToMemory(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	remote := &failingRemoteCache{
		getErr: errors.New("dial tcp: connection refused"),
		setErr: errors.New("dial tcp: connection refused"),
	}
	svc := NewService(nil, time.Second, WithRedisCache(remote))
	key := providerCacheKey("mouse", "", "amazon")

	svc.cachePut(context.Background(), key, []domain.CanonicalItem{
		{Source: domain.SourceAmazon, SourceID: "A1", Title: "Mouse"},
	})
	got, ok := svc.cacheGet(context.Background(), key)
	if !ok || len(got) != 1 {
		t.Fatalf("redis outage must fall back to the in-memory tier, got ok=%v len=%d", ok, len(got))
	}
	if remote.gets == 0 || remote.sets == 0 {
		t.Fatalf("remote tier must still be consulted, gets=%d sets=%d", remote.gets, remote.sets)
	}

	output := logs.String()
	if !strings.Contains(output, "redis cache write failed") {
		t.Fatal("redis write failure must be logged")
	}
	if !strings.Contains(output, "redis cache read failed") {
		t.Fatal("redis read failure must be logged")
	}
}

func TestCacheTrimsOldestBeyondCapacity(t *testing.T) {
	svc := NewService(nil, time.Second)
	svc.cacheMax = 3

	base := time.Now()
	for i, key := range []string{"k0", "k1", "k2", "k3"} {
		svc.cachePutMemory(key, nil, base.Add(time.Duration(i)*time.Second))
	}

	svc.cacheMu.Lock()
	defer svc.cacheMu.Unlock()
	if len(svc.cache) != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", len(svc.cache))
	}
	if _, present := svc.cache["k0"]; present {
		t.Fatal("oldest entry must be evicted first")
	}
}
