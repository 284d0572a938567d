package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFilterOptionsCache(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewFilterOptionsCache(time.Minute)
	cache.now = func() time.Time { return now }

	loads := 0
	load := func(context.Context) (FilterOptions, error) {
		loads++
		return FilterOptions{Campuses: []string{"서울"}, ClassNames: []string{"1반"}}, nil
	}

	for i := 0; i < 3; i++ {
		opts, err := cache.GetOrLoad(context.Background(), load)
		if err != nil || len(opts.Campuses) != 1 {
			t.Fatalf("GetOrLoad: %+v, %v", opts, err)
		}
	}
	if loads != 1 {
		t.Fatalf("expected a single load while fresh, got %d", loads)
	}

	now = now.Add(2 * time.Minute)
	_, _ = cache.GetOrLoad(context.Background(), load)
	if loads != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", loads)
	}

	cache.Invalidate()
	_, _ = cache.GetOrLoad(context.Background(), load)
	if loads != 3 {
		t.Fatalf("expected reload after invalidation, got %d loads", loads)
	}
}

func TestFilterOptionsCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewFilterOptionsCache(0)
	boom := errors.New("db down")

	if _, err := cache.GetOrLoad(context.Background(), func(context.Context) (FilterOptions, error) {
		return FilterOptions{}, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}

	called := false
	_, err := cache.GetOrLoad(context.Background(), func(context.Context) (FilterOptions, error) {
		called = true
		return FilterOptions{}, nil
	})
	if err != nil || !called {
		t.Fatalf("failed load must not be cached (called=%v, err=%v)", called, err)
	}
}
