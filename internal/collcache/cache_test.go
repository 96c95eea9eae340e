package collcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCache(t *testing.T) {
	cache, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "uploads"); ok {
		t.Fatal("hit on an empty cache")
	}

	cache.Put(ctx, "uploads", "col_uploads1")
	id, ok := cache.Get(ctx, "uploads")
	if !ok || id != "col_uploads1" {
		t.Fatalf("Get = %q, %v", id, ok)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cache.ttl = 10 * time.Millisecond
	ctx := context.Background()

	cache.Put(ctx, "draws", "col_draws01")
	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get(ctx, "draws"); ok {
		t.Fatal("hit on an expired entry")
	}
}

func TestRedisCache(t *testing.T) {
	mini := miniredis.RunT(t)
	cache := NewWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	defer cache.Close()
	ctx := context.Background()

	cache.Put(ctx, "ebooks", "col_ebooks01")
	id, ok := cache.Get(ctx, "ebooks")
	if !ok || id != "col_ebooks01" {
		t.Fatalf("Get = %q, %v", id, ok)
	}

	if got := mini.Keys(); len(got) != 1 || got[0] != "collection:ebooks" {
		t.Fatalf("redis keys = %v, want the prefixed key", got)
	}

	mini.FastForward(DefaultTTL + time.Minute)
	if _, ok := cache.Get(ctx, "ebooks"); ok {
		t.Fatal("hit after the TTL elapsed")
	}
}

func TestRedisErrorsDegradeToMiss(t *testing.T) {
	mini := miniredis.RunT(t)
	cache := NewWithClient(redis.NewClient(&redis.Options{Addr: mini.Addr()}))
	ctx := context.Background()

	cache.Put(ctx, "uploads", "col_uploads1")
	mini.Close()

	if _, ok := cache.Get(ctx, "uploads"); ok {
		t.Fatal("hit while the backend is down")
	}
	// Writes are best-effort while down.
	cache.Put(ctx, "uploads", "col_uploads1")
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not a url"); err == nil {
		t.Fatal("expected an error for a malformed redis url")
	}
}
