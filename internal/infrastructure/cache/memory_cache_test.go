package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "block:1", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get(ctx, "block:1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "v" {
		t.Fatalf("Get() = %q, %v", value, found)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("Get() found = true for absent key")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "block:1", "t", 30*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	current = base.Add(29 * time.Second)
	if _, found, _ := c.Get(ctx, "block:1"); !found {
		t.Fatalf("Get() expired before ttl")
	}

	current = base.Add(30 * time.Second)
	if _, found, _ := c.Get(ctx, "block:1"); found {
		t.Fatalf("Get() returned entry past ttl")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "alert-debounce:7", "1", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Delete(ctx, "alert-debounce:7"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, "alert-debounce:7"); found {
		t.Fatalf("Get() found deleted key")
	}
}

func TestMemoryCacheRejectsEmptyKey(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Set(context.Background(), "  ", "v", 0); err == nil {
		t.Fatalf("Set() expected error for blank key")
	}
}
