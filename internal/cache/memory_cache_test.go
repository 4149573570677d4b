package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	type state struct{ Level int }
	if err := c.SetJSON(ctx, "k", state{Level: 2}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got state
	hit, err := c.GetJSON(ctx, "k", &got)
	if err != nil || !hit || got.Level != 2 {
		t.Fatalf("GetJSON = %v, %v, %+v", hit, err, got)
	}

	now = now.Add(2 * time.Minute)
	if hit, _ := c.GetJSON(ctx, "k", &got); hit {
		t.Fatal("expected expired entry to miss")
	}
}

func TestMemoryCacheDel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	_ = c.SetJSON(ctx, "a", 1, 0)
	_ = c.SetJSON(ctx, "b", 2, 0)
	if err := c.Del(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	var v int
	if hit, _ := c.GetJSON(ctx, "a", &v); hit {
		t.Fatal("a should be deleted")
	}
	if hit, _ := c.GetJSON(ctx, "b", &v); !hit || v != 2 {
		t.Fatalf("b = %v, hit %v", v, hit)
	}
}
