package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "rl:"}

	ctx := context.Background()
	window := 2 * time.Second
	const max = 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "checkout", window, max)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should pass", i)
		}
		if want := max - (i + 1); remaining != want {
			t.Fatalf("remaining after request %d: got %d want %d", i, remaining, want)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "checkout", window, max)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if allowed {
		t.Fatal("request over the limit should be rejected")
	}
	if remaining != 0 {
		t.Fatalf("remaining over limit: got %d want 0", remaining)
	}

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "checkout", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("request after the window elapsed should pass")
	}
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "any", time.Second, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !allowed || remaining != 3 {
		t.Fatalf("nil client should fail open: allowed=%v remaining=%d", allowed, remaining)
	}
}
