package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_HitCountsWithinWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, "iam:rl")

	ctx := context.Background()
	window := time.Minute

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := repo.Hit(ctx, "login:203.0.113.7", window)
		if err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if ttl <= 0 || ttl > window {
			t.Fatalf("expected ttl within (0, %v], got %v", window, ttl)
		}
	}

	server.FastForward(window + time.Second)

	count, _, err := repo.Hit(ctx, "login:203.0.113.7", window)
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter to reset after window, got %d", count)
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")

	if _, _, err := repo.Hit(context.Background(), "k", 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}
