package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	return limiter, srv
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	limiter.now = func() time.Time { return time.Unix(600, 0) }
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "login:ip-1"); !ok {
		t.Fatalf("first request should pass")
	}
	if ok, _ := limiter.Allow(ctx, "login:ip-1"); !ok {
		t.Fatalf("second request should pass")
	}
	ok, retryAfter := limiter.Allow(ctx, "login:ip-1")
	if ok {
		t.Fatalf("third request should be blocked")
	}
	if retryAfter != time.Minute {
		t.Fatalf("retry after = %v, want 1m at window start", retryAfter)
	}
	if ok, _ := limiter.Allow(ctx, "login:ip-2"); !ok {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	limiter, srv := newTestLimiter(t, 1)
	srv.Close()
	if ok, _ := limiter.Allow(context.Background(), "ip-1"); ok {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterValidatesArguments(t *testing.T) {
	if limiter, err := NewRedisFixedWindowLimiter(nil, "", 1, time.Second); err == nil || limiter != nil {
		t.Fatalf("expected constructor error for missing redis client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewRedisFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected constructor error for zero limit")
	}
}
