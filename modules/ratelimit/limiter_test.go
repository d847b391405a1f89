package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestClient returns a Redis client, skipping when Redis is not available.
func setupTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("test:ratelimit:%d:", time.Now().UnixNano())
	defer client.Del(ctx, prefix+"client", prefix+"client:counter")

	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 5, WindowSize: time.Minute}, prefix)

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
		if result.Remaining != 5-i-1 {
			t.Errorf("Expected %d remaining, got %d", 5-i-1, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, "client")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Allowed {
		t.Error("6th request should be denied")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 1m]", result.RetryAfter)
	}
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("test:ratelimit:slide:%d:", time.Now().UnixNano())
	defer client.Del(ctx, prefix+"client", prefix+"client:counter")

	now := time.Now()
	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 2, WindowSize: time.Minute}, prefix)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if result, err := limiter.Allow(ctx, "client"); err != nil || !result.Allowed {
			t.Fatalf("Request %d: allowed=%v err=%v", i+1, result != nil && result.Allowed, err)
		}
	}
	if result, _ := limiter.Allow(ctx, "client"); result.Allowed {
		t.Fatal("3rd request inside the window should be denied")
	}

	now = now.Add(61 * time.Second)
	result, err := limiter.Allow(ctx, "client")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("request after the window slid should be allowed")
	}
}

func TestSlidingWindowLimiter_KeysAreIndependent(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("test:ratelimit:keys:%d:", time.Now().UnixNano())
	defer client.Del(ctx, prefix+"a", prefix+"a:counter", prefix+"b", prefix+"b:counter")

	limiter := NewSlidingWindowLimiter(client, Config{RequestsPerWindow: 1, WindowSize: time.Minute}, prefix)

	if result, _ := limiter.Allow(ctx, "a"); !result.Allowed {
		t.Fatal("first request for a should be allowed")
	}
	if result, _ := limiter.Allow(ctx, "a"); result.Allowed {
		t.Error("second request for a should be denied")
	}
	if result, _ := limiter.Allow(ctx, "b"); !result.Allowed {
		t.Error("first request for b should be allowed")
	}
}
