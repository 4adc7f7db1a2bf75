package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterEnforcesQuota(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test", 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be within quota", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("fourth request should exceed quota")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("independent key should have its own quota")
	}
}

func TestFixedWindowLimiterResetsAfterWindow(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test", 1, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !limiter.Allow("k") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow("k") {
		t.Fatalf("second request should be limited")
	}
	redis.FastForward(2 * time.Second)
	if !limiter.Allow("k") {
		t.Fatalf("request after window reset should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	redis.Close()
	if limiter.Allow("k") {
		t.Fatalf("expected fail-closed when redis is down")
	}
}
