package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := range 3 {
		if !rl.allow() {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	if rl.allow() {
		t.Fatal("fourth message in the window should be rejected")
	}

	now = now.Add(time.Minute)
	if !rl.allow() {
		t.Fatal("new window should allow messages again")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	for range 1000 {
		if !rl.allow() {
			t.Fatal("zero limit should never reject")
		}
	}

	var nilLimiter *rateLimiter
	if !nilLimiter.allow() {
		t.Fatal("nil limiter should allow")
	}
}
