// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, time.Minute)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients keep their own budget")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, time.Minute)
	limited := 0
	rl.OnLimited = func(*http.Request) { limited++ }

	h := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if limited != 1 {
		t.Errorf("OnLimited called %d times, want 1", limited)
	}
}

func TestRateLimiter_ForwardedHeaders(t *testing.T) {
	tests := []struct {
		name        string
		trustProxy  bool
		wantLimited int
	}{
		// One socket rotating X-Forwarded-For is still one client
		{"untrusted", false, 18},
		// Behind a proxy each forwarded address is its own client
		{"trusted proxy", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(0.001, 2, time.Minute)
			rl.TrustProxy = tt.trustProxy
			h := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			limited := 0
			for i := 0; i < 20; i++ {
				req := httptest.NewRequest("POST", "/auth/login", nil)
				req.RemoteAddr = "203.0.113.7:40000"
				req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
				w := httptest.NewRecorder()
				h(w, req)
				if w.Code == http.StatusTooManyRequests {
					limited++
				}
			}

			if limited != tt.wantLimited {
				t.Errorf("limited = %d, want %d", limited, tt.wantLimited)
			}
		})
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Millisecond)
	rl.Allow("stale")
	time.Sleep(5 * time.Millisecond)
	rl.Cleanup()

	if rl.Len() != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", rl.Len())
	}
}

func TestRateLimiter_StartCleanupStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(1, 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	rl.StartCleanup(ctx, time.Millisecond)
	rl.Allow("x")

	deadline := time.Now().Add(time.Second)
	for rl.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	time.Sleep(10 * time.Millisecond)

	if rl.Len() != 0 {
		t.Error("background cleanup did not drop the idle limiter")
	}
}
