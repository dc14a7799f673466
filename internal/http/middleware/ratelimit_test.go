package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third immediate request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("different IPs must not contend")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(100, 1)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("bucket should be empty")
	}

	// Backdate the bucket instead of sleeping: one second at 100/sec refills
	// well past the burst cap.
	rl.mu.Lock()
	rl.buckets["1.2.3.4"].seen = rl.buckets["1.2.3.4"].seen.Add(-time.Second)
	rl.mu.Unlock()

	if !rl.Allow("1.2.3.4") {
		t.Fatal("bucket should have refilled")
	}
	rl.mu.Lock()
	tokens := rl.buckets["1.2.3.4"].tokens
	rl.mu.Unlock()
	if tokens > float64(rl.burst) {
		t.Fatalf("refill must cap at burst, got %f", tokens)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-Ip", "9.9.9.9")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("X-Real-Ip", "8.8.8.8")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", w.Code)
	}
}
