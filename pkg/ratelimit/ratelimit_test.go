package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	limiter := NewLimiter(1, 2)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if limiter.Allow("a") {
		t.Error("third request should be limited")
	}
	if !limiter.Allow("b") {
		t.Error("other clients have their own bucket")
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(1, 1)
	handler := limiter.Middleware(ClientKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/tools", nil)
		req.RemoteAddr = "10.0.0.1:5000" + string(rune('0'+i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestCleanupOldLimiters(t *testing.T) {
	limiter := NewLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(time.Hour)
	limiter.Allow("new")

	if removed := limiter.CleanupOldLimiters(30 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := limiter.limiters["new"]; !ok {
		t.Error("recent limiter removed")
	}
}
