package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowIsPerKey(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should allow two requests")
	}
	if l.Allow("a") {
		t.Error("third request should be throttled")
	}
	if !l.Allow("b") {
		t.Error("a different key should have its own bucket")
	}
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(1, 1)
	handler := l.Middleware(IPKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request should be throttled, got %d", w.Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:4444"
	if got := IPKeyFunc(req); got != "192.168.1.5" {
		t.Errorf("expected remote host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := IPKeyFunc(req); got != "203.0.113.9" {
		t.Errorf("expected first forwarded address, got %q", got)
	}
}
