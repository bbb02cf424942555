package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenLifecycle(t *testing.T) {
	tm := NewTokenManager()

	token, err := tm.GenerateToken("producer-1", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if err := tm.ValidateToken("producer-1", token); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := tm.ValidateToken("producer-1", "wrong"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if err := tm.ValidateToken("unknown", token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for unknown producer, got %v", err)
	}

	tm.RevokeToken("producer-1")
	if err := tm.ValidateToken("producer-1", token); err != ErrInvalidToken {
		t.Errorf("revoked token should be invalid, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	tm := NewTokenManager()

	token, err := tm.GenerateToken("producer-1", -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if err := tm.ValidateToken("producer-1", token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}

	tm.CleanupExpiredTokens()
	if err := tm.ValidateToken("producer-1", token); err != ErrInvalidToken {
		t.Errorf("cleaned-up token should be gone, got %v", err)
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("abc", "abc") {
		t.Error("equal strings should compare equal")
	}
	if SecureCompare("abc", "abd") {
		t.Error("different strings should not compare equal")
	}
	if SecureCompare("abc", "abcd") {
		t.Error("different lengths should not compare equal")
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	handler := APIKeyMiddleware("secret", "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/producers", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/producers", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("correct key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/producers", nil)
		req.Header.Set("Authorization", "Bearer secret")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("exempt path", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("health should be exempt, got %d", w.Code)
		}
	})
}
