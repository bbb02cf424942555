package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenManager issues and validates per-producer authentication tokens.
type TokenManager struct {
	tokens map[string]*TokenInfo
	mu     sync.RWMutex
}

// TokenInfo contains token metadata. Only the bcrypt hash is stored.
type TokenInfo struct {
	Hash       string
	ProducerID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager() *TokenManager {
	return &TokenManager{
		tokens: make(map[string]*TokenInfo),
	}
}

// GenerateToken issues a token for a producer, valid for duration.
func (tm *TokenManager) GenerateToken(producerID string, duration time.Duration) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tokens[producerID] = &TokenInfo{
		Hash:       string(hash),
		ProducerID: producerID,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(duration),
	}
	return token, nil
}

// ValidateToken checks a producer's token.
func (tm *TokenManager) ValidateToken(producerID, token string) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	info, ok := tm.tokens[producerID]
	if !ok {
		return ErrInvalidToken
	}
	if time.Now().After(info.ExpiresAt) {
		return ErrTokenExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(info.Hash), []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// RevokeToken removes a producer's token.
func (tm *TokenManager) RevokeToken(producerID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.tokens, producerID)
}

// CleanupExpiredTokens drops tokens past their expiry.
func (tm *TokenManager) CleanupExpiredTokens() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	for id, info := range tm.tokens {
		if now.After(info.ExpiresAt) {
			delete(tm.tokens, id)
		}
	}
}

// SecureCompare performs constant-time comparison.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// APIKeyMiddleware enforces a bearer API key on every route except the
// listed exemptions (the health endpoint stays open for probes).
func APIKeyMiddleware(apiKey string, exempt ...string) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		exemptPaths[p] = true
	}
	expected := "Bearer " + apiKey

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}
			if !SecureCompare(authHeader, expected) {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
