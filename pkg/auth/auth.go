package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidKey = errors.New("invalid API key")

// KeySet validates API keys against bcrypt hashes. Only hashes are
// configured; keys that validated once are remembered so bcrypt runs once
// per key, not once per request.
type KeySet struct {
	hashes []string

	mu       sync.RWMutex
	verified []string
}

// NewKeySet creates a key set. An empty set accepts every request.
func NewKeySet(hashes []string) *KeySet {
	return &KeySet{hashes: hashes}
}

// Enabled reports whether any key is configured
func (ks *KeySet) Enabled() bool {
	return len(ks.hashes) > 0
}

// Validate checks key against the configured hashes
func (ks *KeySet) Validate(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	ks.mu.RLock()
	for _, v := range ks.verified {
		if SecureCompare(v, key) {
			ks.mu.RUnlock()
			return nil
		}
	}
	ks.mu.RUnlock()

	for _, h := range ks.hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(key)) == nil {
			ks.mu.Lock()
			ks.verified = append(ks.verified, key)
			ks.mu.Unlock()
			return nil
		}
	}
	return ErrInvalidKey
}

// Middleware requires "Authorization: Bearer <key>" on every path except
// the ones listed in open.
func (ks *KeySet) Middleware(open ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ks.Enabled() || contains(open, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if err := ks.Validate(key); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="toolshim"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GenerateKey returns a new random API key and its bcrypt hash
func GenerateKey() (key, hash string, err error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key = base64.URLEncoding.EncodeToString(keyBytes)

	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return key, string(h), nil
}

// SecureCompare performs constant-time comparison
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
