package auth

import (
	"crypto/sha256"
	"sync"

	pkgauth "github.com/BradenHooton/authwatch/pkg/auth"
)

// APIKeyVerifier checks reporter API keys against configured bcrypt hashes.
// Keys that verified once are remembered by SHA-256 digest so bcrypt runs once per key.
type APIKeyVerifier struct {
	hashes []string

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewAPIKeyVerifier creates a verifier for the given bcrypt hashes
func NewAPIKeyVerifier(hashes []string) *APIKeyVerifier {
	return &APIKeyVerifier{
		hashes:   hashes,
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

// Enabled reports whether any key is configured
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hashes) > 0
}

// Verify reports whether plainKey matches one of the configured hashes
func (v *APIKeyVerifier) Verify(plainKey string) bool {
	if !v.Enabled() || pkgauth.ValidateAPIKeyFormat(plainKey) != nil {
		return false
	}

	digest := sha256.Sum256([]byte(plainKey))

	v.mu.RLock()
	_, ok := v.verified[digest]
	v.mu.RUnlock()
	if ok {
		return true
	}

	for _, hash := range v.hashes {
		if pkgauth.CompareAPIKey(hash, plainKey) == nil {
			v.mu.Lock()
			v.verified[digest] = struct{}{}
			v.mu.Unlock()
			return true
		}
	}

	return false
}
