package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	APIKeyPrefix = "aw_"
	// APIKeyBytes is the entropy of a generated key (256 bits)
	APIKeyBytes = 32
	// BcryptCost for stored reporter key hashes
	BcryptCost = 12
)

var ErrInvalidAPIKey = errors.New("invalid API key")

// GenerateAPIKey returns a new reporter key in the form aw_<64 hex chars>
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, APIKeyBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(randomBytes), nil
}

// HashAPIKey returns the bcrypt hash stored in configuration for a reporter key
func HashAPIKey(plainKey string) (string, error) {
	if err := ValidateAPIKeyFormat(plainKey); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// CompareAPIKey checks a presented key against a stored bcrypt hash
func CompareAPIKey(hash, plainKey string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plainKey)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// ValidateAPIKeyFormat rejects keys that could never have been generated by GenerateAPIKey
func ValidateAPIKeyFormat(plainKey string) error {
	if !strings.HasPrefix(plainKey, APIKeyPrefix) {
		return fmt.Errorf("%w: missing prefix", ErrInvalidAPIKey)
	}
	if len(plainKey) != len(APIKeyPrefix)+2*APIKeyBytes {
		return fmt.Errorf("%w: expected %d chars, got %d", ErrInvalidAPIKey, len(APIKeyPrefix)+2*APIKeyBytes, len(plainKey))
	}
	return nil
}
