package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
)

// DefaultTokenBytes is the amount of randomness behind every opaque token.
const DefaultTokenBytes = 32

// SecureTokenGenerator produces opaque tokens and checks their expiry.
type SecureTokenGenerator struct {
	byteLength int
	now        func() time.Time
}

// NewSecureTokenGenerator returns a generator drawing byteLength random bytes per token.
func NewSecureTokenGenerator(byteLength int) *SecureTokenGenerator {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}
	return &SecureTokenGenerator{byteLength: byteLength, now: time.Now}
}

// WithClock overrides the clock used by IsValid.
func (g *SecureTokenGenerator) WithClock(now func() time.Time) *SecureTokenGenerator {
	if now != nil {
		g.now = now
	}
	return g
}

// Generate returns a URL-safe base64 token.
func (g *SecureTokenGenerator) Generate() (string, error) {
	return GenerateSecureToken(g.byteLength)
}

// IsValid reports whether the token is still inside its validity window.
func (g *SecureTokenGenerator) IsValid(token domain.SecureToken) bool {
	return !token.IsExpired(g.now())
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

var _ port.TokenGenerator = (*SecureTokenGenerator)(nil)
