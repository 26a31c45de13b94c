package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now time.Time) *JWTIssuer {
	t.Helper()
	issuer, err := NewJWTIssuer(JWTConfig{Secret: testSecret, Issuer: "storefront-iam", Audience: "storefront", TTL: 15 * time.Minute})
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	return issuer.WithClock(func() time.Time { return now })
}

func TestJWTIssuer_IssueAndParse(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	issuer := newTestIssuer(t, now)

	user := domain.User{ID: "user-1", Name: "alice", Email: "alice@x.com", Role: domain.Role{Name: domain.RoleRegular}}
	signed, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if strings.Count(signed, ".") != 2 {
		t.Fatalf("expected compact JWS, got %q", signed)
	}

	claims, err := issuer.Parse(signed)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "alice@x.com" || claims.Name != "alice" || claims.Role != domain.RoleRegular {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestJWTIssuer_ParseExpired(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	signed, err := newTestIssuer(t, now).Issue(domain.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	later := newTestIssuer(t, now.Add(16*time.Minute))
	if _, err := later.Parse(signed); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestJWTIssuer_ParseRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(t, now)

	other, err := NewJWTIssuer(JWTConfig{Secret: testSecret, Issuer: "someone-else", Audience: "storefront"})
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	foreign, _ := other.Issue(domain.User{ID: "user-1"})

	if _, err := issuer.Parse(foreign); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken for wrong issuer, got %v", err)
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"iss": "storefront-iam",
		"aud": "storefront",
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, err := issuer.Parse(unsigned); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken for alg none, got %v", err)
	}
}

func TestNewJWTIssuer_RejectsShortSecret(t *testing.T) {
	if _, err := NewJWTIssuer(JWTConfig{Secret: "short", Issuer: "i", Audience: "a"}); err == nil {
		t.Fatal("expected error for short secret")
	}
}
