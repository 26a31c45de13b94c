package port

import (
	"context"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// SecureTokenStore persists opaque tokens of a single kind, keyed by token value.
// Fetch does not filter by expiry; validity is checked by the caller.
type SecureTokenStore interface {
	Kind() domain.TokenKind
	Fetch(ctx context.Context, value string) (*domain.SecureToken, error)
	Create(ctx context.Context, token domain.SecureToken) (string, error)
	Delete(ctx context.Context, value string) error
	// Take atomically fetches and deletes the token. Only one caller observes a given token.
	Take(ctx context.Context, value string) (*domain.SecureToken, error)
}

// TokenGenerator produces opaque token values and checks their expiry.
type TokenGenerator interface {
	Generate() (string, error)
	IsValid(token domain.SecureToken) bool
}

// AccessTokenIssuer mints and verifies signed access tokens.
type AccessTokenIssuer interface {
	Issue(user domain.User) (string, error)
	Parse(token string) (*domain.AccessTokenClaims, error)
}
