package domain

import (
	"fmt"
	"time"
)

// TokenKind identifies the purpose an opaque token is bound to.
type TokenKind string

const (
	TokenKindRefresh             TokenKind = "refresh"
	TokenKindReset               TokenKind = "reset"
	TokenKindAccountConfirmation TokenKind = "account_confirmation"
)

// TokenKinds lists every persisted token kind.
var TokenKinds = []TokenKind{TokenKindRefresh, TokenKindReset, TokenKindAccountConfirmation}

// Validate reports whether the kind is one of the persisted kinds.
func (k TokenKind) Validate() error {
	switch k {
	case TokenKindRefresh, TokenKindReset, TokenKindAccountConfirmation:
		return nil
	default:
		return fmt.Errorf("unknown token kind %q", string(k))
	}
}

// SecureToken is an opaque, purpose-bound token owned by a user.
// Value holds the raw token only while it is in flight; stores persist its hash.
type SecureToken struct {
	ID        string
	Kind      TokenKind
	Value     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (t SecureToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// AccessTokenClaims is the identity snapshot carried by a signed access token.
type AccessTokenClaims struct {
	ID        string
	UserID    string
	Email     string
	Name      string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
