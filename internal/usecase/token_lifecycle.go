package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/repository"
)

const maxIssueAttempts = 3

// TokenMetrics records token lifecycle outcomes.
type TokenMetrics interface {
	TokenIssued(kind string)
	TokenRedeemed(kind string)
	TokenRejected(kind, reason string)
}

type noopTokenMetrics struct{}

func (noopTokenMetrics) TokenIssued(string)           {}
func (noopTokenMetrics) TokenRedeemed(string)         {}
func (noopTokenMetrics) TokenRejected(string, string) {}

// TokenLifecycleService drives one token kind through Issue -> Valid|Expired -> Gone.
// Refresh, reset and account confirmation each get their own instance, store and TTL.
type TokenLifecycleService struct {
	store     port.SecureTokenStore
	generator port.TokenGenerator
	ttl       time.Duration
	now       func() time.Time
	metrics   TokenMetrics
}

// NewTokenLifecycleService binds a store and generator with the kind's TTL.
func NewTokenLifecycleService(store port.SecureTokenStore, generator port.TokenGenerator, ttl time.Duration) *TokenLifecycleService {
	return &TokenLifecycleService{
		store:     store,
		generator: generator,
		ttl:       ttl,
		now:       time.Now,
		metrics:   noopTokenMetrics{},
	}
}

// WithClock overrides the clock used to stamp issued tokens.
func (s *TokenLifecycleService) WithClock(now func() time.Time) *TokenLifecycleService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics attaches lifecycle counters.
func (s *TokenLifecycleService) WithMetrics(m TokenMetrics) *TokenLifecycleService {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Kind reports the token kind this service manages.
func (s *TokenLifecycleService) Kind() domain.TokenKind {
	return s.store.Kind()
}

// TTL reports the lifetime given to issued tokens.
func (s *TokenLifecycleService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and persists a fresh token for userID and returns its opaque value.
// A value collision is retried with a newly generated value.
func (s *TokenLifecycleService) Issue(ctx context.Context, userID string) (string, error) {
	kind := string(s.Kind())

	for attempt := 1; ; attempt++ {
		value, err := s.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("generate %s token: %w", kind, err)
		}

		now := s.now().UTC()
		stored, err := s.store.Create(ctx, domain.SecureToken{
			ID:        uuid.NewString(),
			Kind:      s.Kind(),
			Value:     value,
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err == nil {
			s.metrics.TokenIssued(kind)
			return stored, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt >= maxIssueAttempts {
			return "", fmt.Errorf("store %s token: %w", kind, err)
		}
	}
}

// Validate reports whether the token exists and is unexpired. An unknown token yields
// ErrTokenNotFound. Validation never deletes.
func (s *TokenLifecycleService) Validate(ctx context.Context, value string) (bool, error) {
	token, err := s.Resolve(ctx, value)
	if err != nil {
		return false, err
	}
	if !s.generator.IsValid(*token) {
		s.metrics.TokenRejected(string(s.Kind()), "expired")
		return false, nil
	}
	return true, nil
}

// Resolve returns the stored token, typically to learn its owner after validation.
func (s *TokenLifecycleService) Resolve(ctx context.Context, value string) (*domain.SecureToken, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	token, err := s.store.Fetch(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.TokenRejected(string(s.Kind()), "not_found")
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("fetch %s token: %w", s.Kind(), err)
	}
	return token, nil
}

// Peek returns a live token without consuming it. Expired tokens yield ErrTokenExpired
// and stay in the store until redeemed or discarded.
func (s *TokenLifecycleService) Peek(ctx context.Context, value string) (*domain.SecureToken, error) {
	token, err := s.Resolve(ctx, value)
	if err != nil {
		return nil, err
	}
	if !s.generator.IsValid(*token) {
		return nil, ErrTokenExpired
	}
	return token, nil
}

// Consume deletes the token after its one-time action completed. Consuming a token
// that is already gone yields ErrTokenNotFound, so replays never look like success.
func (s *TokenLifecycleService) Consume(ctx context.Context, value string) error {
	if value == "" {
		return ErrTokenNotFound
	}
	if _, err := s.store.Take(ctx, value); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("consume %s token: %w", s.Kind(), err)
	}
	return nil
}

// Discard deletes the token if present.
func (s *TokenLifecycleService) Discard(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if err := s.store.Delete(ctx, value); err != nil {
		return fmt.Errorf("discard %s token: %w", s.Kind(), err)
	}
	return nil
}

// Redeem is the single-use path: it atomically removes the token and then checks its
// expiry, so two concurrent redemptions can never both succeed. Absent tokens yield
// ErrTokenNotFound and expired ones ErrTokenExpired; either way the token is gone afterwards.
func (s *TokenLifecycleService) Redeem(ctx context.Context, value string) (*domain.SecureToken, error) {
	kind := string(s.Kind())
	if value == "" {
		return nil, ErrTokenNotFound
	}

	token, err := s.store.Take(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.TokenRejected(kind, "not_found")
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("redeem %s token: %w", kind, err)
	}

	if !s.generator.IsValid(*token) {
		s.metrics.TokenRejected(kind, "expired")
		return nil, ErrTokenExpired
	}

	s.metrics.TokenRedeemed(kind)
	return token, nil
}
