package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/repository"
)

// TokenStoreConfig controls key layout and how long expired tokens stay observable.
type TokenStoreConfig struct {
	KeyPrefix string
	// Retention keeps a token readable past its expiry so callers can still tell
	// an expired token from an unknown one.
	Retention time.Duration
}

type tokenRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore keeps opaque tokens of one kind in Redis, keyed by the token hash.
type TokenStore struct {
	client *redis.Client
	kind   domain.TokenKind
	cfg    TokenStoreConfig
	now    func() time.Time
}

// NewTokenStore constructs a Redis token store for the given kind.
func NewTokenStore(client *redis.Client, kind domain.TokenKind, cfg TokenStoreConfig) (*TokenStore, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return &TokenStore{client: client, kind: kind, cfg: cfg, now: time.Now}, nil
}

// Kind reports the token kind served by this store.
func (s *TokenStore) Kind() domain.TokenKind {
	return s.kind
}

// Fetch retrieves a token by value regardless of expiry.
func (s *TokenStore) Fetch(ctx context.Context, value string) (*domain.SecureToken, error) {
	raw, err := s.client.Get(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s token: %w", s.kind, err)
	}
	return s.decode(raw, value)
}

// Create stores the token unless a token with the same value already exists.
func (s *TokenStore) Create(ctx context.Context, token domain.SecureToken) (string, error) {
	raw, err := json.Marshal(tokenRecord{
		ID:        token.ID,
		UserID:    token.UserID,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s token: %w", s.kind, err)
	}

	ttl := token.ExpiresAt.Sub(s.now()) + s.cfg.Retention
	if ttl <= 0 {
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.key(token.Value), raw, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx %s token: %w", s.kind, err)
	}
	if !ok {
		return "", repository.ErrConflict
	}

	return token.Value, nil
}

// Delete removes the token. Deleting an absent token is not an error.
func (s *TokenStore) Delete(ctx context.Context, value string) error {
	if err := s.client.Del(ctx, s.key(value)).Err(); err != nil {
		return fmt.Errorf("redis del %s token: %w", s.kind, err)
	}
	return nil
}

// Take reads and deletes the token with GETDEL.
func (s *TokenStore) Take(ctx context.Context, value string) (*domain.SecureToken, error) {
	raw, err := s.client.GetDel(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel %s token: %w", s.kind, err)
	}
	return s.decode(raw, value)
}

func (s *TokenStore) decode(raw []byte, value string) (*domain.SecureToken, error) {
	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s token: %w", s.kind, err)
	}
	return &domain.SecureToken{
		ID:        rec.ID,
		Kind:      s.kind,
		Value:     value,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *TokenStore) key(value string) string {
	k := fmt.Sprintf("%s:%s", s.kind, security.HashToken(value))
	if s.cfg.KeyPrefix == "" {
		return k
	}
	return s.cfg.KeyPrefix + ":" + k
}

var _ port.SecureTokenStore = (*TokenStore)(nil)
