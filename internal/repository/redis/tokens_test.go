package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/repository"
)

func TestTokenStore_CreateFetchTake(t *testing.T) {
	client, server := newTestRedis(t)
	store, err := NewTokenStore(client, domain.TokenKindReset, TokenStoreConfig{KeyPrefix: "iam:token", Retention: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	token := domain.SecureToken{
		ID:        "token-1",
		Kind:      domain.TokenKindReset,
		Value:     "opaque",
		UserID:    "user-1",
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}

	if _, err := store.Create(ctx, token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for _, key := range server.Keys() {
		if strings.Contains(key, "opaque") {
			t.Fatalf("raw token value leaked into key %s", key)
		}
	}

	fetched, err := store.Fetch(ctx, "opaque")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if fetched.UserID != "user-1" || !fetched.ExpiresAt.Equal(token.ExpiresAt) {
		t.Fatalf("unexpected token: %+v", fetched)
	}

	if _, err := store.Take(ctx, "opaque"); err != nil {
		t.Fatalf("Take returned error: %v", err)
	}
	if _, err := store.Take(ctx, "opaque"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
	if _, err := store.Fetch(ctx, "opaque"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after take, got %v", err)
	}
}

func TestTokenStore_CreateConflict(t *testing.T) {
	client, _ := newTestRedis(t)
	store, err := NewTokenStore(client, domain.TokenKindRefresh, TokenStoreConfig{})
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}

	ctx := context.Background()
	token := domain.SecureToken{ID: "a", Value: "same", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}

	if _, err := store.Create(ctx, token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	token.ID = "b"
	if _, err := store.Create(ctx, token); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTokenStore_KindsAreIsolated(t *testing.T) {
	client, _ := newTestRedis(t)
	reset, _ := NewTokenStore(client, domain.TokenKindReset, TokenStoreConfig{})
	confirm, _ := NewTokenStore(client, domain.TokenKindAccountConfirmation, TokenStoreConfig{})

	ctx := context.Background()
	if _, err := reset.Create(ctx, domain.SecureToken{ID: "a", Value: "v", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := confirm.Fetch(ctx, "v"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected confirmation store to miss a reset token, got %v", err)
	}
}

func TestTokenStore_ExpiredTokenStaysVisibleDuringRetention(t *testing.T) {
	client, server := newTestRedis(t)
	store, _ := NewTokenStore(client, domain.TokenKindRefresh, TokenStoreConfig{Retention: time.Hour})

	ctx := context.Background()
	if _, err := store.Create(ctx, domain.SecureToken{ID: "a", Value: "v", UserID: "u", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	server.FastForward(5 * time.Minute)

	if _, err := store.Fetch(ctx, "v"); err != nil {
		t.Fatalf("expected expired token to remain readable, got %v", err)
	}
}

func TestNewTokenStore_RejectsUnknownKind(t *testing.T) {
	client, _ := newTestRedis(t)
	if _, err := NewTokenStore(client, domain.TokenKind("access"), TokenStoreConfig{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
