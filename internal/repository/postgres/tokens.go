package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/repository"
)

var tokenTables = map[domain.TokenKind]string{
	domain.TokenKindRefresh:             "iam.refresh_tokens",
	domain.TokenKindReset:               "iam.reset_tokens",
	domain.TokenKindAccountConfirmation: "iam.account_confirmation_tokens",
}

// TokenStore persists opaque tokens of one kind. Only the SHA-256 hash of a token value is stored.
type TokenStore struct {
	kind    domain.TokenKind
	table   string
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenStore constructs a store bound to the table of the given kind.
func NewTokenStore(exec pgExecutor, kind domain.TokenKind) (*TokenStore, error) {
	table, ok := tokenTables[kind]
	if !ok {
		return nil, fmt.Errorf("no token table for kind %q", string(kind))
	}
	return &TokenStore{
		kind:    kind,
		table:   table,
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// WithTx returns a store instance executing within the provided transaction.
func (s *TokenStore) WithTx(tx pgx.Tx) *TokenStore {
	if tx == nil {
		return s
	}
	return &TokenStore{kind: s.kind, table: s.table, exec: tx, builder: s.builder}
}

// Kind reports the token kind served by this store.
func (s *TokenStore) Kind() domain.TokenKind {
	return s.kind
}

// Fetch retrieves a token by value regardless of expiry.
func (s *TokenStore) Fetch(ctx context.Context, value string) (*domain.SecureToken, error) {
	stmt, args, err := s.builder.Select("id", "user_id", "created_at", "expires_at").
		From(s.table).
		Where(squirrel.Eq{"token_hash": security.HashToken(value)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s token sql: %w", s.kind, err)
	}

	return s.scan(s.exec.QueryRow(ctx, stmt, args...), value)
}

// Create inserts the token and returns its value.
func (s *TokenStore) Create(ctx context.Context, token domain.SecureToken) (string, error) {
	stmt, args, err := s.builder.Insert(s.table).
		Columns("id", "user_id", "token_hash", "created_at", "expires_at").
		Values(token.ID, token.UserID, security.HashToken(token.Value), token.CreatedAt, token.ExpiresAt).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert %s token sql: %w", s.kind, err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrConflict
		}
		return "", fmt.Errorf("insert %s token: %w", s.kind, err)
	}

	return token.Value, nil
}

// Delete removes the token. Deleting an absent token is not an error.
func (s *TokenStore) Delete(ctx context.Context, value string) error {
	stmt, args, err := s.builder.Delete(s.table).
		Where(squirrel.Eq{"token_hash": security.HashToken(value)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s token sql: %w", s.kind, err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete %s token: %w", s.kind, err)
	}

	return nil
}

// Take deletes the token and returns the deleted row in a single statement.
func (s *TokenStore) Take(ctx context.Context, value string) (*domain.SecureToken, error) {
	stmt, args, err := s.builder.Delete(s.table).
		Where(squirrel.Eq{"token_hash": security.HashToken(value)}).
		Suffix("RETURNING id, user_id, created_at, expires_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build take %s token sql: %w", s.kind, err)
	}

	return s.scan(s.exec.QueryRow(ctx, stmt, args...), value)
}

func (s *TokenStore) scan(row pgx.Row, value string) (*domain.SecureToken, error) {
	token := domain.SecureToken{Kind: s.kind, Value: value}
	if err := row.Scan(&token.ID, &token.UserID, &token.CreatedAt, &token.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s token: %w", s.kind, err)
	}
	return &token, nil
}

var _ port.SecureTokenStore = (*TokenStore)(nil)
