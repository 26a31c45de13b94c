package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
)

// Repositories groups concrete PostgreSQL repository implementations of the identity service.
type Repositories struct {
	Users  *UserRepository
	Roles  *RoleRepository
	Outbox *OutboxRepository
	Tokens map[domain.TokenKind]*TokenStore

	db txBeginner
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(db txBeginner) (*Repositories, error) {
	tokens := make(map[domain.TokenKind]*TokenStore, len(domain.TokenKinds))
	for _, kind := range domain.TokenKinds {
		store, err := NewTokenStore(db, kind)
		if err != nil {
			return nil, err
		}
		tokens[kind] = store
	}

	return &Repositories{
		Users:  NewUserRepository(db),
		Roles:  NewRoleRepository(db),
		Outbox: NewOutboxRepository(db),
		Tokens: tokens,
		db:     db,
	}, nil
}

// WithinTx runs fn with repositories bound to one transaction.
func (r *Repositories) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, port.Repositories{
		Users:  r.Users.WithTx(tx),
		Outbox: r.Outbox.WithTx(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

var _ port.Transactor = (*Repositories)(nil)
