package port

import (
	"context"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// UserRepository exposes persistence behavior for users. Returned users carry their role.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	Update(ctx context.Context, user domain.User) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetConfirmed(ctx context.Context, id string, confirmed bool) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}
