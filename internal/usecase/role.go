package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/repository"
)

const maxRoleNameLength = 50

// RoleService manages roles.
type RoleService struct {
	roles port.RoleRepository
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository) *RoleService {
	return &RoleService{roles: roles}
}

// List returns all roles.
func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	return s.roles.List(ctx)
}

// GetByID loads one role.
func (s *RoleService) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, strings.TrimSpace(id))
	return role, mapRoleError(err)
}

// GetByName loads one role by its unique name.
func (s *RoleService) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := s.roles.GetByName(ctx, strings.TrimSpace(name))
	return role, mapRoleError(err)
}

// Create provisions a new role.
func (s *RoleService) Create(ctx context.Context, name string) (*domain.Role, error) {
	name, err := validateRoleName(name)
	if err != nil {
		return nil, err
	}

	role := domain.Role{ID: uuid.NewString(), Name: name}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, mapRoleError(err)
	}
	return &role, nil
}

// Update renames a role.
func (s *RoleService) Update(ctx context.Context, id, name string) (*domain.Role, error) {
	name, err := validateRoleName(name)
	if err != nil {
		return nil, err
	}

	role := domain.Role{ID: strings.TrimSpace(id), Name: name}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, mapRoleError(err)
	}
	return &role, nil
}

// Delete removes a role.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	return mapRoleError(s.roles.Delete(ctx, strings.TrimSpace(id)))
}

// EnsureDefaults seeds the Admin and Regular roles plus any extra names.
func (s *RoleService) EnsureDefaults(ctx context.Context, extra ...string) error {
	names := append([]string{domain.RoleAdmin, domain.RoleRegular}, extra...)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := s.roles.GetByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup role %q: %w", name, err)
		}
		if err := s.roles.Create(ctx, domain.Role{ID: uuid.NewString(), Name: name}); err != nil && !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("seed role %q: %w", name, err)
		}
	}
	return nil
}

func validateRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationError("role name is required")
	}
	if len([]rune(name)) > maxRoleNameLength {
		return "", validationError("role name must be at most %d characters", maxRoleNameLength)
	}
	return name, nil
}

func mapRoleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrRoleNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: role name already taken", ErrDBConflict)
	default:
		return fmt.Errorf("role store: %w", err)
	}
}
