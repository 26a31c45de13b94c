package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	"github.com/arklim/storefront-iam/internal/repository"
)

const (
	maxNameLength  = 100
	maxEmailLength = 100
)

// RegisterInput captures the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// BootstrapAdmin describes the administrator seeded on startup.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates an unconfirmed, active account with the default role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	user, err := s.newUser(ctx, input.Name, input.Email, input.Password, s.cfg.DefaultRole)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, *user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", ErrDBConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.WithContext(ctx).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	if s.cfg.SendConfirmationOnRegister && s.confirmations != nil {
		if err := s.confirmations.SendTo(ctx, *user); err != nil {
			logger.WithContext(ctx).Warn("send confirmation after register failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, admin BootstrapAdmin) error {
	if strings.TrimSpace(admin.Email) == "" {
		return nil
	}

	if _, err := s.users.GetByEmail(ctx, normalizeEmail(admin.Email)); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	user, err := s.newUser(ctx, admin.Name, admin.Email, admin.Password, admin.Role)
	if err != nil {
		return fmt.Errorf("prepare bootstrap admin: %w", err)
	}
	user.IsConfirmed = true

	if err := s.users.Create(ctx, *user); err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin ensured", zap.String("email", logger.MaskEmail(user.Email)))
	return nil
}

func (s *AuthService) newUser(ctx context.Context, name, email, password, roleName string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	switch {
	case name == "":
		return nil, validationError("name is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, validationError("name must be at most %d characters", maxNameLength)
	case email == "":
		return nil, validationError("email is required")
	case len(email) > maxEmailLength:
		return nil, validationError("email must be at most %d characters", maxEmailLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("email is malformed")
	}

	if err := s.policy.Validate(password, name, email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		RoleID:       role.ID,
		Role:         *role,
		IsConfirmed:  false,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}, nil
}
