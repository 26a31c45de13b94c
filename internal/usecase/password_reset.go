package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/repository"
)

// PasswordResetService handles forgotten passwords through mailed one-time reset tokens.
type PasswordResetService struct {
	flow   tokenMailFlow
	hasher port.PasswordHasher
	policy port.PasswordPolicyValidator
}

// NewPasswordResetService constructs the service. With discloseUnknown unset, reset requests
// for unknown emails succeed without sending anything.
func NewPasswordResetService(
	users port.UserRepository,
	tokens *TokenLifecycleService,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	publisher port.EventPublisher,
	template MailTemplate,
	discloseUnknown bool,
	logger *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		flow: tokenMailFlow{
			users:           users,
			tokens:          tokens,
			publisher:       publisher,
			template:        template,
			discloseUnknown: discloseUnknown,
			logger:          logger,
		},
		hasher: hasher,
		policy: policy,
	}
}

// RequestReset issues a reset token for the account behind email and mails the reset link.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.flow.lookup(ctx, email)
	if err != nil || user == nil {
		return err
	}
	return s.flow.send(ctx, *user)
}

// SetNewPassword redeems the reset token and replaces the owner's password hash.
// A password rejected by the policy leaves the token usable.
func (s *PasswordResetService) SetNewPassword(ctx context.Context, token, password string) error {
	if err := s.policy.Validate(password); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	user, err := s.flow.redeem(ctx, token, func(owner domain.User) error {
		if err := s.policy.Validate(password, owner.Name, owner.Email); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.flow.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.flow.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}
