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

// AccountConfirmationService confirms email ownership through mailed one-time tokens.
type AccountConfirmationService struct {
	flow tokenMailFlow
}

// NewAccountConfirmationService constructs the service.
func NewAccountConfirmationService(
	users port.UserRepository,
	tokens *TokenLifecycleService,
	publisher port.EventPublisher,
	template MailTemplate,
	discloseUnknown bool,
	logger *zap.Logger,
) *AccountConfirmationService {
	return &AccountConfirmationService{
		flow: tokenMailFlow{
			users:           users,
			tokens:          tokens,
			publisher:       publisher,
			template:        template,
			discloseUnknown: discloseUnknown,
			logger:          logger,
		},
	}
}

// RequestConfirmation mails a confirmation link to the account behind email.
func (s *AccountConfirmationService) RequestConfirmation(ctx context.Context, email string) error {
	user, err := s.flow.lookup(ctx, email)
	if err != nil || user == nil {
		return err
	}
	return s.SendTo(ctx, *user)
}

// SendTo mails a confirmation link to user. Already confirmed accounts are skipped.
func (s *AccountConfirmationService) SendTo(ctx context.Context, user domain.User) error {
	if user.IsConfirmed {
		s.flow.logger.Debug("account already confirmed", zap.String("user_id", user.ID))
		return nil
	}
	return s.flow.send(ctx, user)
}

// Confirm redeems the confirmation token and marks its owner as confirmed.
func (s *AccountConfirmationService) Confirm(ctx context.Context, token string) error {
	user, err := s.flow.redeem(ctx, token, nil)
	if err != nil {
		return err
	}

	if err := s.flow.users.SetConfirmed(ctx, user.ID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("confirm account: %w", err)
	}

	s.flow.logger.Info("account confirmed", zap.String("user_id", user.ID))
	return nil
}
