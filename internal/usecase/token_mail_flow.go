package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	"github.com/arklim/storefront-iam/internal/repository"
)

// tokenMailFlow is the shared request/redeem shape of password reset and account confirmation:
// look the user up by email, issue a one-time token, mail a link carrying it, and later
// redeem the token back into its owner.
type tokenMailFlow struct {
	users           port.UserRepository
	tokens          *TokenLifecycleService
	publisher       port.EventPublisher
	template        MailTemplate
	discloseUnknown bool
	logger          *zap.Logger
}

// lookup resolves the user for a request. With disclosure off an unknown email returns
// (nil, nil) so the caller answers exactly as for a known one.
func (f *tokenMailFlow) lookup(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationError("email is required")
	}

	user, err := f.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if f.discloseUnknown {
				return nil, ErrUserNotFound
			}
			f.logger.Info("token mail requested for unknown email",
				zap.String("kind", string(f.tokens.Kind())),
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// send issues a token for user and publishes the mail. Publishing is best effort.
func (f *tokenMailFlow) send(ctx context.Context, user domain.User) error {
	token, err := f.tokens.Issue(ctx, user.ID)
	if err != nil {
		return err
	}

	mail, err := f.template.Render(user.Email, token)
	if err != nil {
		return err
	}
	mail.EventID = uuid.NewString()

	if err := f.publisher.PublishMailSendRequested(ctx, mail); err != nil {
		logger.WithContext(ctx).Warn("publish token mail failed",
			zap.String("kind", string(f.tokens.Kind())),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	return nil
}

// redeem consumes token and returns its owner. Expired tokens map to ErrUnauthorized,
// unknown or already used ones to ErrTokenNotFound. A non-nil check runs against the
// owner of a live token before it is consumed; when it fails the token stays usable.
func (f *tokenMailFlow) redeem(ctx context.Context, token string, check func(domain.User) error) (*domain.User, error) {
	var owner *domain.User
	if check != nil {
		live, err := f.tokens.Peek(ctx, token)
		switch {
		case errors.Is(err, ErrTokenExpired):
			// Redeem below removes it and reports the expiry.
		case err != nil:
			return nil, err
		default:
			if owner, err = f.owner(ctx, live.UserID); err != nil {
				return nil, err
			}
			if err := check(*owner); err != nil {
				return nil, err
			}
		}
	}

	stored, err := f.tokens.Redeem(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, err
	}

	if owner != nil && owner.ID == stored.UserID {
		return owner, nil
	}
	return f.owner(ctx, stored.UserID)
}

func (f *tokenMailFlow) owner(ctx context.Context, userID string) (*domain.User, error) {
	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
