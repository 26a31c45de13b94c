package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	"github.com/arklim/storefront-iam/internal/repository"
)

const defaultUserPageSize = 50

// UserService handles administrative user operations.
type UserService struct {
	users     port.UserRepository
	roles     port.RoleRepository
	tx        port.Transactor
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs UserService. When tx is nil activation events are published
// directly after the write instead of going through the outbox.
func NewUserService(users port.UserRepository, roles port.RoleRepository, tx port.Transactor, publisher port.EventPublisher, logger *zap.Logger) *UserService {
	return &UserService{
		users:     users,
		roles:     roles,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock used to stamp activation events.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultUserPageSize
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// GetByID loads one user.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// GetByEmail loads one user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// Update applies a partial update. A change of IsActive emits UserActivationChanged.
func (s *UserService) Update(ctx context.Context, id string, patch domain.UserUpdate) (*domain.User, error) {
	current, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	updated := *current
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len([]rune(name)) > maxNameLength {
			return nil, validationError("name must be between 1 and %d characters", maxNameLength)
		}
		updated.Name = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if _, err := mail.ParseAddress(email); err != nil || len(email) > maxEmailLength {
			return nil, validationError("email is malformed")
		}
		updated.Email = email
	}
	if patch.RoleName != nil {
		role, err := s.roles.GetByName(ctx, strings.TrimSpace(*patch.RoleName))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRoleNotFound
			}
			return nil, fmt.Errorf("lookup role: %w", err)
		}
		updated.RoleID = role.ID
		updated.Role = *role
	}
	if patch.IsConfirmed != nil {
		updated.IsConfirmed = *patch.IsConfirmed
	}
	if patch.IsActive != nil {
		updated.IsActive = *patch.IsActive
	}

	activationChanged := updated.IsActive != current.IsActive
	write := func(ctx context.Context, users port.UserRepository) error {
		return users.Update(ctx, updated)
	}

	if activationChanged {
		err = s.writeWithActivationEvent(ctx, updated.ID, updated.IsActive, write)
	} else {
		err = write(ctx, s.users)
	}
	if err != nil {
		return nil, mapUserWriteError(err)
	}

	updated.PasswordHash = ""
	return &updated, nil
}

// Delete removes the user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return mapUserWriteError(err)
	}
	return nil
}

// SetActive deactivates or reactivates a user and emits UserActivationChanged. The event
// is emitted even when the flag already had the requested value.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationError("user id is required")
	}

	err := s.writeWithActivationEvent(ctx, id, active, func(ctx context.Context, users port.UserRepository) error {
		return users.SetActive(ctx, id, active)
	})
	if err != nil {
		return mapUserWriteError(err)
	}

	logger.WithContext(ctx).Info("user activation changed", zap.String("user_id", id), zap.Bool("is_active", active))
	return nil
}

// writeWithActivationEvent runs write and records the activation event. With a transactor the
// event lands in the outbox inside the same transaction; without one it is published after the
// write commits, and a publish failure is only logged.
func (s *UserService) writeWithActivationEvent(ctx context.Context, userID string, active bool, write func(context.Context, port.UserRepository) error) error {
	event := domain.UserActivationChangedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		IsActive:   active,
		OccurredAt: s.now().UTC(),
	}

	if s.tx != nil {
		msg, err := activationOutboxMessage(event)
		if err != nil {
			return err
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
			if err := write(ctx, repos.Users); err != nil {
				return err
			}
			if err := repos.Outbox.Enqueue(ctx, msg); err != nil {
				return fmt.Errorf("enqueue activation event: %w", err)
			}
			return nil
		})
	}

	if err := write(ctx, s.users); err != nil {
		return err
	}
	if err := s.publisher.PublishUserActivationChanged(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("publish activation event failed",
			zap.String("user_id", userID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
	return nil
}

func activationOutboxMessage(event domain.UserActivationChangedEvent) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("encode activation event: %w", err)
	}
	return domain.OutboxMessage{
		ID:        event.EventID,
		EventType: domain.EventTypeUserActivationChanged,
		Key:       event.UserID,
		Payload:   payload,
		CreatedAt: event.OccurredAt,
	}, nil
}

func mapUserWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: email already registered", ErrDBConflict)
	default:
		return fmt.Errorf("write user: %w", err)
	}
}
