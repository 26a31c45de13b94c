package port

import (
	"context"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserActivationChanged(ctx context.Context, event domain.UserActivationChangedEvent) error
	PublishMailSendRequested(ctx context.Context, event domain.MailSendingEvent) error
}

// OutboxRelay forwards an already persisted outbox message to the bus.
type OutboxRelay interface {
	Relay(ctx context.Context, msg domain.OutboxMessage) error
}

// OutboxRepository stores events next to the state change that produced them.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg domain.OutboxMessage) error
	// ClaimPending locks up to limit undispatched messages until the surrounding transaction ends.
	ClaimPending(ctx context.Context, limit uint64) ([]domain.OutboxMessage, error)
	MarkDispatched(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
