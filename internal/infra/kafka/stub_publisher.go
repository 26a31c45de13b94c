package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, key string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("key", key),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishUserActivationChanged logs user.activation_changed events.
func (p *StubPublisher) PublishUserActivationChanged(_ context.Context, event domain.UserActivationChangedEvent) error {
	p.logEvent(domain.EventTypeUserActivationChanged, event.UserID, event.OccurredAt,
		zap.String("event_id", event.EventID),
		zap.Bool("is_active", event.IsActive),
	)
	return nil
}

// PublishMailSendRequested logs mail.send_requested events. The body carries a live token,
// so only the subject and the masked recipient are logged.
func (p *StubPublisher) PublishMailSendRequested(_ context.Context, event domain.MailSendingEvent) error {
	p.logEvent(domain.EventTypeMailSendRequested, logger.MaskEmail(event.Email), time.Time{},
		zap.String("event_id", event.EventID),
		zap.String("subject", event.Subject),
	)
	return nil
}

// Relay logs outbox messages so the dispatcher drains the table in development.
func (p *StubPublisher) Relay(_ context.Context, msg domain.OutboxMessage) error {
	p.logEvent(msg.EventType, msg.Key, msg.CreatedAt,
		zap.String("event_id", msg.ID),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}

var (
	_ port.EventPublisher = (*StubPublisher)(nil)
	_ port.OutboxRelay    = (*StubPublisher)(nil)
)
