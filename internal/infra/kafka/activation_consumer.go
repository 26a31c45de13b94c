package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// ActivationApplier mirrors owner activation onto the catalog.
type ActivationApplier interface {
	ApplyOwnerActivation(ctx context.Context, event domain.UserActivationChangedEvent) error
}

// ActivationConsumer hands user.activation_changed events to the catalog.
type ActivationConsumer struct {
	catalog ActivationApplier
	logger  *zap.Logger
}

// NewActivationConsumer constructs the consumer.
func NewActivationConsumer(catalog ActivationApplier, logger *zap.Logger) *ActivationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationConsumer{catalog: catalog, logger: logger}
}

// HandleMessage decodes the envelope and applies the event.
func (c *ActivationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	envelope, err := DecodeEnvelope(msg)
	if err != nil {
		return err
	}
	if envelope.EventType != domain.EventTypeUserActivationChanged {
		c.logger.Debug("ignoring foreign event type", zap.String("event_type", envelope.EventType))
		return nil
	}

	var event domain.UserActivationChangedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("%w: decode activation event: %v", ErrMalformedMessage, err)
	}
	if event.UserID == "" || event.OccurredAt.IsZero() {
		return fmt.Errorf("%w: activation event %s is incomplete", ErrMalformedMessage, envelope.EventID)
	}
	event.EventID = envelope.EventID

	return c.HandleEvent(ctx, event)
}

// HandleEvent applies one activation change.
func (c *ActivationConsumer) HandleEvent(ctx context.Context, event domain.UserActivationChangedEvent) error {
	if err := c.catalog.ApplyOwnerActivation(ctx, event); err != nil {
		return fmt.Errorf("apply activation %s: %w", event.EventID, err)
	}
	return nil
}

var _ MessageHandler = (*ActivationConsumer)(nil)
