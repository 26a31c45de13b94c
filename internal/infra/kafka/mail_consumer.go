package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/logger"
)

// MailConsumer delivers mail.send_requested events through a Mailer.
type MailConsumer struct {
	mailer port.Mailer
	logger *zap.Logger
}

// NewMailConsumer constructs the consumer.
func NewMailConsumer(mailer port.Mailer, logger *zap.Logger) *MailConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailConsumer{mailer: mailer, logger: logger}
}

// HandleMessage decodes the envelope and sends the mail.
func (c *MailConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	envelope, err := DecodeEnvelope(msg)
	if err != nil {
		return err
	}
	if envelope.EventType != domain.EventTypeMailSendRequested {
		return nil
	}

	var event domain.MailSendingEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("%w: decode mail event: %v", ErrMalformedMessage, err)
	}
	if event.Email == "" {
		return fmt.Errorf("%w: mail event %s has no recipient", ErrMalformedMessage, envelope.EventID)
	}
	event.EventID = envelope.EventID

	return c.HandleEvent(ctx, event)
}

// HandleEvent sends one mail.
func (c *MailConsumer) HandleEvent(ctx context.Context, event domain.MailSendingEvent) error {
	err := c.mailer.Send(ctx, port.MailMessage{
		To:      event.Email,
		Subject: event.Subject,
		Body:    event.Body,
	})
	if err != nil {
		return fmt.Errorf("send mail %s: %w", event.EventID, err)
	}

	c.logger.Info("mail delivered",
		zap.String("event_id", event.EventID),
		zap.String("to", logger.MaskEmail(event.Email)),
	)
	return nil
}

var _ MessageHandler = (*MailConsumer)(nil)
