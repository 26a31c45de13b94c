package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// ErrMalformedMessage marks messages that can never be processed; consumers skip them without retrying.
var ErrMalformedMessage = errors.New("kafka: malformed message")

// EventPublisher implements port.EventPublisher and port.OutboxRelay using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger, now: time.Now}
}

type envelopeMetadata map[string]string

// Envelope is the JSON frame every event travels in. Key is also used as the Kafka message key.
type Envelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Key       string           `json:"key,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   json.RawMessage  `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) envelope(ctx context.Context, eventID, eventType, key string, ts time.Time, payload json.RawMessage) (*sarama.ProducerMessage, error) {
	if ts.IsZero() {
		ts = p.now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(Envelope{
		EventID:   eventID,
		EventType: eventType,
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(eventID)},
		},
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}
	return message, nil
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key string, ts time.Time, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	message, err := p.envelope(ctx, eventID, eventType, key, ts, raw)
	if err != nil {
		return err
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserActivationChanged publishes user.activation_changed keyed by user id, so events
// for one user stay ordered within a partition.
func (p *EventPublisher) PublishUserActivationChanged(ctx context.Context, event domain.UserActivationChangedEvent) error {
	return p.publish(ctx, event.EventID, domain.EventTypeUserActivationChanged, event.UserID, event.OccurredAt, event)
}

// PublishMailSendRequested publishes mail.send_requested keyed by recipient.
func (p *EventPublisher) PublishMailSendRequested(ctx context.Context, event domain.MailSendingEvent) error {
	return p.publish(ctx, event.EventID, domain.EventTypeMailSendRequested, event.Email, time.Time{}, event)
}

// Relay sends a persisted outbox message and waits for the broker acknowledgement.
// The outbox id doubles as the event id, so consumers see the same id on redelivery.
func (p *EventPublisher) Relay(ctx context.Context, msg domain.OutboxMessage) error {
	message, err := p.envelope(ctx, msg.ID, msg.EventType, msg.Key, msg.CreatedAt, msg.Payload)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	partition, offset, err := p.producer.SyncProducer().SendMessage(message)
	if err != nil {
		return fmt.Errorf("send %s: %w", msg.EventType, err)
	}

	p.logger.Debug("outbox message relayed",
		zap.String("id", msg.ID),
		zap.String("topic", message.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// DecodeEnvelope parses the frame of a consumed message.
func DecodeEnvelope(msg *sarama.ConsumerMessage) (*Envelope, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is nil", ErrMalformedMessage)
	}

	var envelope Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformedMessage, err)
	}
	if len(envelope.Payload) == 0 {
		return nil, fmt.Errorf("%w: envelope %s has no payload", ErrMalformedMessage, envelope.EventID)
	}
	return &envelope, nil
}

var (
	_ port.EventPublisher = (*EventPublisher)(nil)
	_ port.OutboxRelay    = (*EventPublisher)(nil)
)
