package domain

import (
	"encoding/json"
	"time"
)

// Event types carried on the bus.
const (
	EventTypeUserActivationChanged = "user.activation_changed"
	EventTypeMailSendRequested     = "mail.send_requested"
)

// UserActivationChangedEvent is published whenever a user is activated or deactivated.
// EventID travels in the envelope, not in the payload.
type UserActivationChangedEvent struct {
	EventID    string    `json:"-"`
	UserID     string    `json:"user_id"`
	IsActive   bool      `json:"is_active"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MailSendingEvent asks the mail worker to deliver a message.
type MailSendingEvent struct {
	EventID string `json:"-"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// OutboxMessage is an event persisted in the same transaction as the state change it describes.
type OutboxMessage struct {
	ID           string
	EventType    string
	Key          string
	Payload      json.RawMessage
	CreatedAt    time.Time
	Attempts     int
	LastError    *string
	DispatchedAt *time.Time
}
