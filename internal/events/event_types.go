package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRotated   EventType = "token_rotated"
	EventTokenRejected  EventType = "token_rejected"
)

// Event is an authentication audit record. It never carries token strings
// or passwords.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TokenRejectedPayload records why a presented token was refused.
type TokenRejectedPayload struct {
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}

// TokenRotatedPayload identifies the refresh token that was exchanged.
type TokenRotatedPayload struct {
	RefreshTokenID string `json:"refresh_token_id"`
}
