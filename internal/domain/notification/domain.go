package notification

import (
	"context"
	"time"
)

// Notification is a delivered out-of-band message (e-mail) about a transition.
// (EndpointID, Recipient, TransitionAt) identifies the transition it was
// sent for and is unique.
type Notification struct {
	ID           int64     `json:"id"`
	EndpointID   int64     `json:"endpoint_id"`
	Recipient    string    `json:"recipient"`
	Type         string    `json:"type"`
	SentAt       time.Time `json:"sent_at"`
	Payload      string    `json:"payload"`
	TransitionAt time.Time `json:"transition_at"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Clock interface {
	Now() time.Time
}
