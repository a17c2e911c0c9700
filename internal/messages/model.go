// Package messages keeps an audit log of every SMS the platform sends or
// receives. Inbound webhooks log the message before acting on it, so a
// failure later in the handler still leaves a record.
package messages

import (
	"time"

	"github.com/google/uuid"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message statuses.
const (
	StatusReceived = "received"
	StatusQueued   = "queued"
	StatusSent     = "sent"
	StatusFailed   = "failed"
)

// Related record types, for tying a message to the row it concerns.
const (
	RelatedBooking = "booking"
	RelatedLead    = "lead"
	RelatedCall    = "call"
)

// Message is one SMS in the log.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	PracticeID  uuid.UUID  `json:"practice_id"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	Direction   string     `json:"direction"`
	FromNumber  string     `json:"from_number"`
	ToNumber    string     `json:"to_number"`
	Body        string     `json:"body"`
	Status      string     `json:"status"`
	Provider    string     `json:"provider,omitempty"`
	ProviderSID string     `json:"provider_sid,omitempty"`
	RelatedType string     `json:"related_type,omitempty"`
	RelatedID   *uuid.UUID `json:"related_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InsertRequest is the input to Store.Insert.
type InsertRequest struct {
	PracticeID  uuid.UUID
	PatientID   *uuid.UUID
	Direction   string
	FromNumber  string
	ToNumber    string
	Body        string
	Status      string
	Provider    string
	ProviderSID string
	RelatedType string
	RelatedID   *uuid.UUID
}
