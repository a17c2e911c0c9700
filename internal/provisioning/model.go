// Package provisioning onboards a practice onto the voice platform: it
// creates the assistant, buys a Twilio number, imports the number into the
// platform and links the two. The phone number row is written before the
// purchase so a crash mid-flow leaves a visible pending record instead of
// an orphaned paid number.
package provisioning

import (
	"time"

	"github.com/google/uuid"
)

// Phone number lifecycle states.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusReleased = "released"
)

// PhoneNumber is one provisioned (or in-flight) number for a practice.
type PhoneNumber struct {
	ID           uuid.UUID `json:"id"`
	PracticeID   uuid.UUID `json:"practice_id"`
	Number       string    `json:"phone_number"`
	TwilioSID    string    `json:"twilio_sid,omitempty"`
	VapiNumberID string    `json:"vapi_number_id,omitempty"`
	AssistantID  string    `json:"assistant_id,omitempty"`
	Status       string    `json:"status"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProvisionResult is what a completed provisioning run produced.
type ProvisionResult struct {
	PhoneNumber  string
	AssistantID  string
	TwilioSID    string
	VapiNumberID string
}
