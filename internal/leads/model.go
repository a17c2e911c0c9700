// Package leads tracks follow-up opportunities for practice staff: callers
// who did not book, and patients who cancelled over SMS.
package leads

import (
	"time"

	"github.com/google/uuid"
)

// Lead statuses, in rough pipeline order.
const (
	StatusNew        = "new"
	StatusContacted  = "contacted"
	StatusInterested = "interested"
	StatusScheduled  = "scheduled"
	StatusLost       = "lost"
)

// Lead sources.
const (
	SourcePhoneCall = "phone_call"
	SourceSMS       = "sms"
	SourceWebsite   = "website"
)

// Lead priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Lead is a follow-up item surfaced to practice staff.
type Lead struct {
	ID         uuid.UUID  `json:"id"`
	PracticeID uuid.UUID  `json:"practice_id"`
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	// CallID references the internal call row, not the platform call id.
	// At most one lead per call; redelivered end-of-call reports must not
	// multiply follow-ups.
	CallID    *uuid.UUID `json:"call_id,omitempty"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	Source    string     `json:"lead_source"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateRequest is the input to Repository.Create.
type CreateRequest struct {
	PracticeID uuid.UUID
	PatientID  *uuid.UUID
	CallID     *uuid.UUID
	Status     string
	Priority   string
	Source     string
	Notes      string
}
