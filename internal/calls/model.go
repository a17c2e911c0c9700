// Package calls persists call records keyed by the voice-AI platform's call
// id, which is the correlation key shared with bookings and webhook
// deliveries.
package calls

import (
	"time"

	"github.com/google/uuid"
)

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Call is one voice call handled for a practice.
type Call struct {
	ID              uuid.UUID  `json:"id"`
	PracticeID      uuid.UUID  `json:"practice_id"`
	VapiCallID      string     `json:"vapi_call_id"`
	CallerNumber    string     `json:"caller_number,omitempty"`
	Status          string     `json:"status,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	Transcript      string     `json:"transcript,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	RecordingURL    string     `json:"recording_url,omitempty"`
	Direction       string     `json:"direction,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// UpsertRequest carries the end-of-call fields written to the call row.
// VapiCallID is the conflict key: redelivery of the same report updates the
// existing row instead of inserting a duplicate.
type UpsertRequest struct {
	PracticeID      uuid.UUID
	VapiCallID      string
	CallerNumber    string
	Status          string
	DurationSeconds int
	Transcript      string
	Summary         string
	RecordingURL    string
	Direction       string
	Outcome         string
	StartedAt       *time.Time
	EndedAt         *time.Time
}
