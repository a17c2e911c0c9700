// Package bookings stores appointments created by the AI receptionist.
// Bookings carry the platform call id as a plain string so they can be
// correlated with a call even when the call row is written later, by the
// end-of-call reconciler.
package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// DefaultAppointmentType is used for bookings made over the phone; the AI
// books everything as a consultation and staff reclassify later.
const DefaultAppointmentType = "consultation"

// DefaultDuration is appended to the start time when the calendar provider
// does not report an end time.
const DefaultDuration = 30 * time.Minute

// Booking is one appointment on a practice's calendar.
type Booking struct {
	ID              uuid.UUID `json:"id"`
	PracticeID      uuid.UUID `json:"practice_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	VapiCallID      string    `json:"vapi_call_id,omitempty"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	AppointmentType string    `json:"appointment_type"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRequest is the input to Repository.Create.
type CreateRequest struct {
	PracticeID      uuid.UUID
	PatientID       uuid.UUID
	VapiCallID      string
	CalendarEventID string
	AppointmentType string
	StartTime       time.Time
	EndTime         time.Time
	Notes           string
}
