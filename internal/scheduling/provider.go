// Package scheduling talks to the Cal.com v1 API to read availability and
// create calendar bookings on behalf of the AI receptionist.
package scheduling

import (
	"context"
	"encoding/json"
	"time"
)

// Credentials identify a Cal.com calendar. Practices can carry their own
// key and event type; anything left blank falls back to the platform
// defaults.
type Credentials struct {
	APIKey      string
	EventTypeID int
}

// Merge fills blank fields from def.
func (c Credentials) Merge(def Credentials) Credentials {
	if c.APIKey == "" {
		c.APIKey = def.APIKey
	}
	if c.EventTypeID == 0 {
		c.EventTypeID = def.EventTypeID
	}
	return c
}

// SlotsRequest is a window to query for open appointment slots.
type SlotsRequest struct {
	Credentials Credentials
	StartTime   string
	EndTime     string
}

// BookingRequest creates one calendar event.
type BookingRequest struct {
	Credentials Credentials
	Name        string
	Email       string
	Phone       string
	StartTime   time.Time
	TimeZone    string
}

// BookingResult is the created calendar event.
type BookingResult struct {
	EventID   string
	StartTime time.Time
	EndTime   time.Time
}

// Provider is the calendar backend. The production implementation is
// CalComClient; tests substitute fakes.
type Provider interface {
	// GetAvailableSlots returns the provider's slots payload verbatim so
	// the voice assistant can read it back without reshaping.
	GetAvailableSlots(ctx context.Context, req SlotsRequest) (json.RawMessage, error)
	CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error)
}
