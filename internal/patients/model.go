// Package patients persists patient records scoped to a practice.
package patients

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient type values.
const (
	TypeNew      = "new"
	TypeExisting = "existing"
)

// Patient belongs to a practice. Phone numbers are stored E.164.
type Patient struct {
	ID         uuid.UUID `json:"id"`
	PracticeID uuid.UUID `json:"practice_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Type       string    `json:"patient_type"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SplitName breaks a full name into first/last the way the booking flow
// records AI-captured names. A single token gets "Unknown" as last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "Unknown", "Unknown"
	}
	first = parts[0]
	last = strings.Join(parts[1:], " ")
	if last == "" {
		last = "Unknown"
	}
	return first, last
}
