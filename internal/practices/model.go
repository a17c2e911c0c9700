// Package practices holds the tenant model and tenant resolution.
package practices

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tone values accepted for AI preferences.
const (
	ToneProfessional = "professional"
	ToneFriendly     = "friendly"
	ToneCasual       = "casual"
	ToneEmpathetic   = "empathetic"
)

// DayHours represents the opening hours for a single day.
// Nil means the practice is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "17:00" in 24-hour format
}

// OfficeHours maps day names to their hours.
type OfficeHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForDay returns the hours for a given weekday.
func (h *OfficeHours) ForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return h.Sunday
	case time.Monday:
		return h.Monday
	case time.Tuesday:
		return h.Tuesday
	case time.Wednesday:
		return h.Wednesday
	case time.Thursday:
		return h.Thursday
	case time.Friday:
		return h.Friday
	case time.Saturday:
		return h.Saturday
	default:
		return nil
	}
}

// Statement renders the hours as a single prompt-friendly sentence, in
// Monday-first order. Days with no hours are skipped; if nothing is
// configured a generic statement is returned.
func (h *OfficeHours) Statement() string {
	type day struct {
		name  string
		hours *DayHours
	}
	days := []day{
		{"Monday", h.Monday},
		{"Tuesday", h.Tuesday},
		{"Wednesday", h.Wednesday},
		{"Thursday", h.Thursday},
		{"Friday", h.Friday},
		{"Saturday", h.Saturday},
		{"Sunday", h.Sunday},
	}
	out := ""
	for _, d := range days {
		if d.hours == nil {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s %s-%s", d.name, d.hours.Open, d.hours.Close)
	}
	if out == "" {
		return "The office is open by appointment."
	}
	return "The office is open: " + out + "."
}

// KnowledgeEntry is a free-form knowledge-base item surfaced to the assistant.
type KnowledgeEntry struct {
	ID         uuid.UUID `json:"id"`
	PracticeID uuid.UUID `json:"practice_id"`
	Category   string    `json:"category"`
	Question   string    `json:"question,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Practice is the unit of multi-tenant isolation.
type Practice struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// PhoneNumber is the inbound destination number; ForwardingNumber is the
	// practice's own line calls are handed off to. Both stored E.164.
	PhoneNumber      string `json:"phone_number"`
	ForwardingNumber string `json:"forwarding_number,omitempty"`

	AIVoice           string      `json:"ai_voice,omitempty"`
	AIVoiceProvider   string      `json:"ai_voice_provider,omitempty"`
	AITone            string      `json:"ai_tone,omitempty"`
	AIGreeting        string      `json:"ai_greeting,omitempty"`
	TransferKeywords  []string    `json:"transfer_keywords,omitempty"`
	EmergencyKeywords []string    `json:"emergency_keywords,omitempty"`
	OfficeHours       OfficeHours `json:"office_hours"`

	// Cal.com credentials for this tenant. Empty means the platform
	// fallback credentials apply.
	CalComAPIKey      string `json:"calcom_api_key,omitempty"`
	CalComEventTypeID string `json:"calcom_event_type_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
