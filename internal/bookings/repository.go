package bookings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBookingNotFound is returned when no booking matches the lookup.
var ErrBookingNotFound = errors.New("bookings: booking not found")

// Repository stores bookings.
type Repository interface {
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	// ExistsForCallID reports whether any booking references the given
	// platform call id. Used by the reconciler to decide whether a call
	// produced an appointment.
	ExistsForCallID(ctx context.Context, vapiCallID string) (bool, error)
	// LatestConfirmedForPatient returns the patient's most recent confirmed
	// booking by start time.
	LatestConfirmedForPatient(ctx context.Context, practiceID, patientID uuid.UUID) (*Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Booking, error)
}

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]Booking
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bookings: make(map[uuid.UUID]Booking)}
}

func (r *InMemoryRepository) Create(_ context.Context, req CreateRequest) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := Booking{
		ID:              uuid.New(),
		PracticeID:      req.PracticeID,
		PatientID:       req.PatientID,
		VapiCallID:      req.VapiCallID,
		CalendarEventID: req.CalendarEventID,
		AppointmentType: req.AppointmentType,
		Status:          StatusConfirmed,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Notes:           req.Notes,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if b.AppointmentType == "" {
		b.AppointmentType = DefaultAppointmentType
	}
	if b.EndTime.IsZero() {
		b.EndTime = b.StartTime.Add(DefaultDuration)
	}
	r.bookings[b.ID] = b
	return &b, nil
}

func (r *InMemoryRepository) ExistsForCallID(_ context.Context, vapiCallID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if vapiCallID == "" {
		return false, nil
	}
	for _, b := range r.bookings {
		if b.VapiCallID == vapiCallID {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryRepository) LatestConfirmedForPatient(_ context.Context, practiceID, patientID uuid.UUID) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Booking
	for _, b := range r.bookings {
		if b.PracticeID != practiceID || b.PatientID != patientID || b.Status != StatusConfirmed {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			cp := b
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrBookingNotFound
	}
	return latest, nil
}

func (r *InMemoryRepository) Cancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.Status = StatusCancelled
	b.UpdatedAt = time.Now().UTC()
	r.bookings[id] = b
	return nil
}

func (r *InMemoryRepository) ListByPractice(_ context.Context, practiceID uuid.UUID, limit int) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Booking, 0)
	for _, b := range r.bookings {
		if b.PracticeID == practiceID {
			out = append(out, b)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
