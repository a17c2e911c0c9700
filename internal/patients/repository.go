package patients

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// ErrPatientNotFound is returned when a lookup matches no patient.
var ErrPatientNotFound = errors.New("patients: patient not found")

// CreateRequest carries the fields needed to create a patient.
type CreateRequest struct {
	PracticeID uuid.UUID
	Name       string
	Email      string
	Phone      string
	Type       string
	Source     string
}

// Repository provides patient persistence.
type Repository interface {
	// GetByPhone matches on exact E.164 phone within a practice.
	GetByPhone(ctx context.Context, practiceID uuid.UUID, phoneNumber string) (*Patient, error)
	// GetByEmail matches on email across practices; booking creation uses it
	// to reuse an existing patient record.
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	Create(ctx context.Context, req CreateRequest) (*Patient, error)
}

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[uuid.UUID]*Patient)}
}

// GetByPhone implements Repository.
func (r *InMemoryRepository) GetByPhone(ctx context.Context, practiceID uuid.UUID, phoneNumber string) (*Patient, error) {
	normalized := phone.NormalizeE164(phoneNumber)
	if normalized == "" {
		return nil, ErrPatientNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if p.PracticeID == practiceID && p.Phone == normalized {
			return p, nil
		}
	}
	return nil, ErrPatientNotFound
}

// GetByEmail implements Repository.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	if email == "" {
		return nil, ErrPatientNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patients {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrPatientNotFound
}

// Create implements Repository.
func (r *InMemoryRepository) Create(ctx context.Context, req CreateRequest) (*Patient, error) {
	first, last := SplitName(req.Name)
	p := &Patient{
		ID:         uuid.New(),
		PracticeID: req.PracticeID,
		FirstName:  first,
		LastName:   last,
		Email:      req.Email,
		Phone:      phone.NormalizeE164(req.Phone),
		Type:       req.Type,
		Source:     req.Source,
	}
	if p.Type == "" {
		p.Type = TypeNew
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
	return p, nil
}
