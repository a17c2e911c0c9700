package leads

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLeadNotFound is returned when no lead matches the lookup.
	ErrLeadNotFound = errors.New("leads: lead not found")
	// ErrDuplicateCallLead is returned when a lead already references the
	// same call.
	ErrDuplicateCallLead = errors.New("leads: lead already exists for call")
)

// Repository stores leads.
type Repository interface {
	Create(ctx context.Context, req CreateRequest) (*Lead, error)
	// ExistsForCall reports whether a lead already references the internal
	// call id.
	ExistsForCall(ctx context.Context, callID uuid.UUID) (bool, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Lead, error)
}

// InMemoryRepository is a map-backed Repository for tests. It enforces the
// one-lead-per-call rule the same way the unique index does in Postgres.
type InMemoryRepository struct {
	mu     sync.RWMutex
	leads  map[uuid.UUID]Lead
	byCall map[uuid.UUID]uuid.UUID
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:  make(map[uuid.UUID]Lead),
		byCall: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *InMemoryRepository) Create(_ context.Context, req CreateRequest) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.CallID != nil {
		if _, taken := r.byCall[*req.CallID]; taken {
			return nil, ErrDuplicateCallLead
		}
	}

	l := Lead{
		ID:         uuid.New(),
		PracticeID: req.PracticeID,
		PatientID:  req.PatientID,
		CallID:     req.CallID,
		Status:     req.Status,
		Priority:   req.Priority,
		Source:     req.Source,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if l.Priority == "" {
		l.Priority = PriorityNormal
	}
	r.leads[l.ID] = l
	if req.CallID != nil {
		r.byCall[*req.CallID] = l.ID
	}
	return &l, nil
}

func (r *InMemoryRepository) ExistsForCall(_ context.Context, callID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCall[callID]
	return ok, nil
}

func (r *InMemoryRepository) ListByPractice(_ context.Context, practiceID uuid.UUID, limit int) ([]Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Lead, 0)
	for _, l := range r.leads {
		if l.PracticeID == practiceID {
			out = append(out, l)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
