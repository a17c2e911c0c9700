package practices

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// ErrPracticeNotFound is returned when no practice matches a lookup. Callers
// must treat this as a valid outcome and fall back to generic behavior.
var ErrPracticeNotFound = errors.New("practices: practice not found")

// Repository provides persistence for practices and their knowledge entries.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Practice, error)
	// GetByNumber matches a practice whose destination or forwarding number
	// equals the given E.164 number.
	GetByNumber(ctx context.Context, number string) (*Practice, error)
	ListKnowledge(ctx context.Context, practiceID uuid.UUID) ([]KnowledgeEntry, error)
	// UpdatePhoneNumber assigns a newly provisioned destination number.
	UpdatePhoneNumber(ctx context.Context, id uuid.UUID, number string) error
}

// InMemoryRepository is a map-backed Repository for tests and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*Practice
	knowledge map[uuid.UUID][]KnowledgeEntry
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:      make(map[uuid.UUID]*Practice),
		knowledge: make(map[uuid.UUID][]KnowledgeEntry),
	}
}

// Put stores a practice, normalizing its numbers.
func (r *InMemoryRepository) Put(p *Practice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.PhoneNumber = phone.NormalizeE164(p.PhoneNumber)
	p.ForwardingNumber = phone.NormalizeE164(p.ForwardingNumber)
	r.byID[p.ID] = p
}

// PutKnowledge stores knowledge entries for a practice, in order.
func (r *InMemoryRepository) PutKnowledge(practiceID uuid.UUID, entries []KnowledgeEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.knowledge[practiceID] = entries
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Practice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPracticeNotFound
	}
	return p, nil
}

// GetByNumber implements Repository.
func (r *InMemoryRepository) GetByNumber(ctx context.Context, number string) (*Practice, error) {
	normalized := phone.NormalizeE164(number)
	if normalized == "" {
		return nil, ErrPracticeNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.PhoneNumber == normalized || (p.ForwardingNumber != "" && p.ForwardingNumber == normalized) {
			return p, nil
		}
	}
	return nil, ErrPracticeNotFound
}

// ListKnowledge implements Repository.
func (r *InMemoryRepository) ListKnowledge(ctx context.Context, practiceID uuid.UUID) ([]KnowledgeEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knowledge[practiceID], nil
}

// UpdatePhoneNumber implements Repository.
func (r *InMemoryRepository) UpdatePhoneNumber(ctx context.Context, id uuid.UUID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrPracticeNotFound
	}
	p.PhoneNumber = phone.NormalizeE164(number)
	return nil
}
