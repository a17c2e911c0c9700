package calls

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCallNotFound is returned when no call matches the lookup.
var ErrCallNotFound = errors.New("calls: call not found")

// Repository stores call records.
type Repository interface {
	// Upsert inserts the call or, when a row with the same platform call id
	// already exists, updates it in place. The returned id is stable across
	// repeated deliveries of the same report.
	Upsert(ctx context.Context, req UpsertRequest) (*Call, error)
	GetByVapiCallID(ctx context.Context, vapiCallID string) (*Call, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Call, error)
}

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]Call
	byKey map[string]uuid.UUID
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:  make(map[uuid.UUID]Call),
		byKey: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRepository) Upsert(_ context.Context, req UpsertRequest) (*Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[req.VapiCallID]
	if !ok {
		id = uuid.New()
		r.byKey[req.VapiCallID] = id
	}
	existing, had := r.byID[id]

	c := Call{
		ID:              id,
		PracticeID:      req.PracticeID,
		VapiCallID:      req.VapiCallID,
		CallerNumber:    req.CallerNumber,
		Status:          req.Status,
		DurationSeconds: req.DurationSeconds,
		Transcript:      req.Transcript,
		Summary:         req.Summary,
		RecordingURL:    req.RecordingURL,
		Direction:       req.Direction,
		Outcome:         req.Outcome,
		StartedAt:       req.StartedAt,
		EndedAt:         req.EndedAt,
		CreatedAt:       time.Now().UTC(),
	}
	if had {
		c.CreatedAt = existing.CreatedAt
	}
	r.byID[id] = c
	return &c, nil
}

func (r *InMemoryRepository) GetByVapiCallID(_ context.Context, vapiCallID string) (*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[vapiCallID]
	if !ok {
		return nil, ErrCallNotFound
	}
	c := r.byID[id]
	return &c, nil
}

func (r *InMemoryRepository) ListByPractice(_ context.Context, practiceID uuid.UUID, limit int) ([]Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Call, 0)
	for _, c := range r.byID {
		if c.PracticeID == practiceID {
			out = append(out, c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
