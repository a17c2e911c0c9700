package messages

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// Store logs messages.
type Store interface {
	Insert(ctx context.Context, req InsertRequest) (*Message, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Message, error)
}

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const messageColumns = `id, practice_id, patient_id, direction, from_number, to_number,
	body, status, COALESCE(provider, ''), COALESCE(provider_sid, ''),
	COALESCE(related_type, ''), related_id, created_at`

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("messages: nil db passed to NewPostgresStore")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, req InsertRequest) (*Message, error) {
	query := `
		INSERT INTO messages (
			practice_id, patient_id, direction, from_number, to_number,
			body, status, provider, provider_sid, related_type, related_id
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11
		)
		RETURNING ` + messageColumns

	row := s.db.QueryRow(ctx, query,
		req.PracticeID, req.PatientID, req.Direction,
		phone.NormalizeE164(req.FromNumber), phone.NormalizeE164(req.ToNumber),
		req.Body, req.Status, req.Provider, req.ProviderSID, req.RelatedType, req.RelatedID,
	)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("messages: failed to insert message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, practiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("messages: failed to list messages for practice %s: %w", practiceID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("messages: failed to scan message row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: failed to iterate message rows: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.PracticeID, &m.PatientID, &m.Direction, &m.FromNumber, &m.ToNumber,
		&m.Body, &m.Status, &m.Provider, &m.ProviderSID,
		&m.RelatedType, &m.RelatedID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InMemoryStore is a slice-backed Store for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, req InsertRequest) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Message{
		ID:          uuid.New(),
		PracticeID:  req.PracticeID,
		PatientID:   req.PatientID,
		Direction:   req.Direction,
		FromNumber:  phone.NormalizeE164(req.FromNumber),
		ToNumber:    phone.NormalizeE164(req.ToNumber),
		Body:        req.Body,
		Status:      req.Status,
		Provider:    req.Provider,
		ProviderSID: req.ProviderSID,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		CreatedAt:   time.Now().UTC(),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *InMemoryStore) ListByPractice(_ context.Context, practiceID uuid.UUID, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0)
	for _, m := range s.messages {
		if m.PracticeID == practiceID {
			out = append(out, m)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every logged message, oldest first.
func (s *InMemoryStore) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
