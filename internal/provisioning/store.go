package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// ErrNumberNotFound is returned when no phone number row matches.
var ErrNumberNotFound = errors.New("provisioning: phone number not found")

// Store persists phone number rows.
type Store interface {
	// CreatePending records an in-flight provisioning attempt before any
	// money is spent.
	CreatePending(ctx context.Context, practiceID uuid.UUID, assistantID string) (*PhoneNumber, error)
	// Activate fills in the purchased number's identifiers and marks it
	// active and primary. Any previous primary for the practice is demoted.
	Activate(ctx context.Context, id uuid.UUID, number, twilioSID, vapiNumberID string) (*PhoneNumber, error)
	GetByNumber(ctx context.Context, number string) (*PhoneNumber, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID) ([]PhoneNumber, error)
}

// Querier is the subset of pgxpool.Pool used by the store.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const numberColumns = `id, practice_id, COALESCE(phone_number, ''), COALESCE(twilio_sid, ''),
	COALESCE(vapi_number_id, ''), COALESCE(assistant_id, ''), status, is_primary, created_at, updated_at`

// PostgresStore implements Store on Postgres.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("provisioning: nil db passed to NewPostgresStore")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreatePending(ctx context.Context, practiceID uuid.UUID, assistantID string) (*PhoneNumber, error) {
	query := `
		INSERT INTO phone_numbers (practice_id, assistant_id, status, is_primary)
		VALUES ($1, NULLIF($2, ''), $3, FALSE)
		RETURNING ` + numberColumns

	n, err := scanNumber(s.db.QueryRow(ctx, query, practiceID, assistantID, StatusPending))
	if err != nil {
		return nil, fmt.Errorf("provisioning: failed to create pending number: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Activate(ctx context.Context, id uuid.UUID, number, twilioSID, vapiNumberID string) (*PhoneNumber, error) {
	normalized := phone.NormalizeE164(number)

	// Demote the previous primary first; the partial unique index allows
	// only one primary per practice.
	demote := `UPDATE phone_numbers SET is_primary = FALSE, updated_at = NOW()
		WHERE practice_id = (SELECT practice_id FROM phone_numbers WHERE id = $1) AND is_primary`
	if _, err := s.db.Exec(ctx, demote, id); err != nil {
		return nil, fmt.Errorf("provisioning: failed to demote primary number: %w", err)
	}

	query := `
		UPDATE phone_numbers SET
			phone_number = $1, twilio_sid = $2, vapi_number_id = $3,
			status = $4, is_primary = TRUE, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + numberColumns

	n, err := scanNumber(s.db.QueryRow(ctx, query, normalized, twilioSID, vapiNumberID, StatusActive, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNumberNotFound
		}
		return nil, fmt.Errorf("provisioning: failed to activate number %s: %w", id, err)
	}
	return n, nil
}

func (s *PostgresStore) GetByNumber(ctx context.Context, number string) (*PhoneNumber, error) {
	normalized := phone.NormalizeE164(number)
	if normalized == "" {
		return nil, ErrNumberNotFound
	}
	query := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE phone_number = $1`

	n, err := scanNumber(s.db.QueryRow(ctx, query, normalized))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNumberNotFound
		}
		return nil, fmt.Errorf("provisioning: failed to get number %s: %w", normalized, err)
	}
	return n, nil
}

func (s *PostgresStore) ListByPractice(ctx context.Context, practiceID uuid.UUID) ([]PhoneNumber, error) {
	query := `SELECT ` + numberColumns + ` FROM phone_numbers
		WHERE practice_id = $1
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("provisioning: failed to list numbers for practice %s: %w", practiceID, err)
	}
	defer rows.Close()

	var out []PhoneNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, fmt.Errorf("provisioning: failed to scan number row: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("provisioning: failed to iterate number rows: %w", err)
	}
	return out, nil
}

func scanNumber(row pgx.Row) (*PhoneNumber, error) {
	var n PhoneNumber
	err := row.Scan(
		&n.ID, &n.PracticeID, &n.Number, &n.TwilioSID,
		&n.VapiNumberID, &n.AssistantID, &n.Status, &n.IsPrimary, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// InMemoryStore is a map-backed Store for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	numbers map[uuid.UUID]PhoneNumber
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{numbers: make(map[uuid.UUID]PhoneNumber)}
}

func (s *InMemoryStore) CreatePending(_ context.Context, practiceID uuid.UUID, assistantID string) (*PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := PhoneNumber{
		ID:          uuid.New(),
		PracticeID:  practiceID,
		AssistantID: assistantID,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	s.numbers[n.ID] = n
	return &n, nil
}

func (s *InMemoryStore) Activate(_ context.Context, id uuid.UUID, number, twilioSID, vapiNumberID string) (*PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.numbers[id]
	if !ok {
		return nil, ErrNumberNotFound
	}
	for otherID, other := range s.numbers {
		if other.PracticeID == n.PracticeID && other.IsPrimary {
			other.IsPrimary = false
			s.numbers[otherID] = other
		}
	}
	n.Number = phone.NormalizeE164(number)
	n.TwilioSID = twilioSID
	n.VapiNumberID = vapiNumberID
	n.Status = StatusActive
	n.IsPrimary = true
	n.UpdatedAt = time.Now().UTC()
	s.numbers[id] = n
	return &n, nil
}

func (s *InMemoryStore) GetByNumber(_ context.Context, number string) (*PhoneNumber, error) {
	normalized := phone.NormalizeE164(number)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.numbers {
		if n.Number == normalized {
			cp := n
			return &cp, nil
		}
	}
	return nil, ErrNumberNotFound
}

func (s *InMemoryStore) ListByPractice(_ context.Context, practiceID uuid.UUID) ([]PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PhoneNumber, 0)
	for _, n := range s.numbers {
		if n.PracticeID == practiceID {
			out = append(out, n)
		}
	}
	return out, nil
}
