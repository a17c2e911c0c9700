package practices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// Querier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores practices in the relational database.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("practices: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const practiceColumns = `
	id, name, phone_number, forwarding_number,
	ai_voice, ai_voice_provider, ai_tone, ai_greeting,
	transfer_keywords, emergency_keywords, office_hours,
	calcom_api_key, calcom_event_type_id, created_at, updated_at`

// GetByID fetches a practice.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Practice, error) {
	query := `SELECT` + practiceColumns + `
		FROM practices
		WHERE id = $1`
	return r.scanPractice(r.pool.QueryRow(ctx, query, id))
}

// GetByNumber matches on destination or forwarding number, falling back to
// provisioned numbers that have not been stamped onto the practice yet. The
// input is normalized to E.164 before comparison.
func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (*Practice, error) {
	normalized := phone.NormalizeE164(number)
	if normalized == "" {
		return nil, ErrPracticeNotFound
	}
	query := `SELECT` + practiceColumns + `
		FROM practices
		WHERE phone_number = $1 OR forwarding_number = $1
			OR id IN (SELECT practice_id FROM phone_numbers WHERE phone_number = $1 AND status = 'active')
		LIMIT 1`
	return r.scanPractice(r.pool.QueryRow(ctx, query, normalized))
}

// ListKnowledge returns knowledge entries for the practice in insertion order.
func (r *PostgresRepository) ListKnowledge(ctx context.Context, practiceID uuid.UUID) ([]KnowledgeEntry, error) {
	query := `
		SELECT id, practice_id, category, COALESCE(question, ''), content, created_at
		FROM knowledge_base
		WHERE practice_id = $1
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("practices: list knowledge: %w", err)
	}
	defer rows.Close()

	var entries []KnowledgeEntry
	for rows.Next() {
		var e KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.PracticeID, &e.Category, &e.Question, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("practices: scan knowledge: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdatePhoneNumber assigns a provisioned number to the practice.
func (r *PostgresRepository) UpdatePhoneNumber(ctx context.Context, id uuid.UUID, number string) error {
	query := `UPDATE practices SET phone_number = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, phone.NormalizeE164(number), id)
	if err != nil {
		return fmt.Errorf("practices: update phone number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPracticeNotFound
	}
	return nil
}

func (r *PostgresRepository) scanPractice(row pgx.Row) (*Practice, error) {
	var (
		p          Practice
		forwarding *string
		hoursJSON  []byte
		calKey     *string
		calEvent   *string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&forwarding,
		&p.AIVoice,
		&p.AIVoiceProvider,
		&p.AITone,
		&p.AIGreeting,
		&p.TransferKeywords,
		&p.EmergencyKeywords,
		&hoursJSON,
		&calKey,
		&calEvent,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPracticeNotFound
		}
		return nil, fmt.Errorf("practices: select failed: %w", err)
	}
	if forwarding != nil {
		p.ForwardingNumber = *forwarding
	}
	if calKey != nil {
		p.CalComAPIKey = *calKey
	}
	if calEvent != nil {
		p.CalComEventTypeID = *calEvent
	}
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &p.OfficeHours); err != nil {
			return nil, fmt.Errorf("practices: decode office hours: %w", err)
		}
	}
	return &p, nil
}
