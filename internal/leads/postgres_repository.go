package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const leadColumns = `id, practice_id, patient_id, call_id,
	status, priority, lead_source, COALESCE(notes, ''), created_at, updated_at`

// uniqueViolation is the Postgres error code raised by the unique index on
// leads.call_id.
const uniqueViolation = "23505"

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db Querier
}

func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("leads: nil db passed to NewPostgresRepository")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, req CreateRequest) (*Lead, error) {
	if req.Status == "" {
		req.Status = StatusNew
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}

	query := `
		INSERT INTO leads (practice_id, patient_id, call_id, status, priority, lead_source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING ` + leadColumns

	row := r.db.QueryRow(ctx, query,
		req.PracticeID, req.PatientID, req.CallID,
		req.Status, req.Priority, req.Source, req.Notes,
	)
	l, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateCallLead
		}
		return nil, fmt.Errorf("leads: failed to create lead: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) ExistsForCall(ctx context.Context, callID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM leads WHERE call_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, callID).Scan(&exists); err != nil {
		return false, fmt.Errorf("leads: failed to check leads for call %s: %w", callID, err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, practiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: failed to list leads for practice %s: %w", practiceID, err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: failed to scan lead row: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: failed to iterate lead rows: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.PracticeID, &l.PatientID, &l.CallID,
		&l.Status, &l.Priority, &l.Source, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
