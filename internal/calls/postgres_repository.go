package calls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by the repository, kept as an
// interface so pgxmock can stand in during tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const callColumns = `id, practice_id, vapi_call_id,
	COALESCE(caller_number, ''), COALESCE(status, ''), COALESCE(duration_seconds, 0),
	COALESCE(transcript, ''), COALESCE(summary, ''), COALESCE(recording_url, ''),
	COALESCE(direction, ''), COALESCE(outcome, ''), started_at, ended_at, created_at`

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db Querier
}

func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("calls: nil db passed to NewPostgresRepository")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, req UpsertRequest) (*Call, error) {
	query := `
		INSERT INTO calls (
			practice_id, vapi_call_id, caller_number, status, duration_seconds,
			transcript, summary, recording_url, direction, outcome, started_at, ended_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), $5,
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12
		)
		ON CONFLICT (vapi_call_id) DO UPDATE SET
			caller_number    = COALESCE(EXCLUDED.caller_number, calls.caller_number),
			status           = COALESCE(EXCLUDED.status, calls.status),
			duration_seconds = EXCLUDED.duration_seconds,
			transcript       = COALESCE(EXCLUDED.transcript, calls.transcript),
			summary          = COALESCE(EXCLUDED.summary, calls.summary),
			recording_url    = COALESCE(EXCLUDED.recording_url, calls.recording_url),
			direction        = COALESCE(EXCLUDED.direction, calls.direction),
			outcome          = COALESCE(EXCLUDED.outcome, calls.outcome),
			started_at       = COALESCE(EXCLUDED.started_at, calls.started_at),
			ended_at         = COALESCE(EXCLUDED.ended_at, calls.ended_at)
		RETURNING ` + callColumns

	row := r.db.QueryRow(ctx, query,
		req.PracticeID, req.VapiCallID, req.CallerNumber, req.Status, req.DurationSeconds,
		req.Transcript, req.Summary, req.RecordingURL, req.Direction, req.Outcome,
		req.StartedAt, req.EndedAt,
	)
	c, err := scanCall(row)
	if err != nil {
		return nil, fmt.Errorf("calls: failed to upsert call %s: %w", req.VapiCallID, err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByVapiCallID(ctx context.Context, vapiCallID string) (*Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE vapi_call_id = $1`

	c, err := scanCall(r.db.QueryRow(ctx, query, vapiCallID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: failed to get call %s: %w", vapiCallID, err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + callColumns + ` FROM calls
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, practiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: failed to list calls for practice %s: %w", practiceID, err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("calls: failed to scan call row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: failed to iterate call rows: %w", err)
	}
	return out, nil
}

func scanCall(row pgx.Row) (*Call, error) {
	var c Call
	err := row.Scan(
		&c.ID, &c.PracticeID, &c.VapiCallID,
		&c.CallerNumber, &c.Status, &c.DurationSeconds,
		&c.Transcript, &c.Summary, &c.RecordingURL,
		&c.Direction, &c.Outcome, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
