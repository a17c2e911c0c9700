package bookings

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

const bookingColumns = `id, practice_id, patient_id,
	COALESCE(vapi_call_id, ''), COALESCE(calendar_event_id, ''),
	appointment_type, status, start_time, end_time, COALESCE(notes, ''),
	created_at, updated_at`

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db Querier
}

func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("bookings: nil db passed to NewPostgresRepository")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if req.AppointmentType == "" {
		req.AppointmentType = DefaultAppointmentType
	}
	if req.EndTime.IsZero() {
		req.EndTime = req.StartTime.Add(DefaultDuration)
	}

	query := `
		INSERT INTO bookings (
			practice_id, patient_id, vapi_call_id, calendar_event_id,
			appointment_type, status, start_time, end_time, notes
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''),
			$5, $6, $7, $8, NULLIF($9, '')
		)
		RETURNING ` + bookingColumns

	row := r.db.QueryRow(ctx, query,
		req.PracticeID, req.PatientID, req.VapiCallID, req.CalendarEventID,
		req.AppointmentType, StatusConfirmed, req.StartTime, req.EndTime, req.Notes,
	)
	b, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("bookings: failed to create booking: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) ExistsForCallID(ctx context.Context, vapiCallID string) (bool, error) {
	if vapiCallID == "" {
		return false, nil
	}
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE vapi_call_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, vapiCallID).Scan(&exists); err != nil {
		return false, fmt.Errorf("bookings: failed to check bookings for call %s: %w", vapiCallID, err)
	}
	return exists, nil
}

// LatestConfirmedForPatient returns the most recently created confirmed
// booking, not the one furthest in the future; a reschedule made after an
// earlier booking is the one the patient is texting about.
func (r *PostgresRepository) LatestConfirmedForPatient(ctx context.Context, practiceID, patientID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE practice_id = $1 AND patient_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`

	b, err := scanBooking(r.db.QueryRow(ctx, query, practiceID, patientID, StatusConfirmed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: failed to get latest confirmed booking: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.db.Exec(ctx, query, StatusCancelled, id)
	if err != nil {
		return fmt.Errorf("bookings: failed to cancel booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE practice_id = $1
		ORDER BY start_time DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, practiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: failed to list bookings for practice %s: %w", practiceID, err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: failed to scan booking row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: failed to iterate booking rows: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.PracticeID, &b.PatientID,
		&b.VapiCallID, &b.CalendarEventID,
		&b.AppointmentType, &b.Status, &b.StartTime, &b.EndTime, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
