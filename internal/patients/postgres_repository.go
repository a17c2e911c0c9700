package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentalops/dental-ai-platform/internal/phone"
)

// Querier is the pgx pool surface the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const patientColumns = `id, practice_id, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''), patient_type, COALESCE(source, ''), created_at`

// GetByPhone implements Repository.
func (r *PostgresRepository) GetByPhone(ctx context.Context, practiceID uuid.UUID, phoneNumber string) (*Patient, error) {
	normalized := phone.NormalizeE164(phoneNumber)
	if normalized == "" {
		return nil, ErrPatientNotFound
	}
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE practice_id = $1 AND phone = $2
		LIMIT 1`
	return r.scan(r.pool.QueryRow(ctx, query, practiceID, normalized))
}

// GetByEmail implements Repository.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	if email == "" {
		return nil, ErrPatientNotFound
	}
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE email = $1
		LIMIT 1`
	return r.scan(r.pool.QueryRow(ctx, query, email))
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, req CreateRequest) (*Patient, error) {
	first, last := SplitName(req.Name)
	patientType := req.Type
	if patientType == "" {
		patientType = TypeNew
	}
	id := uuid.New()
	query := `
		INSERT INTO patients (id, practice_id, first_name, last_name, email, phone, patient_type, source)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''))
		RETURNING created_at`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.PracticeID,
		first,
		last,
		req.Email,
		phone.NormalizeE164(req.Phone),
		patientType,
		req.Source,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}
	return &Patient{
		ID:         id,
		PracticeID: req.PracticeID,
		FirstName:  first,
		LastName:   last,
		Email:      req.Email,
		Phone:      phone.NormalizeE164(req.Phone),
		Type:       patientType,
		Source:     req.Source,
		CreatedAt:  createdAt,
	}, nil
}

func (r *PostgresRepository) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.PracticeID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.Type,
		&p.Source,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &p, nil
}
