package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresRepository_Create_Defaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	practiceID := uuid.New()
	callID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO leads(.|\n)*RETURNING`).
		WithArgs(practiceID, (*uuid.UUID)(nil), &callID,
			StatusNew, PriorityNormal, SourcePhoneCall, "Auto-generated from call analysis: No summary available.").
		WillReturnRows(mock.NewRows([]string{
			"id", "practice_id", "patient_id", "call_id",
			"status", "priority", "lead_source", "notes", "created_at", "updated_at",
		}).AddRow(
			uuid.New(), practiceID, (*uuid.UUID)(nil), &callID,
			StatusNew, PriorityNormal, SourcePhoneCall,
			"Auto-generated from call analysis: No summary available.", now, now,
		))

	l, err := repo.Create(context.Background(), CreateRequest{
		PracticeID: practiceID,
		CallID:     &callID,
		Source:     SourcePhoneCall,
		Notes:      "Auto-generated from call analysis: No summary available.",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if l.Status != StatusNew {
		t.Errorf("expected default status %q, got %q", StatusNew, l.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Create_DuplicateCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	callID := uuid.New()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "leads_call_id_key"})

	_, err = repo.Create(context.Background(), CreateRequest{
		PracticeID: uuid.New(),
		CallID:     &callID,
		Source:     SourcePhoneCall,
	})
	if !errors.Is(err, ErrDuplicateCallLead) {
		t.Errorf("expected ErrDuplicateCallLead, got %v", err)
	}
}

func TestInMemoryRepository_OneLeadPerCall(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	callID := uuid.New()

	if _, err := repo.Create(ctx, CreateRequest{PracticeID: uuid.New(), CallID: &callID, Source: SourcePhoneCall}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := repo.Create(ctx, CreateRequest{PracticeID: uuid.New(), CallID: &callID, Source: SourcePhoneCall})
	if !errors.Is(err, ErrDuplicateCallLead) {
		t.Errorf("expected ErrDuplicateCallLead, got %v", err)
	}

	ok, err := repo.ExistsForCall(ctx, callID)
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !ok {
		t.Errorf("expected lead to exist for call %s", callID)
	}
}
