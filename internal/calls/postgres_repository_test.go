package calls

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func callRows(mock pgxmock.PgxPoolIface, c Call) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "practice_id", "vapi_call_id",
		"caller_number", "status", "duration_seconds",
		"transcript", "summary", "recording_url",
		"direction", "outcome", "started_at", "ended_at", "created_at",
	}).AddRow(
		c.ID, c.PracticeID, c.VapiCallID,
		c.CallerNumber, c.Status, c.DurationSeconds,
		c.Transcript, c.Summary, c.RecordingURL,
		c.Direction, c.Outcome, c.StartedAt, c.EndedAt, c.CreatedAt,
	)
}

func TestPostgresRepository_Upsert_StableIDOnRedelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	callID := uuid.New()
	practiceID := uuid.New()
	now := time.Now().UTC()

	stored := Call{
		ID:              callID,
		PracticeID:      practiceID,
		VapiCallID:      "vapi-call-123",
		CallerNumber:    "+15551234567",
		Status:          "ended",
		DurationSeconds: 95,
		Summary:         "Caller asked about cleanings.",
		Direction:       DirectionInbound,
		CreatedAt:       now,
	}

	// Two deliveries of the same end-of-call report hit the conflict clause
	// and both resolve to the same row.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`INSERT INTO calls(.|\n)*ON CONFLICT \(vapi_call_id\) DO UPDATE`).
			WithArgs(practiceID, "vapi-call-123", "+15551234567", "ended", 95,
				"", "Caller asked about cleanings.", "", DirectionInbound, "",
				(*time.Time)(nil), (*time.Time)(nil)).
			WillReturnRows(callRows(mock, stored))
	}

	req := UpsertRequest{
		PracticeID:      practiceID,
		VapiCallID:      "vapi-call-123",
		CallerNumber:    "+15551234567",
		Status:          "ended",
		DurationSeconds: 95,
		Summary:         "Caller asked about cleanings.",
		Direction:       DirectionInbound,
	}

	first, err := repo.Upsert(context.Background(), req)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := repo.Upsert(context.Background(), req)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected stable id across redelivery, got %s and %s", first.ID, second.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByVapiCallID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`SELECT(.|\n)*FROM calls WHERE vapi_call_id`).
		WithArgs("missing").
		WillReturnRows(mock.NewRows([]string{"id"}))

	_, err = repo.GetByVapiCallID(context.Background(), "missing")
	if err != ErrCallNotFound {
		t.Errorf("expected ErrCallNotFound, got %v", err)
	}
}

func TestInMemoryRepository_UpsertPreservesCreatedAt(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, UpsertRequest{PracticeID: uuid.New(), VapiCallID: "abc", DurationSeconds: 10})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	second, err := repo.Upsert(ctx, UpsertRequest{PracticeID: first.PracticeID, VapiCallID: "abc", DurationSeconds: 20})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected stable id, got %s and %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("expected created_at preserved across upserts")
	}
	if second.DurationSeconds != 20 {
		t.Errorf("expected duration updated, got %d", second.DurationSeconds)
	}
}
