package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func dashboardRequest(t *testing.T, h *DashboardHandler, route string, practiceID string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/api/dashboard/practices/{practiceID}/"+route, fn)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/practices/"+practiceID+"/"+route, nil).
		WithContext(context.Background())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDashboard_Overview(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h := NewDashboardHandler(db, nil)
	practiceID := uuid.New()

	mock.ExpectQuery(`SELECT(.|\n)*FROM calls(.|\n)*FROM bookings(.|\n)*FROM leads(.|\n)*FROM messages`).
		WithArgs(practiceID).
		WillReturnRows(sqlmock.NewRows([]string{"calls", "bookings", "leads", "messages"}).
			AddRow(42, 11, 3, 17))

	rec := dashboardRequest(t, h, "overview", practiceID.String(), h.Overview)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp OverviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.TotalCalls != 42 || resp.TotalBookings != 11 || resp.OpenLeads != 3 || resp.MessagesInbound != 17 {
		t.Errorf("unexpected overview: %+v", resp)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDashboard_ListCalls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h := NewDashboardHandler(db, nil)
	practiceID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT(.|\n)*FROM calls`).
		WithArgs(practiceID, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "caller_number", "duration_seconds", "summary", "created_at"}).
			AddRow(uuid.NewString(), "+15551234567", 95, "Asked about crowns.", now).
			AddRow(uuid.NewString(), "", 8, "", now.Add(-time.Hour)))

	rec := dashboardRequest(t, h, "calls", practiceID.String(), h.ListCalls)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Calls []CallResponse `json:"calls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(resp.Calls))
	}
	if resp.Calls[0].Summary != "Asked about crowns." {
		t.Errorf("unexpected first call: %+v", resp.Calls[0])
	}
}

func TestDashboard_ListLeads(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h := NewDashboardHandler(db, nil)
	practiceID := uuid.New()

	mock.ExpectQuery(`SELECT(.|\n)*FROM leads`).
		WithArgs(practiceID, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "priority", "lead_source", "notes", "created_at"}).
			AddRow(uuid.NewString(), "new", "normal", "phone_call", "Auto-generated from call analysis: x", time.Now()))

	rec := dashboardRequest(t, h, "leads", practiceID.String(), h.ListLeads)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Leads []LeadResponse `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Leads) != 1 || resp.Leads[0].Status != "new" {
		t.Errorf("unexpected leads: %+v", resp.Leads)
	}
}

func TestDashboard_InvalidPracticeID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h := NewDashboardHandler(db, nil)
	rec := dashboardRequest(t, h, "overview", "not-a-uuid", h.Overview)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
