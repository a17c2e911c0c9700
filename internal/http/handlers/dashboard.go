// Package handlers holds the admin dashboard JSON API. These endpoints run
// read-only reporting queries and sit behind the admin JWT middleware.
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

// DashboardHandler serves practice-level reporting endpoints.
type DashboardHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewDashboardHandler(db *sql.DB, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{db: db, logger: logger.Component("dashboard")}
}

// OverviewResponse summarizes the last 30 days of activity.
type OverviewResponse struct {
	PracticeID      string `json:"practice_id"`
	TotalCalls      int    `json:"total_calls"`
	TotalBookings   int    `json:"total_bookings"`
	OpenLeads       int    `json:"open_leads"`
	MessagesInbound int    `json:"messages_inbound"`
}

// CallResponse is one call in the dashboard list.
type CallResponse struct {
	ID              string `json:"id"`
	CallerNumber    string `json:"caller_number,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Summary         string `json:"summary,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// LeadResponse is one lead in the dashboard list.
type LeadResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Source    string `json:"lead_source"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Overview handles GET /api/dashboard/practices/{practiceID}/overview.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	practiceID, ok := h.practiceID(w, r)
	if !ok {
		return
	}

	const query = `
		SELECT
			(SELECT COUNT(*) FROM calls WHERE practice_id = $1 AND created_at > NOW() - INTERVAL '30 days'),
			(SELECT COUNT(*) FROM bookings WHERE practice_id = $1 AND created_at > NOW() - INTERVAL '30 days'),
			(SELECT COUNT(*) FROM leads WHERE practice_id = $1 AND status IN ('new', 'contacted', 'interested')),
			(SELECT COUNT(*) FROM messages WHERE practice_id = $1 AND direction = 'inbound' AND created_at > NOW() - INTERVAL '30 days')`

	resp := OverviewResponse{PracticeID: practiceID.String()}
	err := h.db.QueryRowContext(r.Context(), query, practiceID).Scan(
		&resp.TotalCalls, &resp.TotalBookings, &resp.OpenLeads, &resp.MessagesInbound,
	)
	if err != nil {
		h.logger.Error("failed to load overview", "error", err, "practice_id", practiceID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCalls handles GET /api/dashboard/practices/{practiceID}/calls.
func (h *DashboardHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	practiceID, ok := h.practiceID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r)

	const query = `
		SELECT id, COALESCE(caller_number, ''), COALESCE(duration_seconds, 0), COALESCE(summary, ''), created_at
		FROM calls
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := h.db.QueryContext(r.Context(), query, practiceID, limit)
	if err != nil {
		h.logger.Error("failed to list calls", "error", err, "practice_id", practiceID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	calls := make([]CallResponse, 0)
	for rows.Next() {
		var (
			c  CallResponse
			at time.Time
		)
		if err := rows.Scan(&c.ID, &c.CallerNumber, &c.DurationSeconds, &c.Summary, &at); err != nil {
			h.logger.Error("failed to scan call row", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		c.CreatedAt = at.Format(time.RFC3339)
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to iterate call rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

// ListLeads handles GET /api/dashboard/practices/{practiceID}/leads.
func (h *DashboardHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	practiceID, ok := h.practiceID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r)

	const query = `
		SELECT id, status, priority, lead_source, COALESCE(notes, ''), created_at
		FROM leads
		WHERE practice_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := h.db.QueryContext(r.Context(), query, practiceID, limit)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err, "practice_id", practiceID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := make([]LeadResponse, 0)
	for rows.Next() {
		var (
			l  LeadResponse
			at time.Time
		)
		if err := rows.Scan(&l.ID, &l.Status, &l.Priority, &l.Source, &l.Notes, &at); err != nil {
			h.logger.Error("failed to scan lead row", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		l.CreatedAt = at.Format(time.RFC3339)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to iterate lead rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out})
}

func (h *DashboardHandler) practiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "practiceID")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid practice id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
