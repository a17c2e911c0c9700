package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/calls"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/practices"
)

const testSecret = "webhook-secret"

type handlerFixture struct {
	handler  *Handler
	practice *practices.Practice
	calls    *calls.InMemoryRepository
	leads    *leads.InMemoryRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	practiceRepo := practices.NewInMemoryRepository()
	practice := &practices.Practice{
		ID:          uuid.New(),
		Name:        "Bright Smile Dental",
		PhoneNumber: "+15559876543",
		AIVoice:     "jennifer",
	}
	practiceRepo.Put(practice)
	practiceRepo.PutKnowledge(practice.ID, []practices.KnowledgeEntry{
		{PracticeID: practice.ID, Question: "Parking?", Content: "Lot behind the building."},
	})

	callRepo := calls.NewInMemoryRepository()
	bookingRepo := bookings.NewInMemoryRepository()
	leadRepo := leads.NewInMemoryRepository()
	patientRepo := patients.NewInMemoryRepository()

	dispatcher := NewDispatcher(DispatcherConfig{
		Calendar: &fakeCalendar{slots: json.RawMessage(`{"2026-03-10":[]}`)},
		Patients: patientRepo,
		Bookings: bookingRepo,
	})
	reconciler := NewReconciler(ReconcilerConfig{
		Calls:    callRepo,
		Bookings: bookingRepo,
		Leads:    leadRepo,
		Patients: patientRepo,
	})

	h := NewHandler(HandlerConfig{
		Secret:     testSecret,
		Resolver:   practices.NewResolver(practiceRepo, nil, 0, nil),
		Practices:  practiceRepo,
		Builder:    assistant.NewBuilder("https://api.example.com/webhooks/vapi", testSecret),
		Dispatcher: dispatcher,
		Reconciler: reconciler,
	})
	return &handlerFixture{handler: h, practice: practice, calls: callRepo, leads: leadRepo}
}

func postWebhook(t *testing.T, h *Handler, secret string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/vapi", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("x-vapi-secret", secret)
	}
	rec := httptest.NewRecorder()
	h.VapiWebhook(rec, req)
	return rec
}

func envelope(msgType, callID, destination string, extra func(*WebhookMessage)) Envelope {
	msg := WebhookMessage{
		Type: msgType,
		Call: &Call{
			ID:          callID,
			Customer:    &Customer{Number: "+15551234567"},
			PhoneNumber: &PhoneNumber{Number: destination},
		},
	}
	if extra != nil {
		extra(&msg)
	}
	return Envelope{Message: msg}
}

func TestVapiWebhook_RejectsBadSecret(t *testing.T) {
	f := newHandlerFixture(t)

	for _, secret := range []string{"", "wrong"} {
		rec := postWebhook(t, f.handler, secret, envelope(TypeEndOfCallReport, "vapi-1", "+15559876543", func(m *WebhookMessage) {
			m.DurationSeconds = 60
		}))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: expected 401, got %d", secret, rec.Code)
		}
	}

	// Nothing was processed.
	if _, err := f.calls.GetByVapiCallID(context.Background(), "vapi-1"); !errors.Is(err, calls.ErrCallNotFound) {
		t.Errorf("rejected webhook must not persist calls")
	}
}

func TestVapiWebhook_AssistantRequest(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeAssistantRequest, "vapi-1", "+15559876543", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Assistant *assistant.Config `json:"assistant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Assistant == nil {
		t.Fatal("expected assistant config")
	}
	if resp.Assistant.Name != "Bright Smile Dental Receptionist" {
		t.Errorf("unexpected assistant name %q", resp.Assistant.Name)
	}
	prompt := resp.Assistant.Model.Messages[0].Content
	if !bytes.Contains([]byte(prompt), []byte("Lot behind the building.")) {
		t.Errorf("knowledge base missing from prompt")
	}
}

func TestVapiWebhook_AssistantRequest_UnknownNumber(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeAssistantRequest, "vapi-1", "+15550000000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if _, ok := resp["assistant"]; ok {
		t.Errorf("unknown number must not get an assistant, got %s", rec.Body.String())
	}
}

func TestVapiWebhook_ToolCalls(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeToolCalls, "vapi-1", "+15559876543", func(m *WebhookMessage) {
		m.ToolCalls = []ToolCall{
			{ID: "t1", Function: ToolFunction{Name: "checkAvailability", Arguments: json.RawMessage(
				`{"startTime":"2026-03-10T00:00:00Z","endTime":"2026-03-11T00:00:00Z"}`)}},
			{ID: "t2", Function: ToolFunction{Name: "bogusTool"}},
		}
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Results []ToolResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Result == "" || resp.Results[0].Error != "" {
		t.Errorf("expected success for t1: %+v", resp.Results[0])
	}
	if resp.Results[1].Error != "Unknown tool: bogusTool" {
		t.Errorf("unexpected error for t2: %q", resp.Results[1].Error)
	}
}

func TestVapiWebhook_ToolCallListFallback(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeToolCalls, "vapi-1", "+15559876543", func(m *WebhookMessage) {
		m.ToolCallList = []ToolCall{
			{ID: "t1", Function: ToolFunction{Name: "checkAvailability", Arguments: json.RawMessage(
				`{"startTime":"2026-03-10T00:00:00Z","endTime":"2026-03-11T00:00:00Z"}`)}},
		}
	}))

	var resp struct {
		Results []ToolResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ToolCallID != "t1" {
		t.Errorf("toolCallList field must be honored, got %+v", resp.Results)
	}
}

func TestVapiWebhook_EndOfCallReport(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeEndOfCallReport, "vapi-7", "+15559876543", func(m *WebhookMessage) {
		m.DurationSeconds = 80
		m.Summary = "Asked about implants."
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if _, err := f.calls.GetByVapiCallID(context.Background(), "vapi-7"); err != nil {
		t.Errorf("call not persisted: %v", err)
	}
	created, _ := f.leads.ListByPractice(context.Background(), f.practice.ID, 0)
	if len(created) != 1 {
		t.Errorf("expected lead for unbooked call, got %d", len(created))
	}
}

func TestVapiWebhook_EndOfCallReport_PersistFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.reconciler.calls = failingCalls{}

	rec := postWebhook(t, f.handler, testSecret, envelope(TypeEndOfCallReport, "vapi-8", "+15559876543", func(m *WebhookMessage) {
		m.DurationSeconds = 80
	}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when call persist fails, got %d", rec.Code)
	}
}

func TestVapiWebhook_IgnoresOtherTypes(t *testing.T) {
	f := newHandlerFixture(t)

	rec := postWebhook(t, f.handler, testSecret, envelope("status-update", "vapi-1", "+15559876543", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 ack for unhandled type, got %d", rec.Code)
	}
}

func TestVapiWebhook_BadJSON(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/vapi", bytes.NewReader([]byte("{not json")))
	req.Header.Set("x-vapi-secret", testSecret)
	rec := httptest.NewRecorder()
	f.handler.VapiWebhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid json, got %d", rec.Code)
	}
}

// failingCalls is a calls.Repository whose writes always fail.
type failingCalls struct{}

func (failingCalls) Upsert(context.Context, calls.UpsertRequest) (*calls.Call, error) {
	return nil, errors.New("database unavailable")
}

func (failingCalls) GetByVapiCallID(context.Context, string) (*calls.Call, error) {
	return nil, calls.ErrCallNotFound
}

func (failingCalls) ListByPractice(context.Context, uuid.UUID, int) ([]calls.Call, error) {
	return nil, nil
}
