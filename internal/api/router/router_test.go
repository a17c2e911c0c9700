package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/calls"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/messages"
	"github.com/dentalops/dental-ai-platform/internal/messaging"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/internal/voiceai"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	practiceRepo := practices.NewInMemoryRepository()
	practiceRepo.Put(&practices.Practice{ID: uuid.New(), Name: "Test Dental", PhoneNumber: "+15559876543"})
	resolver := practices.NewResolver(practiceRepo, nil, 0, nil)

	voiceHandler := voiceai.NewHandler(voiceai.HandlerConfig{
		Secret:    "secret",
		Resolver:  resolver,
		Practices: practiceRepo,
		Builder:   assistant.NewBuilder("https://example.com/webhooks/vapi", "secret"),
		Reconciler: voiceai.NewReconciler(voiceai.ReconcilerConfig{
			Calls:    calls.NewInMemoryRepository(),
			Bookings: bookings.NewInMemoryRepository(),
			Leads:    leads.NewInMemoryRepository(),
			Patients: patients.NewInMemoryRepository(),
		}),
	})
	smsHandler := messaging.NewHandler(messaging.HandlerConfig{
		Resolver: resolver,
		Patients: patients.NewInMemoryRepository(),
		Bookings: bookings.NewInMemoryRepository(),
		Leads:    leads.NewInMemoryRepository(),
		Messages: messages.NewInMemoryStore(),
	})

	return New(&Config{
		VoiceWebhook:   voiceHandler,
		SMSWebhook:     smsHandler,
		AdminJWTSecret: "admin-secret",
	})
}

func TestRouter_Health(t *testing.T) {
	r := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRouter_WebhookRoutesExist(t *testing.T) {
	r := testRouter(t)

	// Without the shared secret the voice webhook answers 401, proving the
	// route is wired and authenticated.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/vapi", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 from voice webhook, got %d", rec.Code)
	}

	form := strings.NewReader("From=%2B15551234567&To=%2B15559876543&Body=hello")
	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from sms webhook, got %d", rec.Code)
	}
}

func TestRouter_DashboardRoutesAbsentWithoutHandler(t *testing.T) {
	r := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/practices/"+uuid.NewString()+"/overview", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when dashboard is not configured, got %d", rec.Code)
	}
}
