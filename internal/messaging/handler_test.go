package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/messages"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/practices"
)

type smsFixture struct {
	handler  *Handler
	practice *practices.Practice
	patient  *patients.Patient
	bookings *bookings.InMemoryRepository
	leads    *leads.InMemoryRepository
	store    *messages.InMemoryStore
}

func newSMSFixture(t *testing.T) *smsFixture {
	t.Helper()

	practiceRepo := practices.NewInMemoryRepository()
	practice := &practices.Practice{
		ID:          uuid.New(),
		Name:        "Bright Smile Dental",
		PhoneNumber: "+15559876543",
	}
	practiceRepo.Put(practice)

	patientRepo := patients.NewInMemoryRepository()
	patient, err := patientRepo.Create(context.Background(), patients.CreateRequest{
		PracticeID: practice.ID,
		Name:       "Jane Smith",
		Phone:      "+15551234567",
	})
	if err != nil {
		t.Fatalf("failed to seed patient: %v", err)
	}

	bookingRepo := bookings.NewInMemoryRepository()
	leadRepo := leads.NewInMemoryRepository()
	store := messages.NewInMemoryStore()

	h := NewHandler(HandlerConfig{
		Resolver: practices.NewResolver(practiceRepo, nil, 0, nil),
		Patients: patientRepo,
		Bookings: bookingRepo,
		Leads:    leadRepo,
		Messages: store,
	})
	return &smsFixture{
		handler:  h,
		practice: practice,
		patient:  patient,
		bookings: bookingRepo,
		leads:    leadRepo,
		store:    store,
	}
}

func postSMS(t *testing.T, h *Handler, from, to, body string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.InboundSMSWebhook(rec, req)
	return rec
}

func TestInboundSMS_CancelFlow(t *testing.T) {
	f := newSMSFixture(t)
	booking, _ := f.bookings.Create(context.Background(), bookings.CreateRequest{
		PracticeID: f.practice.ID,
		PatientID:  f.patient.ID,
		StartTime:  time.Now().Add(48 * time.Hour),
	})

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "Please CANCEL my appointment")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("expected text/xml, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "We have cancelled your appointment") {
		t.Errorf("expected cancellation ack, got %s", rec.Body.String())
	}

	// Booking flipped to cancelled.
	if _, err := f.bookings.LatestConfirmedForPatient(context.Background(), f.practice.ID, f.patient.ID); err != bookings.ErrBookingNotFound {
		t.Errorf("expected booking %s cancelled, got err %v", booking.ID, err)
	}

	// Follow-up lead for staff.
	createdLeads, _ := f.leads.ListByPractice(context.Background(), f.practice.ID, 0)
	if len(createdLeads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(createdLeads))
	}
	if !strings.Contains(createdLeads[0].Notes, "SMS Cancellation follow-up needed for +15551234567") {
		t.Errorf("unexpected lead notes: %q", createdLeads[0].Notes)
	}
	if createdLeads[0].Source != leads.SourceSMS {
		t.Errorf("expected sms lead source, got %q", createdLeads[0].Source)
	}

	// Inbound logged before the reply.
	logged := f.store.All()
	if len(logged) != 2 {
		t.Fatalf("expected inbound and reply logged, got %d", len(logged))
	}
	if logged[0].Direction != messages.DirectionInbound || logged[1].Direction != messages.DirectionOutbound {
		t.Errorf("unexpected log order: %s then %s", logged[0].Direction, logged[1].Direction)
	}
}

func TestInboundSMS_ConfirmFlow(t *testing.T) {
	f := newSMSFixture(t)
	f.bookings.Create(context.Background(), bookings.CreateRequest{
		PracticeID: f.practice.ID,
		PatientID:  f.patient.ID,
		StartTime:  time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	})

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "confirm")

	if !strings.Contains(rec.Body.String(), "is confirmed") {
		t.Errorf("expected confirmation ack, got %s", rec.Body.String())
	}
	createdLeads, _ := f.leads.ListByPractice(context.Background(), f.practice.ID, 0)
	if len(createdLeads) != 0 {
		t.Errorf("confirm must not create leads, got %d", len(createdLeads))
	}
}

func TestInboundSMS_CancelWinsOverConfirm(t *testing.T) {
	f := newSMSFixture(t)
	f.bookings.Create(context.Background(), bookings.CreateRequest{
		PracticeID: f.practice.ID,
		PatientID:  f.patient.ID,
		StartTime:  time.Now().Add(24 * time.Hour),
	})

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "CONFIRM... actually no, CANCEL it")

	if !strings.Contains(rec.Body.String(), "We have cancelled your appointment") {
		t.Errorf("expected cancel to take precedence, got %s", rec.Body.String())
	}
}

func TestInboundSMS_CancelWithoutBookingIsNoOp(t *testing.T) {
	f := newSMSFixture(t)

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "please CANCEL my appointment")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("expected empty twiml when no booking matches, got %s", rec.Body.String())
	}
	createdLeads, _ := f.leads.ListByPractice(context.Background(), f.practice.ID, 0)
	if len(createdLeads) != 0 {
		t.Errorf("expected zero leads when no booking matches, got %d", len(createdLeads))
	}
	if logged := f.store.All(); len(logged) != 1 || logged[0].Direction != messages.DirectionInbound {
		t.Errorf("expected only the inbound message logged, got %d", len(logged))
	}
}

func TestInboundSMS_CancelFromUnknownSenderIsNoOp(t *testing.T) {
	f := newSMSFixture(t)

	rec := postSMS(t, f.handler, "+15550001111", "+15559876543", "CANCEL")

	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("expected empty twiml for unknown sender, got %s", rec.Body.String())
	}
	createdLeads, _ := f.leads.ListByPractice(context.Background(), f.practice.ID, 0)
	if len(createdLeads) != 0 {
		t.Errorf("expected zero leads for unknown sender, got %d", len(createdLeads))
	}
	if len(f.store.All()) != 1 {
		t.Errorf("expected only the inbound message logged, got %d", len(f.store.All()))
	}
}

func TestInboundSMS_ConfirmWithoutBookingIsNoOp(t *testing.T) {
	f := newSMSFixture(t)

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "CONFIRM")

	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("expected empty twiml when no booking matches, got %s", rec.Body.String())
	}
	if len(f.store.All()) != 1 {
		t.Errorf("expected only the inbound message logged, got %d", len(f.store.All()))
	}
}

func TestInboundSMS_NoKeywordLogsAndStaysQuiet(t *testing.T) {
	f := newSMSFixture(t)

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "What are your hours?")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("expected empty twiml, got %s", rec.Body.String())
	}
	if len(f.store.All()) != 1 {
		t.Errorf("expected inbound message logged, got %d", len(f.store.All()))
	}
}

func TestInboundSMS_UnknownPracticeAcksQuietly(t *testing.T) {
	f := newSMSFixture(t)

	rec := postSMS(t, f.handler, "+15551234567", "+15550000000", "CANCEL")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown practice, got %d", rec.Code)
	}
	if len(f.store.All()) != 0 {
		t.Errorf("expected nothing logged for unknown practice")
	}
}

func TestInboundSMS_SignatureValidation(t *testing.T) {
	f := newSMSFixture(t)
	f.handler.authToken = "token123"
	f.handler.webhookURL = "https://api.example.com/webhooks/twilio/sms"

	rec := postSMS(t, f.handler, "+15551234567", "+15559876543", "CANCEL")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unsigned request, got %d", rec.Code)
	}

	// A correctly signed request passes.
	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("To", "+15559876543")
	form.Set("Body", "hello")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(f.handler.webhookURL, form), "token123"))
	rec = httptest.NewRecorder()
	f.handler.InboundSMSWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for signed request, got %d", rec.Code)
	}
}

func TestDetectKeyword(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"CONFIRM", KeywordConfirm},
		{"please confirm", KeywordConfirm},
		{"CANCEL", KeywordCancel},
		{"I need to cancel my visit", KeywordCancel},
		{"confirm? no, cancel", KeywordCancel},
		{"see you tomorrow", KeywordNone},
		{"", KeywordNone},
	}
	for _, tc := range cases {
		if got := DetectKeyword(tc.body); got != tc.want {
			t.Errorf("DetectKeyword(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
}
