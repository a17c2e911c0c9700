// Package messaging handles SMS: the inbound Twilio webhook where patients
// confirm or cancel appointments by keyword, and the outbound sender used
// for booking confirmations.
package messaging

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/messages"
	"github.com/dentalops/dental-ai-platform/internal/observability/metrics"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/phone"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var smsTracer = otel.Tracer("dentalai.internal.messaging.handler")

const (
	cancelAck = "We have cancelled your appointment as requested. Someone from our office will call you shortly to reschedule. Have a nice day!"

	confirmAckFormat = "Thank you! Your appointment on %s is confirmed. We look forward to seeing you!"
)

// Handler serves the inbound Twilio SMS webhook.
type Handler struct {
	resolver   *practices.Resolver
	patients   patients.Repository
	bookings   bookings.Repository
	leads      leads.Repository
	store      messages.Store
	metrics    *metrics.WebhookMetrics
	logger     *logging.Logger
	authToken  string
	webhookURL string
}

// HandlerConfig wires a Handler. AuthToken enables signature validation
// against WebhookURL; leave it empty to accept unsigned requests, which
// only local development should do.
type HandlerConfig struct {
	Resolver   *practices.Resolver
	Patients   patients.Repository
	Bookings   bookings.Repository
	Leads      leads.Repository
	Messages   messages.Store
	Metrics    *metrics.WebhookMetrics
	Logger     *logging.Logger
	AuthToken  string
	WebhookURL string
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		resolver:   cfg.Resolver,
		patients:   cfg.Patients,
		bookings:   cfg.Bookings,
		leads:      cfg.Leads,
		store:      cfg.Messages,
		metrics:    cfg.Metrics,
		logger:     logger.Component("sms_webhook"),
		authToken:  cfg.AuthToken,
		webhookURL: cfg.WebhookURL,
	}
}

// InboundSMSWebhook handles POST /webhooks/twilio/sms. The inbound message
// is logged before any keyword handling so a failure mid-flow still leaves
// an audit row.
func (h *Handler) InboundSMSWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := smsTracer.Start(r.Context(), "messaging.inbound_sms")
	defer span.End()

	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, h.webhookURL) {
		h.metrics.ObserveSMSInbound(KeywordNone, "invalid_signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	sms, err := ParseInboundSMS(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if sms.From == "" || sms.To == "" {
		http.Error(w, "missing From or To", http.StatusBadRequest)
		return
	}
	from := phone.NormalizeE164(sms.From)
	to := phone.NormalizeE164(sms.To)
	span.SetAttributes(attribute.String("dentalai.to", to))

	practice, err := h.resolver.ByNumber(ctx, to)
	if err != nil {
		if errors.Is(err, practices.ErrPracticeNotFound) {
			h.logger.Warn("sms for unknown number", "to", to)
			h.metrics.ObserveSMSInbound(KeywordNone, "unknown_practice")
			h.writeTwiML(w, "")
			return
		}
		span.RecordError(err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	patient := h.findPatient(ctx, practice, from)

	// Log first, act second.
	inbound, err := h.store.Insert(ctx, messages.InsertRequest{
		PracticeID:  practice.ID,
		PatientID:   patientID(patient),
		Direction:   messages.DirectionInbound,
		FromNumber:  from,
		ToNumber:    to,
		Body:        sms.Body,
		Status:      messages.StatusReceived,
		Provider:    "twilio",
		ProviderSID: sms.MessageSID,
	})
	if err != nil {
		span.RecordError(err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	keyword := DetectKeyword(sms.Body)
	var reply string
	switch keyword {
	case KeywordCancel:
		reply = h.handleCancel(ctx, practice, patient, from)
	case KeywordConfirm:
		reply = h.handleConfirm(ctx, practice, patient)
	}
	h.metrics.ObserveSMSInbound(keyword, "ok")
	h.logger.Info("inbound sms processed",
		"practice_id", practice.ID, "keyword", keyword, "message_id", inbound.ID)

	if reply != "" {
		h.logReply(ctx, practice, patient, to, from, reply)
	}
	h.writeTwiML(w, reply)
}

// handleCancel cancels the patient's latest confirmed booking, records a
// follow-up lead so staff call back to reschedule, and returns the
// acknowledgement. When no patient or confirmed booking matches the sender
// the keyword is a no-op: nothing beyond the inbound message log, no reply.
func (h *Handler) handleCancel(ctx context.Context, practice *practices.Practice, patient *patients.Patient, from string) string {
	if patient == nil {
		return ""
	}
	booking, err := h.bookings.LatestConfirmedForPatient(ctx, practice.ID, patient.ID)
	if err != nil {
		if !errors.Is(err, bookings.ErrBookingNotFound) {
			h.logger.Error("failed to look up booking", "error", err, "practice_id", practice.ID)
		}
		return ""
	}
	if err := h.bookings.Cancel(ctx, booking.ID); err != nil {
		h.logger.Error("failed to cancel booking", "error", err, "booking_id", booking.ID)
		return ""
	}

	_, err = h.leads.Create(ctx, leads.CreateRequest{
		PracticeID: practice.ID,
		PatientID:  &patient.ID,
		Priority:   leads.PriorityHigh,
		Source:     leads.SourceSMS,
		Notes:      fmt.Sprintf("SMS Cancellation follow-up needed for %s", from),
	})
	if err != nil {
		h.logger.Error("failed to create cancellation lead", "error", err, "practice_id", practice.ID)
	} else {
		h.metrics.ObserveLeadCreated(leads.SourceSMS)
	}
	return cancelAck
}

// handleConfirm acknowledges the patient's latest confirmed booking. Same
// no-match rule as handleCancel: no patient or booking means no reply.
func (h *Handler) handleConfirm(ctx context.Context, practice *practices.Practice, patient *patients.Patient) string {
	if patient == nil {
		return ""
	}
	booking, err := h.bookings.LatestConfirmedForPatient(ctx, practice.ID, patient.ID)
	if err != nil {
		if !errors.Is(err, bookings.ErrBookingNotFound) {
			h.logger.Error("failed to look up booking", "error", err, "practice_id", practice.ID)
		}
		return ""
	}
	return fmt.Sprintf(confirmAckFormat, booking.StartTime.Format("Monday, January 2 at 3:04 PM"))
}

func (h *Handler) findPatient(ctx context.Context, practice *practices.Practice, from string) *patients.Patient {
	p, err := h.patients.GetByPhone(ctx, practice.ID, from)
	if err != nil {
		if !errors.Is(err, patients.ErrPatientNotFound) {
			h.logger.Error("failed to look up patient", "error", err, "practice_id", practice.ID)
		}
		return nil
	}
	return p
}

func (h *Handler) logReply(ctx context.Context, practice *practices.Practice, patient *patients.Patient, from, to, body string) {
	_, err := h.store.Insert(ctx, messages.InsertRequest{
		PracticeID: practice.ID,
		PatientID:  patientID(patient),
		Direction:  messages.DirectionOutbound,
		FromNumber: from,
		ToNumber:   to,
		Body:       body,
		Status:     messages.StatusSent,
		Provider:   "twilio",
	})
	if err != nil {
		h.logger.Error("failed to log sms reply", "error", err, "practice_id", practice.ID)
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func (h *Handler) writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	out, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		h.logger.Error("failed to marshal twiml", "error", err)
		return
	}
	w.Write([]byte(xml.Header))
	w.Write(out)
}

func patientID(p *patients.Patient) *uuid.UUID {
	if p == nil {
		return nil
	}
	return &p.ID
}
