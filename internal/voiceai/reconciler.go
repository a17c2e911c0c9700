package voiceai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/calls"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/observability/metrics"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/phone"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var reconcileTracer = otel.Tracer("dentalai.internal.voiceai.reconciler")

// minLeadDurationSeconds is the threshold below which a call without a
// booking is treated as noise (hangups, wrong numbers) rather than a lead.
const minLeadDurationSeconds = 10

// Reconciler turns end-of-call reports into call records and, when a caller
// talked but did not book, follow-up leads.
type Reconciler struct {
	calls    calls.Repository
	bookings bookings.Repository
	leads    leads.Repository
	patients patients.Repository
	metrics  *metrics.WebhookMetrics
	logger   *logging.Logger
}

// ReconcilerConfig wires a Reconciler.
type ReconcilerConfig struct {
	Calls    calls.Repository
	Bookings bookings.Repository
	Leads    leads.Repository
	Patients patients.Repository
	Metrics  *metrics.WebhookMetrics
	Logger   *logging.Logger
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{
		calls:    cfg.Calls,
		bookings: cfg.Bookings,
		leads:    cfg.Leads,
		patients: cfg.Patients,
		metrics:  cfg.Metrics,
		logger:   logger.Component("call_reconciler"),
	}
}

// Reconcile persists the call and decides whether it warrants a lead. The
// call upsert is the only step that can fail the webhook; everything after
// it is best effort, logged and swallowed, because the platform will retry
// the whole report and the call row is already idempotent.
func (r *Reconciler) Reconcile(ctx context.Context, practice *practices.Practice, msg *WebhookMessage) error {
	ctx, span := reconcileTracer.Start(ctx, "voiceai.reconcile")
	defer span.End()

	vapiCallID := callID(msg.Call)
	if vapiCallID == "" {
		return errors.New("voiceai: end-of-call report missing call id")
	}
	span.SetAttributes(
		attribute.String("dentalai.practice_id", practice.ID.String()),
		attribute.String("dentalai.vapi_call_id", vapiCallID),
	)

	callerNumber := phone.NormalizeE164(msg.Call.CustomerNumber())
	call, err := r.calls.Upsert(ctx, calls.UpsertRequest{
		PracticeID:      practice.ID,
		VapiCallID:      vapiCallID,
		CallerNumber:    callerNumber,
		Status:          msg.EndedReason,
		DurationSeconds: int(msg.DurationSeconds),
		Transcript:      msg.Transcript,
		Summary:         msg.BestSummary(),
		RecordingURL:    msg.RecordingURL,
		Direction:       calls.DirectionInbound,
		StartedAt:       msg.StartedAt,
		EndedAt:         msg.EndedAt,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("voiceai: failed to persist call: %w", err)
	}

	booked, err := r.bookings.ExistsForCallID(ctx, vapiCallID)
	if err != nil {
		// Can't tell whether the call booked; skip lead creation rather
		// than risk a duplicate follow-up on retry.
		r.logger.Error("failed to check bookings for call",
			"error", err, "vapi_call_id", vapiCallID)
		return nil
	}
	if booked || call.DurationSeconds <= minLeadDurationSeconds {
		r.logger.Info("call reconciled without lead",
			"vapi_call_id", vapiCallID, "booked", booked, "duration_seconds", call.DurationSeconds)
		return nil
	}

	r.createLead(ctx, practice, call, callerNumber)
	return nil
}

func (r *Reconciler) createLead(ctx context.Context, practice *practices.Practice, call *calls.Call, callerNumber string) {
	exists, err := r.leads.ExistsForCall(ctx, call.ID)
	if err != nil {
		r.logger.Error("failed to check leads for call", "error", err, "call_id", call.ID)
		return
	}
	if exists {
		return
	}

	var patientID *uuid.UUID
	if callerNumber != "" {
		if patient, err := r.patients.GetByPhone(ctx, practice.ID, callerNumber); err == nil {
			patientID = &patient.ID
		} else if !errors.Is(err, patients.ErrPatientNotFound) {
			r.logger.Error("failed to look up patient for lead", "error", err, "call_id", call.ID)
		}
	}

	summary := call.Summary
	if summary == "" {
		summary = "No summary available."
	}

	_, err = r.leads.Create(ctx, leads.CreateRequest{
		PracticeID: practice.ID,
		PatientID:  patientID,
		CallID:     &call.ID,
		Source:     leads.SourcePhoneCall,
		Notes:      "Auto-generated from call analysis: " + summary,
	})
	if err != nil {
		if errors.Is(err, leads.ErrDuplicateCallLead) {
			// Lost the race with a concurrent redelivery; the lead exists.
			return
		}
		r.logger.Error("failed to create lead", "error", err, "call_id", call.ID)
		return
	}
	r.metrics.ObserveLeadCreated(leads.SourcePhoneCall)
	r.logger.Info("lead created from call", "call_id", call.ID, "practice_id", practice.ID)
}
