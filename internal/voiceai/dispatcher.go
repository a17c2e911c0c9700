package voiceai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/messaging"
	"github.com/dentalops/dental-ai-platform/internal/observability/metrics"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/phone"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/internal/scheduling"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var dispatchTracer = otel.Tracer("dentalai.internal.voiceai.dispatcher")

// Tool names the assistant is configured with.
const (
	toolCheckAvailability = "checkAvailability"
	toolBookAppointment   = "bookAppointment"
)

const defaultToolTimeout = 15 * time.Second

// Dispatcher executes assistant tool calls against the calendar and the
// patient and booking stores.
type Dispatcher struct {
	calendar    scheduling.Provider
	patients    patients.Repository
	bookings    bookings.Repository
	sms         messaging.Sender
	metrics     *metrics.WebhookMetrics
	logger      *logging.Logger
	toolTimeout time.Duration
}

// DispatcherConfig wires a Dispatcher. SMS is optional; when set, booked
// callers get a confirmation text.
type DispatcherConfig struct {
	Calendar    scheduling.Provider
	Patients    patients.Repository
	Bookings    bookings.Repository
	SMS         messaging.Sender
	Metrics     *metrics.WebhookMetrics
	Logger      *logging.Logger
	ToolTimeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Calendar == nil {
		panic("voiceai: nil calendar provider passed to NewDispatcher")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.ToolTimeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	return &Dispatcher{
		calendar:    cfg.Calendar,
		patients:    cfg.Patients,
		bookings:    cfg.Bookings,
		sms:         cfg.SMS,
		metrics:     cfg.Metrics,
		logger:      logger.Component("tool_dispatcher"),
		toolTimeout: timeout,
	}
}

// Dispatch runs every tool call in the batch concurrently and returns one
// result per call, in input order. A failing call yields an error result;
// it never aborts its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, practice *practices.Practice, call *Call, toolCalls []ToolCall) []ToolResult {
	ctx, span := dispatchTracer.Start(ctx, "voiceai.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentalai.practice_id", practice.ID.String()),
		attribute.Int("dentalai.tool_calls", len(toolCalls)),
	)

	results := make([]ToolResult, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func(i int, tc ToolCall) {
			defer wg.Done()
			results[i] = d.dispatchOne(ctx, practice, call, tc)
		}(i, tc)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, practice *practices.Practice, call *Call, tc ToolCall) ToolResult {
	ctx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	var result string
	var err error
	switch tc.Function.Name {
	case toolCheckAvailability:
		result, err = d.checkAvailability(ctx, practice, tc)
	case toolBookAppointment:
		result, err = d.bookAppointment(ctx, practice, call, tc)
	default:
		err = fmt.Errorf("Unknown tool: %s", tc.Function.Name)
	}

	if err != nil {
		d.metrics.ObserveToolCall(tc.Function.Name, "error")
		d.logger.Error("tool call failed",
			"tool", tc.Function.Name, "practice_id", practice.ID, "error", err)
		return ToolResult{ToolCallID: tc.ID, Error: err.Error()}
	}
	d.metrics.ObserveToolCall(tc.Function.Name, "ok")
	return ToolResult{ToolCallID: tc.ID, Result: result}
}

type checkAvailabilityArgs struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (d *Dispatcher) checkAvailability(ctx context.Context, practice *practices.Practice, tc ToolCall) (string, error) {
	var args checkAvailabilityArgs
	if err := tc.Function.DecodeArguments(&args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.StartTime == "" || args.EndTime == "" {
		return "", errors.New("startTime and endTime are required")
	}

	slots, err := d.calendar.GetAvailableSlots(ctx, scheduling.SlotsRequest{
		Credentials: practiceCredentials(practice),
		StartTime:   args.StartTime,
		EndTime:     args.EndTime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to check availability: %w", err)
	}
	return string(slots), nil
}

type bookAppointmentArgs struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	StartTime string `json:"startTime"`
	TimeZone  string `json:"timeZone"`
}

func (d *Dispatcher) bookAppointment(ctx context.Context, practice *practices.Practice, call *Call, tc ToolCall) (string, error) {
	var args bookAppointmentArgs
	if err := tc.Function.DecodeArguments(&args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Name == "" || args.Email == "" || args.Phone == "" || args.StartTime == "" {
		return "", errors.New("name, email, phone and startTime are required")
	}
	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return "", fmt.Errorf("invalid startTime %q: %w", args.StartTime, err)
	}
	callerPhone := phone.NormalizeE164(args.Phone)

	event, err := d.calendar.CreateBooking(ctx, scheduling.BookingRequest{
		Credentials: practiceCredentials(practice),
		Name:        args.Name,
		Email:       args.Email,
		Phone:       callerPhone,
		StartTime:   start,
		TimeZone:    args.TimeZone,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create calendar booking: %w", err)
	}

	patient, err := d.findOrCreatePatient(ctx, practice, args, callerPhone)
	if err != nil {
		return "", err
	}

	booking, err := d.bookings.Create(ctx, bookings.CreateRequest{
		PracticeID:      practice.ID,
		PatientID:       patient.ID,
		VapiCallID:      callID(call),
		CalendarEventID: event.EventID,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record booking: %w", err)
	}

	d.sendConfirmation(ctx, practice, patient, booking)

	return fmt.Sprintf("Appointment booked for %s on %s.",
		args.Name, event.StartTime.Format("Monday, January 2 at 3:04 PM")), nil
}

func (d *Dispatcher) findOrCreatePatient(ctx context.Context, practice *practices.Practice, args bookAppointmentArgs, callerPhone string) (*patients.Patient, error) {
	patient, err := d.patients.GetByEmail(ctx, args.Email)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, patients.ErrPatientNotFound) {
		return nil, fmt.Errorf("failed to look up patient: %w", err)
	}

	patient, err = d.patients.Create(ctx, patients.CreateRequest{
		PracticeID: practice.ID,
		Name:       args.Name,
		Email:      args.Email,
		Phone:      callerPhone,
		Source:     "ai_receptionist",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

// sendConfirmation texts the caller their appointment time. Failures are
// logged only; the booking already exists and the assistant confirms it
// verbally.
func (d *Dispatcher) sendConfirmation(ctx context.Context, practice *practices.Practice, patient *patients.Patient, booking *bookings.Booking) {
	if d.sms == nil || patient.Phone == "" || practice.PhoneNumber == "" {
		return
	}
	body := fmt.Sprintf("Hi %s, your appointment with %s on %s is confirmed. Reply CONFIRM to confirm or CANCEL to cancel.",
		patient.FirstName, practice.Name, booking.StartTime.Format("Monday, January 2 at 3:04 PM"))
	err := d.sms.Send(ctx, messaging.SendRequest{
		PracticeID:  practice.ID,
		PatientID:   &patient.ID,
		From:        practice.PhoneNumber,
		To:          patient.Phone,
		Body:        body,
		RelatedType: "booking",
		RelatedID:   &booking.ID,
	})
	if err != nil {
		d.logger.Error("failed to send booking confirmation sms",
			"error", err, "practice_id", practice.ID, "booking_id", booking.ID)
	}
}

func practiceCredentials(p *practices.Practice) scheduling.Credentials {
	creds := scheduling.Credentials{APIKey: p.CalComAPIKey}
	if p.CalComEventTypeID != "" {
		if id, err := strconv.Atoi(strings.TrimSpace(p.CalComEventTypeID)); err == nil {
			creds.EventTypeID = id
		}
	}
	return creds
}

func callID(c *Call) string {
	if c == nil {
		return ""
	}
	return c.ID
}
