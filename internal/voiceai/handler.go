package voiceai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/observability/metrics"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var handlerTracer = otel.Tracer("dentalai.internal.voiceai.handler")

// secretHeader carries the shared secret the platform echoes back on every
// webhook, set via serverUrlSecret in the assistant config.
const secretHeader = "x-vapi-secret"

// Handler serves POST /webhooks/vapi.
type Handler struct {
	secret     string
	resolver   *practices.Resolver
	practices  practices.Repository
	builder    *assistant.Builder
	dispatcher *Dispatcher
	reconciler *Reconciler
	metrics    *metrics.WebhookMetrics
	logger     *logging.Logger
}

// HandlerConfig wires a Handler. Secret empty disables webhook auth, which
// only local development should do.
type HandlerConfig struct {
	Secret     string
	Resolver   *practices.Resolver
	Practices  practices.Repository
	Builder    *assistant.Builder
	Dispatcher *Dispatcher
	Reconciler *Reconciler
	Metrics    *metrics.WebhookMetrics
	Logger     *logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		secret:     cfg.Secret,
		resolver:   cfg.Resolver,
		practices:  cfg.Practices,
		builder:    cfg.Builder,
		dispatcher: cfg.Dispatcher,
		reconciler: cfg.Reconciler,
		metrics:    cfg.Metrics,
		logger:     logger.Component("vapi_webhook"),
	}
}

// VapiWebhook routes the platform's webhook messages. Authentication runs
// before any parsing.
func (h *Handler) VapiWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerTracer.Start(r.Context(), "voiceai.webhook")
	defer span.End()
	start := time.Now()

	if h.secret != "" && r.Header.Get(secretHeader) != h.secret {
		h.metrics.ObserveVoiceWebhook("unknown", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var envelope Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.metrics.ObserveVoiceWebhook("unknown", "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	msg := &envelope.Message
	span.SetAttributes(attribute.String("dentalai.message_type", msg.Type))
	defer func() {
		h.metrics.ObserveWebhookLatency(msg.Type, time.Since(start).Seconds())
	}()

	switch msg.Type {
	case TypeAssistantRequest:
		h.handleAssistantRequest(ctx, w, msg)
	case TypeToolCalls:
		h.handleToolCalls(ctx, w, msg)
	case TypeEndOfCallReport:
		h.handleEndOfCallReport(ctx, w, msg)
	default:
		// Status updates, transcripts and other chatter are acknowledged so
		// the platform doesn't retry them.
		h.metrics.ObserveVoiceWebhook(msg.Type, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{})
	}
}

// handleAssistantRequest builds the per-call assistant config for the dialed
// practice. An unresolvable number gets an empty object: the platform plays
// its fallback message and the call ends.
func (h *Handler) handleAssistantRequest(ctx context.Context, w http.ResponseWriter, msg *WebhookMessage) {
	practice, ok := h.resolvePractice(ctx, msg)
	if !ok {
		h.metrics.ObserveVoiceWebhook(msg.Type, "unknown_practice")
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	knowledge, err := h.practices.ListKnowledge(ctx, practice.ID)
	if err != nil {
		h.logger.Error("failed to load knowledge base", "error", err, "practice_id", practice.ID)
		knowledge = nil
	}

	cfg := h.builder.Build(practice, knowledge)
	h.metrics.ObserveVoiceWebhook(msg.Type, "ok")
	h.logger.Info("assistant config served",
		"practice_id", practice.ID, "call_id", callID(msg.Call), "knowledge_entries", len(knowledge))
	writeJSON(w, http.StatusOK, map[string]any{"assistant": cfg})
}

// handleToolCalls executes the batch and always answers 200 with one result
// per call; the assistant relays errors verbally instead of dropping the
// call.
func (h *Handler) handleToolCalls(ctx context.Context, w http.ResponseWriter, msg *WebhookMessage) {
	toolCalls := msg.Calls()
	practice, ok := h.resolvePractice(ctx, msg)
	if !ok {
		h.metrics.ObserveVoiceWebhook(msg.Type, "unknown_practice")
		results := make([]ToolResult, len(toolCalls))
		for i, tc := range toolCalls {
			results[i] = ToolResult{ToolCallID: tc.ID, Error: "practice not found"}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	results := h.dispatcher.Dispatch(ctx, practice, msg.Call, toolCalls)
	h.metrics.ObserveVoiceWebhook(msg.Type, "ok")
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleEndOfCallReport reconciles the finished call. A failed call upsert
// returns 500 so the platform redelivers; the upsert is idempotent, so the
// retry is safe.
func (h *Handler) handleEndOfCallReport(ctx context.Context, w http.ResponseWriter, msg *WebhookMessage) {
	practice, ok := h.resolvePractice(ctx, msg)
	if !ok {
		h.metrics.ObserveVoiceWebhook(msg.Type, "unknown_practice")
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	if err := h.reconciler.Reconcile(ctx, practice, msg); err != nil {
		h.metrics.ObserveVoiceWebhook(msg.Type, "error")
		h.logger.Error("failed to reconcile call", "error", err, "practice_id", practice.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process report"})
		return
	}
	h.metrics.ObserveVoiceWebhook(msg.Type, "ok")
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (h *Handler) resolvePractice(ctx context.Context, msg *WebhookMessage) (*practices.Practice, bool) {
	number := msg.Call.DestinationNumber()
	if number == "" {
		h.logger.Warn("webhook missing destination number", "message_type", msg.Type)
		return nil, false
	}
	practice, err := h.resolver.ByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, practices.ErrPracticeNotFound) {
			h.logger.Warn("no practice for number", "number", number, "message_type", msg.Type)
		} else {
			h.logger.Error("failed to resolve practice", "error", err, "number", number)
		}
		return nil, false
	}
	return practice, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
