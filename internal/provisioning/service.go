package provisioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var provisionTracer = otel.Tracer("dentalai.internal.provisioning.service")

// Service orchestrates the provisioning flow.
type Service struct {
	practices practices.Repository
	store     Store
	platform  VoicePlatform
	numbers   NumberProvider
	builder   *assistant.Builder
	smsURL    string
	logger    *logging.Logger
}

// ServiceConfig wires a Service. SMSWebhookURL is the public inbound SMS
// endpoint configured on every purchased number.
type ServiceConfig struct {
	Practices     practices.Repository
	Store         Store
	Platform      VoicePlatform
	Numbers       NumberProvider
	Builder       *assistant.Builder
	SMSWebhookURL string
	Logger        *logging.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		practices: cfg.Practices,
		store:     cfg.Store,
		platform:  cfg.Platform,
		numbers:   cfg.Numbers,
		builder:   cfg.Builder,
		smsURL:    cfg.SMSWebhookURL,
		logger:    logger.Component("provisioning"),
	}
}

// CreateAssistant builds the practice's assistant ahead of any number
// purchase and records a pending phone row as the placeholder an operator
// (or a later Provision call) activates.
func (s *Service) CreateAssistant(ctx context.Context, practiceID uuid.UUID) (string, error) {
	ctx, span := provisionTracer.Start(ctx, "provisioning.create_assistant")
	defer span.End()
	span.SetAttributes(attribute.String("dentalai.practice_id", practiceID.String()))

	_, assistantID, err := s.createAssistant(ctx, practiceID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.logger.Info("assistant created", "practice_id", practiceID, "assistant_id", assistantID)
	return assistantID, nil
}

func (s *Service) createAssistant(ctx context.Context, practiceID uuid.UUID) (*PhoneNumber, string, error) {
	practice, err := s.practices.GetByID(ctx, practiceID)
	if err != nil {
		return nil, "", fmt.Errorf("provisioning: failed to load practice: %w", err)
	}
	knowledge, err := s.practices.ListKnowledge(ctx, practiceID)
	if err != nil {
		return nil, "", fmt.Errorf("provisioning: failed to load knowledge base: %w", err)
	}

	assistantID, err := s.platform.CreateAssistant(ctx, s.builder.Build(practice, knowledge))
	if err != nil {
		return nil, "", fmt.Errorf("provisioning: failed to create assistant: %w", err)
	}

	pending, err := s.store.CreatePending(ctx, practiceID, assistantID)
	if err != nil {
		return nil, "", err
	}
	return pending, assistantID, nil
}

// Provision sets a practice up end to end: assistant, number, import, link.
// The pending phone row is written before the purchase; if any later step
// fails, the row stays pending for an operator to resume or release.
func (s *Service) Provision(ctx context.Context, practiceID uuid.UUID, areaCode string) (*ProvisionResult, error) {
	ctx, span := provisionTracer.Start(ctx, "provisioning.provision")
	defer span.End()
	span.SetAttributes(attribute.String("dentalai.practice_id", practiceID.String()))

	pending, assistantID, err := s.createAssistant(ctx, practiceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	candidates, err := s.numbers.SearchAvailableNumbers(ctx, areaCode, 1)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provisioning: failed to search numbers: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("provisioning: no numbers available for area code %q", areaCode)
	}
	number := candidates[0]

	twilioSID, err := s.numbers.PurchaseNumber(ctx, number, s.smsURL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provisioning: failed to purchase %s: %w", number, err)
	}

	vapiNumberID, err := s.platform.ImportTwilioNumber(ctx, number, twilioSID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provisioning: failed to import %s: %w", number, err)
	}
	if err := s.platform.LinkAssistant(ctx, vapiNumberID, assistantID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provisioning: failed to link assistant: %w", err)
	}

	if _, err := s.store.Activate(ctx, pending.ID, number, twilioSID, vapiNumberID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.practices.UpdatePhoneNumber(ctx, practiceID, number); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provisioning: failed to assign number to practice: %w", err)
	}

	s.logger.Info("practice provisioned",
		"practice_id", practiceID, "number", number, "assistant_id", assistantID)
	return &ProvisionResult{
		PhoneNumber:  number,
		AssistantID:  assistantID,
		TwilioSID:    twilioSID,
		VapiNumberID: vapiNumberID,
	}, nil
}
