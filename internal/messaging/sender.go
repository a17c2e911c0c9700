package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dentalops/dental-ai-platform/internal/messages"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

var twilioSendTracer = otel.Tracer("dentalai.internal.messaging.twilio_send")

// SendRequest is one outbound SMS.
type SendRequest struct {
	PracticeID  uuid.UUID
	PatientID   *uuid.UUID
	From        string
	To          string
	Body        string
	RelatedType string
	RelatedID   *uuid.UUID
}

// Sender delivers outbound SMS. The production implementation is
// TwilioSender; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, req SendRequest) error
}

// TwilioSender posts SMS messages through Twilio's REST API and logs every
// attempt to the message store.
type TwilioSender struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
	store      messages.Store
	logger     *logging.Logger
}

// NewTwilioSender builds a sender. baseURL overrides the Twilio API host,
// which tests use; empty means production.
func NewTwilioSender(accountSID, authToken, baseURL string, store messages.Store, logger *logging.Logger) *TwilioSender {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		logger:     logger,
	}
}

var _ Sender = (*TwilioSender)(nil)

// Send dispatches a single SMS, retrying transient failures up to three
// times. Non-rate-limit 4xx responses are not retried.
func (s *TwilioSender) Send(ctx context.Context, req SendRequest) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	if req.To == "" || req.From == "" {
		return errors.New("messaging: from and to required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentalai.practice_id", req.PracticeID.String()),
		attribute.String("dentalai.to", req.To),
	)

	payload := url.Values{}
	payload.Set("To", req.To)
	payload.Set("From", req.From)
	payload.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var providerSID string
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		httpReq.SetBasicAuth(s.accountSID, s.authToken)
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				if err := json.Unmarshal(body, &parsed); err == nil {
					providerSID = parsed.SID
				}
				s.logMessage(ctx, req, messages.StatusSent, providerSID)
				s.logger.Info("twilio sms sent", "practice_id", req.PracticeID, "to", req.To)
				return nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	s.logMessage(ctx, req, messages.StatusFailed, providerSID)
	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}

func (s *TwilioSender) logMessage(ctx context.Context, req SendRequest, status, providerSID string) {
	if s.store == nil {
		return
	}
	_, err := s.store.Insert(ctx, messages.InsertRequest{
		PracticeID:  req.PracticeID,
		PatientID:   req.PatientID,
		Direction:   messages.DirectionOutbound,
		FromNumber:  req.From,
		ToNumber:    req.To,
		Body:        req.Body,
		Status:      status,
		Provider:    "twilio",
		ProviderSID: providerSID,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
	})
	if err != nil {
		s.logger.Error("failed to log outbound sms", "error", err, "practice_id", req.PracticeID)
	}
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	var apiErr twilioAPIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("status %d (code %d): %s", status, apiErr.Code, apiErr.Message)
	}
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Sprintf("status %d: %s", status, msg)
}
