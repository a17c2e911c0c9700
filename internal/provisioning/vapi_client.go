package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

const vapiTimeout = 20 * time.Second

// VoicePlatform is the voice platform's management API. The production
// implementation is VapiClient; tests substitute fakes.
type VoicePlatform interface {
	CreateAssistant(ctx context.Context, cfg assistant.Config) (string, error)
	// ImportTwilioNumber registers a Twilio-owned number with the platform
	// and returns the platform's id for it.
	ImportTwilioNumber(ctx context.Context, number, twilioSID string) (string, error)
	LinkAssistant(ctx context.Context, numberID, assistantID string) error
}

// VapiClient talks to the Vapi management API.
type VapiClient struct {
	baseURL          string
	apiKey           string
	twilioAccountSID string
	twilioAuthToken  string
	httpClient       *http.Client
	logger           *logging.Logger
}

// NewVapiClient creates a management API client. The Twilio credentials are
// required for number import; Vapi takes over webhook configuration on the
// imported number.
func NewVapiClient(baseURL, apiKey, twilioAccountSID, twilioAuthToken string, logger *logging.Logger) *VapiClient {
	if baseURL == "" {
		baseURL = "https://api.vapi.ai"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &VapiClient{
		baseURL:          strings.TrimRight(baseURL, "/"),
		apiKey:           apiKey,
		twilioAccountSID: twilioAccountSID,
		twilioAuthToken:  twilioAuthToken,
		httpClient:       &http.Client{Timeout: vapiTimeout},
		logger:           logger,
	}
}

var _ VoicePlatform = (*VapiClient)(nil)

type idResponse struct {
	ID string `json:"id"`
}

// CreateAssistant registers a persistent assistant and returns its id.
func (c *VapiClient) CreateAssistant(ctx context.Context, cfg assistant.Config) (string, error) {
	var out idResponse
	if err := c.do(ctx, http.MethodPost, "/assistant", cfg, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("provisioning: vapi returned empty assistant id")
	}
	return out.ID, nil
}

// ImportTwilioNumber hands a purchased Twilio number over to the platform.
func (c *VapiClient) ImportTwilioNumber(ctx context.Context, number, twilioSID string) (string, error) {
	payload := map[string]string{
		"provider":         "twilio",
		"number":           number,
		"twilioAccountSid": c.twilioAccountSID,
		"twilioAuthToken":  c.twilioAuthToken,
	}
	var out idResponse
	if err := c.do(ctx, http.MethodPost, "/phone-number", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("provisioning: vapi returned empty phone number id")
	}
	c.logger.Info("twilio number imported to vapi", "number", number, "twilio_sid", twilioSID)
	return out.ID, nil
}

// LinkAssistant points an imported number at an assistant.
func (c *VapiClient) LinkAssistant(ctx context.Context, numberID, assistantID string) error {
	payload := map[string]string{"assistantId": assistantID}
	return c.do(ctx, http.MethodPatch, "/phone-number/"+numberID, payload, nil)
}

func (c *VapiClient) do(ctx context.Context, method, path string, payload, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("provisioning: missing vapi api key")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("provisioning: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("provisioning: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provisioning: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provisioning: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("provisioning: vapi returned status %d: %s", resp.StatusCode, msg)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("provisioning: decode response: %w", err)
		}
	}
	return nil
}
