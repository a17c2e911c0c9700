package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

// NumberProvider buys phone numbers. The production implementation is
// TwilioClient; tests substitute fakes.
type NumberProvider interface {
	SearchAvailableNumbers(ctx context.Context, areaCode string, limit int) ([]string, error)
	// PurchaseNumber buys the number and points its SMS webhook at smsURL.
	// Voice stays unconfigured; the voice platform takes it over on import.
	PurchaseNumber(ctx context.Context, number, smsURL string) (string, error)
}

// TwilioClient provisions numbers through Twilio's REST API.
type TwilioClient struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewTwilioClient(accountSID, authToken, baseURL string, logger *logging.Logger) *TwilioClient {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

var _ NumberProvider = (*TwilioClient)(nil)

// SearchAvailableNumbers lists purchasable US local numbers, optionally
// within an area code.
func (c *TwilioClient) SearchAvailableNumbers(ctx context.Context, areaCode string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("SmsEnabled", "true")
	q.Set("VoiceEnabled", "true")
	q.Set("PageSize", fmt.Sprintf("%d", limit))
	if areaCode != "" {
		q.Set("AreaCode", areaCode)
	}
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/AvailablePhoneNumbers/US/Local.json?%s", c.accountSID, q.Encode())

	var out struct {
		AvailablePhoneNumbers []struct {
			PhoneNumber string `json:"phone_number"`
		} `json:"available_phone_numbers"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}

	numbers := make([]string, 0, len(out.AvailablePhoneNumbers))
	for _, n := range out.AvailablePhoneNumbers {
		numbers = append(numbers, n.PhoneNumber)
	}
	return numbers, nil
}

// PurchaseNumber buys a number and returns its Twilio SID.
func (c *TwilioClient) PurchaseNumber(ctx context.Context, number, smsURL string) (string, error) {
	form := url.Values{}
	form.Set("PhoneNumber", number)
	if smsURL != "" {
		form.Set("SmsUrl", smsURL)
		form.Set("SmsMethod", http.MethodPost)
	}
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/IncomingPhoneNumbers.json", c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("provisioning: create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provisioning: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("provisioning: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return "", fmt.Errorf("provisioning: twilio returned status %d: %s", resp.StatusCode, msg)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("provisioning: decode response: %w", err)
	}
	if out.SID == "" {
		return "", fmt.Errorf("provisioning: twilio returned empty sid")
	}
	c.logger.Info("twilio number purchased", "number", number, "sid", out.SID)
	return out.SID, nil
}

func (c *TwilioClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("provisioning: create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provisioning: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provisioning: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("provisioning: twilio returned status %d: %s", resp.StatusCode, msg)
	}
	return json.Unmarshal(body, out)
}
