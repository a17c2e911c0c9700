package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

const (
	defaultBaseURL = "https://api.cal.com"
	defaultTimeout = 15 * time.Second
)

// CalComClient implements Provider against the Cal.com v1 REST API.
type CalComClient struct {
	baseURL    string
	httpClient *http.Client
	defaults   Credentials
	logger     *logging.Logger
}

// NewCalComClient creates a Cal.com client. The defaults are used whenever a
// request's credentials leave a field blank.
func NewCalComClient(baseURL string, defaults Credentials, timeout time.Duration, logger *logging.Logger) *CalComClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalComClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		defaults:   defaults,
		logger:     logger,
	}
}

type slotsResponse struct {
	Slots json.RawMessage `json:"slots"`
}

// GetAvailableSlots queries /v1/slots for the given window and returns the
// slots object untouched.
func (c *CalComClient) GetAvailableSlots(ctx context.Context, req SlotsRequest) (json.RawMessage, error) {
	creds := req.Credentials.Merge(c.defaults)
	if creds.APIKey == "" {
		return nil, fmt.Errorf("scheduling: missing cal.com api key")
	}

	q := url.Values{}
	q.Set("apiKey", creds.APIKey)
	q.Set("startTime", req.StartTime)
	q.Set("endTime", req.EndTime)
	q.Set("eventTypeId", strconv.Itoa(creds.EventTypeID))

	var out slotsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/slots?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Slots == nil {
		return json.RawMessage(`{}`), nil
	}
	return out.Slots, nil
}

type createBookingPayload struct {
	APIKey      string           `json:"apiKey"`
	EventTypeID int              `json:"eventTypeId"`
	Start       string           `json:"start"`
	Responses   bookingResponses `json:"responses"`
	TimeZone    string           `json:"timeZone"`
	Language    string           `json:"language"`
	Metadata    map[string]any   `json:"metadata"`
}

type bookingResponses struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Location bookingLocation `json:"location"`
}

type bookingLocation struct {
	OptionValue string `json:"optionValue"`
	Value       string `json:"value"`
}

type createBookingResponse struct {
	ID        json.Number `json:"id"`
	UID       string      `json:"uid"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
}

// CreateBooking creates a calendar event via POST /v1/bookings. The caller's
// phone number rides in the location field, which is how phone-call
// appointments are modelled on Cal.com.
func (c *CalComClient) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	creds := req.Credentials.Merge(c.defaults)
	if creds.APIKey == "" {
		return nil, fmt.Errorf("scheduling: missing cal.com api key")
	}
	tz := req.TimeZone
	if tz == "" {
		tz = "America/New_York"
	}

	payload := createBookingPayload{
		APIKey:      creds.APIKey,
		EventTypeID: creds.EventTypeID,
		Start:       req.StartTime.Format(time.RFC3339),
		Responses: bookingResponses{
			Name:  req.Name,
			Email: req.Email,
			Location: bookingLocation{
				OptionValue: req.Phone,
				Value:       "phone",
			},
		},
		TimeZone: tz,
		Language: "en",
		Metadata: map[string]any{},
	}

	var out createBookingResponse
	if err := c.do(ctx, http.MethodPost, "/v1/bookings", payload, &out); err != nil {
		return nil, err
	}

	eventID := out.UID
	if eventID == "" {
		eventID = out.ID.String()
	}
	start := out.StartTime
	if start.IsZero() {
		start = req.StartTime
	}
	end := out.EndTime
	if end.IsZero() {
		end = start.Add(bookings.DefaultDuration)
	}
	return &BookingResult{EventID: eventID, StartTime: start, EndTime: end}, nil
}

func (c *CalComClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("scheduling: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("scheduling: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scheduling: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("scheduling: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("scheduling: cal.com returned status %d: %s", resp.StatusCode, msg)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("scheduling: decode response: %w", err)
		}
	}
	return nil
}
