// Package voiceai serves the voice platform webhook: assistant requests at
// the start of a call, tool calls mid-call, and the end-of-call report that
// drives lead reconciliation.
package voiceai

import (
	"encoding/json"
	"strings"
	"time"
)

// Webhook message types we act on. Anything else is acknowledged and
// dropped.
const (
	TypeAssistantRequest = "assistant-request"
	TypeToolCalls        = "tool-calls"
	TypeEndOfCallReport  = "end-of-call-report"
)

// Envelope is the outer webhook payload.
type Envelope struct {
	Message WebhookMessage `json:"message"`
}

// WebhookMessage is the inner payload; which fields are set depends on Type.
type WebhookMessage struct {
	Type string `json:"type"`
	Call *Call  `json:"call"`

	// tool-calls; the platform has shipped both field names.
	ToolCalls    []ToolCall `json:"toolCalls"`
	ToolCallList []ToolCall `json:"toolCallList"`

	// end-of-call-report
	EndedReason     string     `json:"endedReason"`
	DurationSeconds float64    `json:"durationSeconds"`
	Summary         string     `json:"summary"`
	Transcript      string     `json:"transcript"`
	RecordingURL    string     `json:"recordingUrl"`
	Analysis        *Analysis  `json:"analysis"`
	StartedAt       *time.Time `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
}

// Calls returns the tool call batch, tolerating either field name.
func (m *WebhookMessage) Calls() []ToolCall {
	if len(m.ToolCalls) > 0 {
		return m.ToolCalls
	}
	return m.ToolCallList
}

// BestSummary prefers the analysis summary over the top-level one.
func (m *WebhookMessage) BestSummary() string {
	if m.Analysis != nil && strings.TrimSpace(m.Analysis.Summary) != "" {
		return m.Analysis.Summary
	}
	return m.Summary
}

// Analysis is the platform's post-call analysis block.
type Analysis struct {
	Summary           string `json:"summary"`
	SuccessEvaluation string `json:"successEvaluation"`
}

// Call identifies the live call and its endpoints.
type Call struct {
	ID          string       `json:"id"`
	Customer    *Customer    `json:"customer"`
	PhoneNumber *PhoneNumber `json:"phoneNumber"`
}

// CustomerNumber returns the caller's number, if present.
func (c *Call) CustomerNumber() string {
	if c == nil || c.Customer == nil {
		return ""
	}
	return c.Customer.Number
}

// DestinationNumber returns the practice number the caller dialed.
func (c *Call) DestinationNumber() string {
	if c == nil || c.PhoneNumber == nil {
		return ""
	}
	return c.PhoneNumber.Number
}

type Customer struct {
	Number string `json:"number"`
}

type PhoneNumber struct {
	Number string `json:"number"`
}

// ToolCall is one function invocation requested by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments unmarshals the tool arguments into out. The platform
// sends arguments either as a JSON object or as a string containing JSON;
// both are handled.
func (f ToolFunction) DecodeArguments(out any) error {
	raw := f.Arguments
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = json.RawMessage(inner)
	}
	return json.Unmarshal(raw, out)
}

// ToolResult is one entry in the results array returned to the platform.
// Exactly one of Result or Error is set.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}
