// Package assistant builds the transient voice-assistant configuration
// returned to the voice platform when a call arrives. The configuration is
// rebuilt per call from the practice row and its knowledge base, so
// dashboard edits take effect on the next call without a deploy.
package assistant

import (
	"github.com/dentalops/dental-ai-platform/internal/practices"
)

// Model and transcription defaults shared by every practice.
const (
	modelProvider = "openai"
	modelName     = "gpt-4-turbo"

	defaultVoiceProvider = "11labs"
	voiceStability       = 0.5
	voiceSimilarityBoost = 0.75
)

// Config is the assistant definition in the voice platform's wire shape.
type Config struct {
	Name            string  `json:"name"`
	FirstMessage    string  `json:"firstMessage"`
	Model           Model   `json:"model"`
	Voice           Voice   `json:"voice"`
	ServerURL       string  `json:"serverUrl,omitempty"`
	ServerURLSecret string  `json:"serverUrlSecret,omitempty"`
	EndCallMessage  string  `json:"endCallMessage,omitempty"`
	RecordingEnable bool    `json:"recordingEnabled"`
}

type Model struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Voice struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
}

type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Builder assembles assistant configurations.
type Builder struct {
	serverURL       string
	serverURLSecret string
}

// NewBuilder creates a Builder. serverURL is the public webhook endpoint the
// assistant calls back into for tool execution; secret is echoed in the
// x-vapi-secret header on those callbacks.
func NewBuilder(serverURL, secret string) *Builder {
	return &Builder{serverURL: serverURL, serverURLSecret: secret}
}

// Build produces the full assistant configuration for a practice.
func (b *Builder) Build(p *practices.Practice, knowledge []practices.KnowledgeEntry) Config {
	return Config{
		Name:         p.Name + " Receptionist",
		FirstMessage: greeting(p),
		Model: Model{
			Provider: modelProvider,
			Model:    modelName,
			Messages: []Message{
				{Role: "system", Content: BuildSystemPrompt(p, knowledge)},
			},
			Tools: tools(),
		},
		Voice: Voice{
			Provider:        voiceProviderFor(p),
			VoiceID:         VoiceID(p.AIVoice),
			Stability:       voiceStability,
			SimilarityBoost: voiceSimilarityBoost,
		},
		ServerURL:       b.serverURL,
		ServerURLSecret: b.serverURLSecret,
		RecordingEnable: true,
	}
}

// voiceProviderFor honors a practice's provider choice, falling back to
// ElevenLabs when none is set.
func voiceProviderFor(p *practices.Practice) string {
	if p.AIVoiceProvider != "" {
		return p.AIVoiceProvider
	}
	return defaultVoiceProvider
}

func tools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: Function{
				Name:        "checkAvailability",
				Description: "Check open appointment slots in a time window.",
				Parameters: Parameters{
					Type: "object",
					Properties: map[string]Property{
						"startTime": {Type: "string", Description: "Window start, ISO 8601."},
						"endTime":   {Type: "string", Description: "Window end, ISO 8601."},
					},
					Required: []string{"startTime", "endTime"},
				},
			},
		},
		{
			Type: "function",
			Function: Function{
				Name:        "bookAppointment",
				Description: "Book an appointment for the caller.",
				Parameters: Parameters{
					Type: "object",
					Properties: map[string]Property{
						"name":      {Type: "string", Description: "Caller's full name."},
						"email":     {Type: "string", Description: "Caller's email address."},
						"phone":     {Type: "string", Description: "Caller's phone number."},
						"startTime": {Type: "string", Description: "Appointment start, ISO 8601."},
						"timeZone":  {Type: "string", Description: "Caller's IANA time zone, optional."},
					},
					Required: []string{"name", "email", "phone", "startTime"},
				},
			},
		},
	}
}
