package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Vapi voice-AI platform
	VapiAPIKey        string
	VapiBaseURL       string
	VapiWebhookSecret string

	// Twilio telephony
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWebhookSecret string

	// Cal.com scheduling fallback credentials. Practices may override these
	// with their own API key and event type during onboarding.
	CalComAPIKey      string
	CalComBaseURL     string
	CalComEventTypeID string

	// Budget for a single assistant tool call, covering the calendar round trip.
	ToolCallTimeout time.Duration

	AdminJWTSecret string

	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	ResolverCacheTTL time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		CalComAPIKey:      getEnv("CALCOM_API_KEY", ""),
		CalComBaseURL:     getEnv("CALCOM_BASE_URL", "https://api.cal.com"),
		CalComEventTypeID: getEnv("CALCOM_EVENT_TYPE_ID", ""),

		ToolCallTimeout: getEnvAsDuration("TOOL_CALL_TIMEOUT", 15*time.Second),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		ResolverCacheTTL: getEnvAsDuration("RESOLVER_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
