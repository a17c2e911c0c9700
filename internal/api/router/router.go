// Package router assembles the HTTP surface: public webhook endpoints for
// the voice and SMS providers, health and metrics, and the JWT-protected
// dashboard API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentalops/dental-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/dentalops/dental-ai-platform/internal/http/middleware"
	"github.com/dentalops/dental-ai-platform/internal/messaging"
	"github.com/dentalops/dental-ai-platform/internal/voiceai"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

// Config holds the router's handlers and settings. Dashboard handlers are
// optional; nil disables their routes.
type Config struct {
	Logger         *logging.Logger
	VoiceWebhook   *voiceai.Handler
	SMSWebhook     *messaging.Handler
	Dashboard      *handlers.DashboardHandler
	Provision      *handlers.ProvisionHandler
	MetricsHandler http.Handler
	AdminJWTSecret string
}

// New builds the chi router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Provider webhooks authenticate themselves (shared secret header,
	// Twilio signature); they must stay outside the admin JWT.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/vapi", cfg.VoiceWebhook.VapiWebhook)
		r.Post("/twilio/sms", cfg.SMSWebhook.InboundSMSWebhook)
	})

	if cfg.Dashboard != nil {
		r.Route("/api/dashboard", func(r chi.Router) {
			r.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			r.Route("/practices/{practiceID}", func(r chi.Router) {
				r.Get("/overview", cfg.Dashboard.Overview)
				r.Get("/calls", cfg.Dashboard.ListCalls)
				r.Get("/leads", cfg.Dashboard.ListLeads)
				if cfg.Provision != nil {
					r.Post("/provision", cfg.Provision.Provision)
				}
			})
		})
	}

	return r
}
