package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dentalops/dental-ai-platform/internal/api/router"
	"github.com/dentalops/dental-ai-platform/internal/assistant"
	"github.com/dentalops/dental-ai-platform/internal/bookings"
	"github.com/dentalops/dental-ai-platform/internal/calls"
	appconfig "github.com/dentalops/dental-ai-platform/internal/config"
	"github.com/dentalops/dental-ai-platform/internal/http/handlers"
	"github.com/dentalops/dental-ai-platform/internal/leads"
	"github.com/dentalops/dental-ai-platform/internal/messages"
	"github.com/dentalops/dental-ai-platform/internal/messaging"
	"github.com/dentalops/dental-ai-platform/internal/observability/metrics"
	"github.com/dentalops/dental-ai-platform/internal/patients"
	"github.com/dentalops/dental-ai-platform/internal/practices"
	"github.com/dentalops/dental-ai-platform/internal/provisioning"
	"github.com/dentalops/dental-ai-platform/internal/scheduling"
	"github.com/dentalops/dental-ai-platform/internal/voiceai"
	"github.com/dentalops/dental-ai-platform/pkg/logging"
)

func main() {
	// Best effort; production injects env directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// database/sql handle for the dashboard's reporting queries.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	redisClient := newRedisClient(ctx, cfg, logger)

	// Repositories.
	practicesRepo := practices.NewPostgresRepository(pool)
	patientsRepo := patients.NewPostgresRepository(pool)
	callsRepo := calls.NewPostgresRepository(pool)
	bookingsRepo := bookings.NewPostgresRepository(pool)
	leadsRepo := leads.NewPostgresRepository(pool)
	messageStore := messages.NewPostgresStore(pool)
	numberStore := provisioning.NewPostgresStore(pool)

	resolver := practices.NewResolver(practicesRepo, redisClient, cfg.ResolverCacheTTL, logger)

	// External clients.
	calComDefaults := scheduling.Credentials{APIKey: cfg.CalComAPIKey}
	if cfg.CalComEventTypeID != "" {
		if id, err := strconv.Atoi(cfg.CalComEventTypeID); err == nil {
			calComDefaults.EventTypeID = id
		} else {
			logger.Warn("ignoring malformed CALCOM_EVENT_TYPE_ID", "value", cfg.CalComEventTypeID)
		}
	}
	calendar := scheduling.NewCalComClient(cfg.CalComBaseURL, calComDefaults, 10*time.Second, logger)

	smsSender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, "", messageStore, logger)

	webhookMetrics := metrics.NewWebhookMetrics(nil)

	builder := assistant.NewBuilder(cfg.PublicBaseURL+"/webhooks/vapi", cfg.VapiWebhookSecret)

	dispatcher := voiceai.NewDispatcher(voiceai.DispatcherConfig{
		Calendar:    calendar,
		Patients:    patientsRepo,
		Bookings:    bookingsRepo,
		SMS:         smsSender,
		Metrics:     webhookMetrics,
		Logger:      logger,
		ToolTimeout: cfg.ToolCallTimeout,
	})

	reconciler := voiceai.NewReconciler(voiceai.ReconcilerConfig{
		Calls:    callsRepo,
		Bookings: bookingsRepo,
		Leads:    leadsRepo,
		Patients: patientsRepo,
		Metrics:  webhookMetrics,
		Logger:   logger,
	})

	voiceWebhook := voiceai.NewHandler(voiceai.HandlerConfig{
		Secret:     cfg.VapiWebhookSecret,
		Resolver:   resolver,
		Practices:  practicesRepo,
		Builder:    builder,
		Dispatcher: dispatcher,
		Reconciler: reconciler,
		Metrics:    webhookMetrics,
		Logger:     logger,
	})

	smsAuthToken := cfg.TwilioAuthToken
	if cfg.TwilioWebhookSecret != "" {
		smsAuthToken = cfg.TwilioWebhookSecret
	}
	smsWebhook := messaging.NewHandler(messaging.HandlerConfig{
		Resolver:   resolver,
		Patients:   patientsRepo,
		Bookings:   bookingsRepo,
		Leads:      leadsRepo,
		Messages:   messageStore,
		Metrics:    webhookMetrics,
		Logger:     logger,
		AuthToken:  smsAuthToken,
		WebhookURL: cfg.PublicBaseURL + "/webhooks/twilio/sms",
	})

	vapiClient := provisioning.NewVapiClient(cfg.VapiBaseURL, cfg.VapiAPIKey, cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)
	twilioClient := provisioning.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, "", logger)
	provisionSvc := provisioning.NewService(provisioning.ServiceConfig{
		Practices:     practicesRepo,
		Store:         numberStore,
		Platform:      vapiClient,
		Numbers:       twilioClient,
		Builder:       builder,
		SMSWebhookURL: cfg.PublicBaseURL + "/webhooks/twilio/sms",
		Logger:        logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		VoiceWebhook:   voiceWebhook,
		SMSWebhook:     smsWebhook,
		Dashboard:      handlers.NewDashboardHandler(sqlDB, logger),
		Provision:      handlers.NewProvisionHandler(provisionSvc, logger),
		MetricsHandler: promhttp.Handler(),
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newRedisClient returns nil when Redis is not configured or unreachable;
// the practice resolver degrades to database-only lookups.
func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, resolver cache disabled", "error", err)
		return nil
	}
	return client
}
