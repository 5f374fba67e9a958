package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leadcrm-booking/cmd/mainconfig"
	"github.com/wolfman30/leadcrm-booking/internal/api/router"
	"github.com/wolfman30/leadcrm-booking/internal/app/bootstrap"
	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/audit"
	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/booking"
	appconfig "github.com/wolfman30/leadcrm-booking/internal/config"
	"github.com/wolfman30/leadcrm-booking/internal/events"
	httpmiddleware "github.com/wolfman30/leadcrm-booking/internal/http/middleware"
	"github.com/wolfman30/leadcrm-booking/internal/leads"
	"github.com/wolfman30/leadcrm-booking/internal/notify"
	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
	"github.com/wolfman30/leadcrm-booking/internal/reminders"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting leadcrm booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, bookingMetrics := setupMetrics()

	pool, err := bootstrap.BuildPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}
	auditDB, err := bootstrap.BuildAuditDB(cfg)
	if err != nil {
		return err
	}
	if auditDB != nil {
		defer func() { _ = auditDB.Close() }()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	clients, err := setupAWS(ctx, cfg)
	if err != nil {
		return err
	}

	repos := buildRepositories(pool)
	schedulingStore := bootstrap.BuildSchedulingStore(redisClient)

	availOpts := []availability.Option{availability.WithMetrics(bookingMetrics)}
	if redisClient != nil && cfg.SlotCacheTTL > 0 {
		availOpts = append(availOpts, availability.WithCache(availability.NewRedisCache(redisClient), cfg.SlotCacheTTL))
	}
	availabilitySvc := availability.NewService(schedulingStore, repos.appointments, logger, availOpts...)
	appointmentsSvc := appointments.NewService(repos.appointments, availabilitySvc, repos.publisher, bookingMetrics, logger)

	negotiationStore, storeName := bootstrap.BuildNegotiationStore(cfg, redisClient, clients.dynamo, logger)
	logger.Info("negotiation store selected", "store", storeName)
	bookingSvc := booking.NewService(negotiationStore, availabilitySvc, appointmentsSvc, repos.leads, repos.publisher, logger,
		booking.WithRecorder(audit.NewRecorder(auditDB)),
		booking.WithMetrics(bookingMetrics),
		booking.WithOfferLimit(cfg.MaxOfferedSlots),
	)

	var workers sync.WaitGroup
	deliverer := events.NewDeliverer(repos.pending, buildEventHandler(cfg, clients.sqs, logger), logger).
		WithInterval(cfg.OutboxPollInterval).
		WithMetrics(bookingMetrics)
	workers.Add(1)
	go func() {
		defer workers.Done()
		deliverer.Start(ctx)
	}()

	emailSender, provider, reason := bootstrap.BuildEmailSender(cfg, clients.ses, logger)
	logger.Info("reminder email provider selected", "provider", provider, "reason", reason)
	reminderWorker := reminders.NewWorker(repos.appointments, repos.leads, notify.NewService(emailSender, logger), logger).
		WithMetrics(bookingMetrics)
	workers.Add(1)
	go func() {
		defer workers.Done()
		reminderWorker.Run(ctx, cfg.ReminderPollInterval)
	}()

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; workspace routes are disabled")
	}
	handler := router.New(&router.Config{
		Logger:              logger,
		LeadsHandler:        leads.NewHandler(repos.leads, logger),
		SchedulingHandler:   scheduling.NewHandler(schedulingStore, logger),
		AvailabilityHandler: availability.NewHandler(availabilitySvc, logger),
		AppointmentsHandler: appointments.NewHandler(appointmentsSvc, logger),
		BookingHandler:      booking.NewHandler(bookingSvc, logger),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
		Checks:              healthChecks(pool, redisClient),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	workers.Wait()
	return err
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

type awsClients struct {
	dynamo *dynamodb.Client
	sqs    *sqs.Client
	ses    *sesv2.Client
}

func setupAWS(ctx context.Context, cfg *appconfig.Config) (awsClients, error) {
	if !cfg.UsesAWS() {
		return awsClients{}, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return awsClients{}, err
	}
	return newAWSClients(awsCfg), nil
}

func newAWSClients(awsCfg aws.Config) awsClients {
	return awsClients{
		dynamo: dynamodb.NewFromConfig(awsCfg),
		sqs:    sqs.NewFromConfig(awsCfg),
		ses:    sesv2.NewFromConfig(awsCfg),
	}
}

type repositories struct {
	leads        leads.Repository
	appointments appointments.Repository
	publisher    events.Publisher
	pending      events.PendingStore
}

// buildRepositories uses Postgres when a pool is available and memory otherwise.
func buildRepositories(pool *pgxpool.Pool) repositories {
	if pool == nil {
		memory := events.NewMemoryPublisher()
		return repositories{
			leads:        leads.NewInMemoryRepository(),
			appointments: appointments.NewInMemoryRepository(),
			publisher:    memory,
			pending:      memory,
		}
	}
	outbox := events.NewOutboxStore(pool)
	return repositories{
		leads:        leads.NewPostgresRepository(pool),
		appointments: appointments.NewPostgresRepository(pool),
		publisher:    outbox,
		pending:      outbox,
	}
}

func buildEventHandler(cfg *appconfig.Config, sqsClient *sqs.Client, logger *logging.Logger) events.DeliveryHandler {
	if sqsClient != nil && strings.TrimSpace(cfg.EventsQueueURL) != "" {
		return events.NewSQSPublisher(sqsClient, cfg.EventsQueueURL)
	}
	return events.LogHandler{Logger: logger}
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
