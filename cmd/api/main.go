package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medconnect/scheduling-api/cmd/mainconfig"
	"github.com/medconnect/scheduling-api/internal/api/router"
	"github.com/medconnect/scheduling-api/internal/appointments"
	appconfig "github.com/medconnect/scheduling-api/internal/config"
	"github.com/medconnect/scheduling-api/internal/doctors"
	"github.com/medconnect/scheduling-api/internal/notify"
	"github.com/medconnect/scheduling-api/internal/observability/metrics"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

func main() {
	// Load .env in local development; in deployed environments the
	// variables come from the environment itself.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-api server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.SessionJWTSecret == "" {
		logger.Error("SESSION_JWT_SECRET is required")
		os.Exit(1)
	}

	// The doctor directory uses database/sql; the appointment store uses a
	// pgx pool for transactional booking.
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancelPing()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Doctor repositories: the booking path reads doctors straight from
	// Postgres; only the public directory goes through the Redis cache.
	doctorsRepo := doctors.NewPostgresRepository(sqlDB)
	var directoryRepo doctors.Repository = doctorsRepo
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, serving doctors uncached", "error", err)
		} else {
			directoryRepo = doctors.NewCachedRepository(doctorsRepo, redisClient, cfg.DoctorCacheTTL, logger)
			logger.Info("doctor directory cache enabled", "ttl", cfg.DoctorCacheTTL)
		}
	}

	notifier := notify.NewService(buildSMSSender(cfg, logger), buildEmailSender(ctx, cfg, logger), logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	apptStore := appointments.NewRepository(pool)
	apptService := appointments.NewService(apptStore, doctorsRepo, notifier, schedulingMetrics, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		DoctorsHandler:      doctors.NewHandler(directoryRepo, notifier, logger),
		AppointmentsHandler: appointments.NewHandler(apptService, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		SessionSecret:       cfg.SessionJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
		RequestTimeout:      cfg.StoreTimeout,
		HealthPing: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			defer cancel()
			return pool.Ping(ctx)
		},
	}
	r := router.New(routerCfg)

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
	fmt.Println("Server exited gracefully")
}

func buildSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	switch cfg.SMSProvider {
	case "twilio":
		sender := notify.NewTwilioSender(notify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			BaseURL:    cfg.TwilioBaseURL,
		}, logger)
		if sender == nil {
			logger.Warn("twilio selected but not configured, SMS disabled")
			return nil
		}
		return sender
	case "stub":
		return notify.NewStubSMSSender(logger)
	default:
		logger.Warn("unknown SMS provider, SMS disabled", "provider", cfg.SMSProvider)
		return nil
	}
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			logger.Warn("sendgrid selected but not configured, email disabled")
			return nil
		}
		return sender
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config, email disabled", "error", err)
			return nil
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		if sender == nil {
			logger.Warn("ses selected but not configured, email disabled")
			return nil
		}
		return sender
	case "stub":
		return notify.NewStubEmailSender(logger)
	case "none", "":
		return nil
	default:
		logger.Warn("unknown email provider, email disabled", "provider", cfg.EmailProvider)
		return nil
	}
}
