package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mailmind/mailmind-backend/internal/api"
	"github.com/mailmind/mailmind-backend/internal/billing"
	"github.com/mailmind/mailmind-backend/internal/config"
	"github.com/mailmind/mailmind-backend/internal/database"
	"github.com/mailmind/mailmind-backend/internal/delivery"
	"github.com/mailmind/mailmind-backend/internal/llm"
	"github.com/mailmind/mailmind-backend/internal/newsletter"
	"github.com/mailmind/mailmind-backend/internal/pipeline"
	"github.com/mailmind/mailmind-backend/internal/repository"
	"github.com/mailmind/mailmind-backend/internal/retry"
	smtpserver "github.com/mailmind/mailmind-backend/internal/smtp"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Mailmind Backend Server...")
	cfg.LogConfig(logger)

	db, err := database.Connect(cfg.DatabaseURL, cfg.AppEnv)
	if err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Error("database migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)

	retryCfg := retry.Config{
		MaxAttempts:     cfg.RetryMaxAttempts,
		BaseDelay:       cfg.RetryBaseDelay,
		RetryableStatus: retry.DefaultConfig().RetryableStatus,
	}

	ledger := billing.NewLedger(userRepo, usageRepo, billing.DefaultPricingTable(), logger)

	generator := llm.NewGenerator(
		llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMSearchModel),
		llm.GeneratorConfig{
			Model:        cfg.LLMModel,
			MaxTokens:    cfg.LLMMaxTokens,
			Temperature:  cfg.LLMTemperature,
			EnableSearch: cfg.EnableWebSearch,
			Timeout:      cfg.LLMTimeout,
			Retry:        retryCfg,
		},
		logger,
	)

	sender := delivery.NewSender(
		delivery.NewHTTPClient(cfg.SendGridAPIKey, cfg.SendGridBaseURL),
		delivery.SenderConfig{
			Timeout: cfg.SendTimeout,
			Retry:   retryCfg,
		},
		logger,
	)

	proc := pipeline.New(pipeline.Config{
		ServiceDomain: cfg.ServiceDomain,
		FromAddress:   cfg.FromAddress,
	}, ledger, generator, sender, emailLogRepo, logger)

	news := newsletter.NewService(newsletter.Config{
		FromAddress:   cfg.FromAddress,
		OperatorEmail: cfg.NewsletterOperatorEmail,
		ServiceDomain: cfg.ServiceDomain,
		Topic:         cfg.NewsletterTopic,
	}, userRepo, generator, sender, ledger, logger)

	e := api.NewRouter(&api.RouterConfig{
		DB:         db,
		Processor:  proc,
		Newsletter: news,
		Logger:     logger,
		APIKey:     cfg.APIKey,
		RateLimit:  cfg.RateLimitRequests,
		RateBurst:  cfg.RateLimitBurst,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	var smtpSrv interface{ Close() error }
	if cfg.SMTPEnabled {
		backend := smtpserver.NewBackend(&smtpserver.BackendConfig{
			Processor:     proc,
			ServiceDomain: cfg.ServiceDomain,
			Logger:        logger,
		})
		srv := smtpserver.NewSecureServer(backend, &smtpserver.ServerConfig{
			Addr:   fmt.Sprintf(":%d", cfg.SMTPPort),
			Domain: cfg.ServiceDomain,
		})
		smtpSrv = srv
		go func() {
			logger.Info("SMTP server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("SMTP server failed", slog.String("error", err.Error()))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", slog.String("error", err.Error()))
	}
	if smtpSrv != nil {
		if err := smtpSrv.Close(); err != nil {
			logger.Error("SMTP shutdown failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Server stopped")
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
