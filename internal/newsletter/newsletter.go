// Package newsletter runs the broadcast variant of the pipeline: one
// generated digest fanned out to every opted-in subscriber. It reuses the
// generation, delivery and billing primitives of the reply flow; only the
// audience differs.
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mailmind/mailmind-backend/internal/billing"
	"github.com/mailmind/mailmind-backend/internal/llm"
	"github.com/mailmind/mailmind-backend/internal/mail"
	"github.com/mailmind/mailmind-backend/internal/models"
	"github.com/mailmind/mailmind-backend/internal/repository"
)

const digestInstruction = "You are a newsletter writer. Write a short, engaging digest " +
	"for subscribers of an email assistant service. Use plain text, no markdown."

// Generator is the text-generation primitive shared with the reply flow.
type Generator interface {
	GenerateText(ctx context.Context, instruction, input string) (*llm.Response, error)
}

// Sender delivers outbound email.
type Sender interface {
	Send(ctx context.Context, out *mail.OutgoingEmail) error
}

// Ledger records billed usage.
type Ledger interface {
	TrackUsage(ctx context.Context, user *models.User, messageID, model string, promptTokens, completionTokens int) (billing.CostBreakdown, error)
}

// Config holds the newsletter run settings.
type Config struct {
	// FromAddress is the broadcast sender address.
	FromAddress string

	// OperatorEmail identifies the account billed for digest generation.
	// Subscribers never pay for broadcasts.
	OperatorEmail string

	// ServiceDomain is used when synthesizing the run's Message-ID.
	ServiceDomain string

	// Topic seeds the digest content.
	Topic string
}

// RunReport summarizes one broadcast run.
type RunReport struct {
	RunID       string  `json:"run_id"`
	Subscribers int     `json:"subscribers"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Model       string  `json:"model,omitempty"`
	CostUSD     float64 `json:"cost_usd"`
	ElapsedMS   int64   `json:"elapsed_ms"`
}

// Service generates and fans out one digest per run.
type Service struct {
	cfg       Config
	users     repository.UserRepository
	generator Generator
	sender    Sender
	ledger    Ledger
	logger    *slog.Logger
}

// NewService creates a newsletter Service.
func NewService(cfg Config, users repository.UserRepository, generator Generator, sender Sender, ledger Ledger, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		users:     users,
		generator: generator,
		sender:    sender,
		ledger:    ledger,
		logger:    logger,
	}
}

// Run executes one broadcast: list subscribers, generate the digest once,
// deliver it to each subscriber. A per-recipient delivery failure is counted
// and logged but does not stop the fan-out.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: uuid.NewString()}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	subscribers, err := s.users.ListNewsletterSubscribers(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list subscribers: %w", err)
	}
	report.Subscribers = len(subscribers)
	if len(subscribers) == 0 {
		logger.Info("no newsletter subscribers, skipping generation")
		report.ElapsedMS = time.Since(start).Milliseconds()
		return report, nil
	}

	resp, err := s.generator.GenerateText(ctx, digestInstruction, s.digestInput())
	if err != nil {
		return report, fmt.Errorf("digest generation failed: %w", err)
	}
	report.Model = resp.Model
	s.billOperator(ctx, logger, resp, report)

	subject := fmt.Sprintf("Mailmind Digest - %s", time.Now().UTC().Format("January 2, 2006"))
	for _, sub := range subscribers {
		out := &mail.OutgoingEmail{
			From:    s.cfg.FromAddress,
			To:      sub.Email,
			Subject: subject,
			Body:    resp.Content,
		}
		if err := s.sender.Send(ctx, out); err != nil {
			report.Failed++
			logger.Error("digest delivery failed",
				slog.String("to", sub.Email),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Sent++
	}

	report.ElapsedMS = time.Since(start).Milliseconds()
	logger.Info("newsletter run finished",
		slog.Int("subscribers", report.Subscribers),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Float64("cost_usd", report.CostUSD),
		slog.Int64("elapsed_ms", report.ElapsedMS),
	)
	return report, nil
}

// billOperator charges digest generation to the operator account. Billing
// failures are logged and swallowed; the broadcast still goes out.
func (s *Service) billOperator(ctx context.Context, logger *slog.Logger, resp *llm.Response, report *RunReport) {
	if s.cfg.OperatorEmail == "" {
		logger.Warn("operator email not configured, digest usage not billed")
		return
	}
	operator, _, err := s.users.GetOrCreate(ctx, s.cfg.OperatorEmail)
	if err != nil {
		logger.Error("failed to resolve operator account",
			slog.String("error", err.Error()),
		)
		return
	}
	messageID := fmt.Sprintf("<newsletter-%s@%s>", report.RunID, s.cfg.ServiceDomain)
	cost, err := s.ledger.TrackUsage(ctx, operator, messageID, resp.Model, resp.PromptTokens, resp.CompletionTokens)
	if err != nil {
		logger.Error("failed to bill newsletter usage",
			slog.String("error", err.Error()),
		)
		return
	}
	report.CostUSD = cost.TotalCostUSD
}

func (s *Service) digestInput() string {
	topic := s.cfg.Topic
	if topic == "" {
		topic = "productivity tips for working with an email assistant"
	}
	return fmt.Sprintf("Write this week's digest about: %s. Today is %s.",
		topic, time.Now().UTC().Format("2006-01-02"))
}
