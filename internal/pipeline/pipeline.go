// Package pipeline orchestrates the inbound email flow: parse, quota gate,
// response generation, compose, send. Every accepted webhook call produces
// exactly one outbound reply; every failure past validation is absorbed into
// a fallback body or a log line, never returned to the transport.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mailmind/mailmind-backend/internal/billing"
	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/llm"
	"github.com/mailmind/mailmind-backend/internal/mail"
	"github.com/mailmind/mailmind-backend/internal/models"
	"github.com/mailmind/mailmind-backend/internal/repository"
	"github.com/mailmind/mailmind-backend/internal/templates"
)

// Pipeline states, in processing order.
const (
	StateReceived     = "received"
	StateParsed       = "parsed"
	StateQuotaChecked = "quota_checked"
	StateGenerated    = "generated"
	StateComposed     = "composed"
	StateSent         = "sent"
	StateAcknowledged = "acknowledged"
)

// softBudget is the total-processing duration past which a warning is
// logged. Webhook providers typically redeliver after ~30s of silence.
const softBudget = 25 * time.Second

// Ledger is the quota gate and usage recorder.
type Ledger interface {
	CheckQuota(ctx context.Context, email string) (*billing.QuotaDecision, error)
	TrackUsage(ctx context.Context, user *models.User, messageID, model string, promptTokens, completionTokens int) (billing.CostBreakdown, error)
}

// Generator produces model replies to incoming email.
type Generator interface {
	Generate(ctx context.Context, in *mail.IncomingEmail) (*llm.Response, error)
}

// Sender delivers outbound email.
type Sender interface {
	Send(ctx context.Context, out *mail.OutgoingEmail) error
}

// Config holds the pipeline's identity settings.
type Config struct {
	// ServiceDomain is used when synthesizing a Message-ID for inbound
	// mail that arrives without one.
	ServiceDomain string

	// FromAddress is the reply sender address.
	FromAddress string
}

// Outcome summarizes one pipeline invocation for the caller and for tests.
type Outcome struct {
	InvocationID string
	MessageID    string
	State        string

	// ReplySent reports whether the outbound send succeeded.
	ReplySent bool

	// Fallback is the failure kind that replaced the model reply with a
	// canned body, empty when the model reply was delivered.
	Fallback apperrors.Kind

	CostUSD   float64
	ElapsedMS int64
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       Config
	ledger    Ledger
	generator Generator
	sender    Sender
	emailLogs repository.EmailLogRepository
	logger    *slog.Logger
}

// New creates a Pipeline. emailLogs may be nil; audit writes are skipped.
func New(cfg Config, ledger Ledger, generator Generator, sender Sender, emailLogs repository.EmailLogRepository, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		ledger:    ledger,
		generator: generator,
		sender:    sender,
		emailLogs: emailLogs,
		logger:    logger,
	}
}

// Process runs one inbound webhook field set through the pipeline. The only
// error it returns is a ValidationError for a malformed request; every other
// failure is converted into a fallback reply or logged and absorbed, so the
// transport can always acknowledge.
func (p *Pipeline) Process(ctx context.Context, fields map[string]string) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{
		InvocationID: uuid.NewString(),
		State:        StateReceived,
	}
	logger := p.logger.With(slog.String("invocation_id", outcome.InvocationID))

	in, err := mail.ParseInbound(fields, p.cfg.ServiceDomain)
	if err != nil {
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) {
			logger.Warn("rejected malformed webhook payload",
				slog.Any("missing_fields", ve.MissingFields),
			)
			return outcome, ve
		}
		return outcome, err
	}
	outcome.State = StateParsed
	outcome.MessageID = in.MessageID
	logger = logger.With(
		slog.String("message_id", in.MessageID),
		slog.String("from", in.From),
	)
	logger.Info("email received", slog.String("subject", in.Subject))

	body, user := p.resolveReplyBody(ctx, logger, in, outcome)
	outcome.State = StateComposed

	out := mail.FormatReply(in, body, p.cfg.FromAddress)
	p.send(ctx, logger, out, user, outcome)

	outcome.State = StateAcknowledged
	outcome.ElapsedMS = time.Since(start).Milliseconds()
	if time.Since(start) > softBudget {
		logger.Warn("processing exceeded soft budget",
			slog.Int64("elapsed_ms", outcome.ElapsedMS),
			slog.Duration("soft_budget", softBudget),
		)
	}
	logger.Info("email processed",
		slog.String("state", outcome.State),
		slog.Bool("reply_sent", outcome.ReplySent),
		slog.String("fallback", string(outcome.Fallback)),
		slog.Int64("elapsed_ms", outcome.ElapsedMS),
	)
	return outcome, nil
}

// resolveReplyBody runs the quota gate and, when allowed, the generator.
// It always returns a body: a model reply, a quota or subscription notice,
// or the fallback template for the failure kind.
func (p *Pipeline) resolveReplyBody(ctx context.Context, logger *slog.Logger, in *mail.IncomingEmail, outcome *Outcome) (string, *models.User) {
	decision, err := p.ledger.CheckQuota(ctx, in.From)
	if err != nil {
		logger.Error("quota check failed",
			slog.String("error", err.Error()),
		)
		outcome.Fallback = apperrors.KindProvider
		return templates.ForKind(apperrors.KindProvider), nil
	}
	outcome.State = StateQuotaChecked
	user := decision.User

	if !decision.Allowed {
		logger.Info("request blocked before generation",
			slog.String("reason", string(decision.Reason)),
		)
		p.auditInbound(ctx, logger, in, user, models.EmailStatusBlocked, decision.Reason)
		outcome.Fallback = decision.Reason
		if decision.Reason == apperrors.KindSubscriptionInactive {
			return templates.SubscriptionNotice(), user
		}
		return templates.QuotaNotice(user.CostLimitUSD), user
	}

	resp, err := p.generator.Generate(ctx, in)
	if err != nil {
		kind := apperrors.KindOf(err)
		logger.Error("generation failed, using fallback body",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		p.auditInbound(ctx, logger, in, user, models.EmailStatusProcessed, kind)
		outcome.Fallback = kind
		return templates.ForKind(kind), user
	}
	outcome.State = StateGenerated

	// Tokens are consumed, so usage is billed now, before delivery is
	// attempted. A ledger write failure must not cost the user the reply.
	cost, err := p.ledger.TrackUsage(ctx, user, in.MessageID, resp.Model, resp.PromptTokens, resp.CompletionTokens)
	if err != nil {
		logger.Error("usage tracking failed",
			slog.String("error", err.Error()),
		)
	} else {
		outcome.CostUSD = cost.TotalCostUSD
	}

	p.auditInbound(ctx, logger, in, user, models.EmailStatusProcessed, "")
	return resp.Content, user
}

// send delivers the reply. A send failure is terminal for this message:
// it is logged and audited but never answered with another email.
func (p *Pipeline) send(ctx context.Context, logger *slog.Logger, out *mail.OutgoingEmail, user *models.User, outcome *Outcome) {
	if err := p.sender.Send(ctx, out); err != nil {
		p.auditOutbound(ctx, logger, out, user, models.EmailStatusSendFailed, apperrors.KindSendFailure)
		return
	}
	outcome.State = StateSent
	outcome.ReplySent = true
	p.auditOutbound(ctx, logger, out, user, models.EmailStatusSent, "")
}

func (p *Pipeline) auditInbound(ctx context.Context, logger *slog.Logger, in *mail.IncomingEmail, user *models.User, status string, kind apperrors.Kind) {
	p.audit(ctx, logger, &models.EmailLog{
		MessageID: in.MessageID,
		UserID:    userID(user),
		Direction: models.DirectionInbound,
		Status:    status,
		ErrorKind: string(kind),
	})
}

func (p *Pipeline) auditOutbound(ctx context.Context, logger *slog.Logger, out *mail.OutgoingEmail, user *models.User, status string, kind apperrors.Kind) {
	p.audit(ctx, logger, &models.EmailLog{
		MessageID: out.InReplyTo,
		UserID:    userID(user),
		Direction: models.DirectionOutbound,
		Status:    status,
		ErrorKind: string(kind),
	})
}

// audit writes a best-effort log row; failures are logged and swallowed.
func (p *Pipeline) audit(ctx context.Context, logger *slog.Logger, entry *models.EmailLog) {
	if p.emailLogs == nil {
		return
	}
	if err := p.emailLogs.Insert(ctx, entry); err != nil {
		logger.Warn("email audit write failed",
			slog.String("error", err.Error()),
		)
	}
}

func userID(user *models.User) uint {
	if user == nil {
		return 0
	}
	return user.ID
}
