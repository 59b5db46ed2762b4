package billing

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/models"
	"github.com/mailmind/mailmind-backend/internal/repository"
)

// usageWarningThreshold is the fraction of the spend ceiling at which a
// warning is logged.
const usageWarningThreshold = 0.8

// QuotaDecision is the outcome of the pre-generation quota gate.
type QuotaDecision struct {
	Allowed         bool
	User            *models.User
	RemainingBudget float64
	PercentUsed     float64
	// Reason is set when Allowed is false: quota exhaustion or an
	// inactive paid subscription.
	Reason apperrors.Kind
}

// Ledger enforces per-user spend ceilings and records billed usage.
//
// The quota check and the later increment are separate statements, not one
// transaction: concurrent emails from the same user can both pass the gate
// before either increments usage. The overshoot is bounded by one model
// call per in-flight email and is accepted rather than serialized here.
type Ledger struct {
	users   repository.UserRepository
	usage   repository.UsageLogRepository
	pricing *PricingTable
	logger  *slog.Logger
}

// NewLedger creates a Ledger.
func NewLedger(users repository.UserRepository, usage repository.UsageLogRepository, pricing *PricingTable, logger *slog.Logger) *Ledger {
	return &Ledger{
		users:   users,
		usage:   usage,
		pricing: pricing,
		logger:  logger,
	}
}

// CheckQuota fetches or lazily creates the user for an address and decides
// whether another model call is allowed. It runs before the model is
// invoked; a blocked decision routes the pipeline to the notice flow, never
// to a silent drop.
func (l *Ledger) CheckQuota(ctx context.Context, email string) (*QuotaDecision, error) {
	user, created, err := l.users.GetOrCreate(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("quota check failed for %s: %w", email, err)
	}
	if created {
		l.logger.Info("created user on first contact",
			slog.String("email", user.Email),
			slog.String("tier", user.Tier),
		)
	}

	remaining := user.CostLimitUSD - user.CostUsedUSD
	percentUsed := 0.0
	if user.CostLimitUSD > 0 {
		percentUsed = user.CostUsedUSD / user.CostLimitUSD * 100
	}

	decision := &QuotaDecision{
		User:            user,
		RemainingBudget: remaining,
		PercentUsed:     percentUsed,
	}

	if !IsSubscriptionActive(user) {
		l.logger.Warn("subscription inactive, blocking request",
			slog.String("email", user.Email),
			slog.String("subscription_status", user.SubscriptionStatus),
		)
		decision.Reason = apperrors.KindSubscriptionInactive
		return decision, nil
	}

	if remaining <= 0 {
		l.logger.Warn("usage quota exhausted",
			slog.String("email", user.Email),
			slog.Float64("cost_used_usd", user.CostUsedUSD),
			slog.Float64("cost_limit_usd", user.CostLimitUSD),
		)
		decision.Reason = apperrors.KindQuotaExceeded
		return decision, nil
	}

	if percentUsed >= usageWarningThreshold*100 {
		l.logger.Warn("usage approaching quota",
			slog.String("email", user.Email),
			slog.Float64("percent_used", percentUsed),
			slog.Float64("remaining_usd", remaining),
		)
	}

	decision.Allowed = true
	return decision, nil
}

// TrackUsage records one billed model call: it appends the usage log entry
// and atomically increments the user's running total. Cost is billed the
// moment tokens are consumed, independent of whether the reply is later
// delivered.
func (l *Ledger) TrackUsage(ctx context.Context, user *models.User, messageID, model string, promptTokens, completionTokens int) (CostBreakdown, error) {
	cost := l.pricing.CalculateCost(model, promptTokens, completionTokens)

	entry := &models.UsageLog{
		UserID:           user.ID,
		MessageID:        messageID,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		CostUSD:          cost.TotalCostUSD,
	}
	if err := l.usage.Insert(ctx, entry); err != nil {
		return cost, fmt.Errorf("failed to record usage entry: %w", err)
	}

	updated, err := l.users.IncrementCostUsage(ctx, user.ID, cost.TotalCostUSD)
	if err != nil {
		return cost, fmt.Errorf("failed to apply usage to user total: %w", err)
	}

	l.logger.Info("usage tracked",
		slog.String("email", user.Email),
		slog.String("model", model),
		slog.Int("total_tokens", entry.TotalTokens),
		slog.Float64("cost_usd", cost.TotalCostUSD),
		slog.Float64("cost_used_usd", updated.CostUsedUSD),
	)
	return cost, nil
}

// IsSubscriptionActive reports whether the user's tier grants access. The
// free tier is always active; paid tiers require an active or trialing
// subscription.
func IsSubscriptionActive(user *models.User) bool {
	if user.Tier == models.TierFree {
		return true
	}
	return user.SubscriptionStatus == models.SubscriptionActive ||
		user.SubscriptionStatus == models.SubscriptionTrialing
}
