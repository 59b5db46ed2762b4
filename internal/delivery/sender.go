package delivery

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/mail"
	"github.com/mailmind/mailmind-backend/internal/retry"
)

// SenderConfig controls one sender instance.
type SenderConfig struct {
	// Timeout bounds each delivery attempt, not the whole retry sequence.
	Timeout time.Duration
	Retry   retry.Config
}

// Sender delivers outbound email through the retry orchestrator. A terminal
// delivery failure never propagates as itself: it is logged and converted to
// a send failure so no caller is tempted to email the user about it.
type Sender struct {
	transport Transport
	cfg       SenderConfig
	logger    *slog.Logger
}

// NewSender creates a Sender.
func NewSender(transport Transport, cfg SenderConfig, logger *slog.Logger) *Sender {
	return &Sender{transport: transport, cfg: cfg, logger: logger}
}

// Send delivers out, retrying transient failures. On terminal failure the
// classified cause is logged (credential rejections as critical) and a
// send-failure error is returned.
func (s *Sender) Send(ctx context.Context, out *mail.OutgoingEmail) error {
	_, err := retry.Do(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return struct{}{}, s.transport.Deliver(callCtx, out)
	})
	if err == nil {
		s.logger.Info("email sent",
			slog.String("to", out.To),
			slog.String("in_reply_to", out.InReplyTo),
		)
		return nil
	}

	status := apperrors.StatusOf(err)
	switch {
	case apperrors.KindOf(err) == apperrors.KindAuthFailure:
		s.logger.Error("mail API credentials rejected",
			slog.String("to", out.To),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	case status >= 400 && status < 500 && status != 429:
		s.logger.Error("mail API rejected request",
			slog.String("to", out.To),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Error("email delivery failed",
			slog.String("to", out.To),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	return apperrors.Wrap(apperrors.KindSendFailure, "delivery failed", err)
}
