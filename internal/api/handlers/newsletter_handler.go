package handlers

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/mailmind/mailmind-backend/internal/api/response"
	"github.com/mailmind/mailmind-backend/internal/newsletter"
)

// NewsletterRunner executes one broadcast run.
type NewsletterRunner interface {
	Run(ctx context.Context) (*newsletter.RunReport, error)
}

// NewsletterHandler handles operator-triggered newsletter runs
type NewsletterHandler struct {
	runner NewsletterRunner
	logger *slog.Logger
}

// NewNewsletterHandler creates a new NewsletterHandler
func NewNewsletterHandler(runner NewsletterRunner, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{runner: runner, logger: logger}
}

// Trigger handles POST /api/jobs/newsletter
func (h *NewsletterHandler) Trigger(c echo.Context) error {
	report, err := h.runner.Run(c.Request().Context())
	if err != nil {
		h.logger.Error("newsletter run failed",
			slog.String("error", err.Error()),
		)
		return response.InternalError(c, "newsletter run failed")
	}

	return response.Success(c, report)
}
