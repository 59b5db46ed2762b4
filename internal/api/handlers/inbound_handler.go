// Package handlers contains the HTTP handlers for the Mailmind API.
package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/mailmind/mailmind-backend/internal/api/response"
	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/pipeline"
)

// Processor runs one inbound field set through the reply pipeline.
type Processor interface {
	Process(ctx context.Context, fields map[string]string) (*pipeline.Outcome, error)
}

// InboundHandler handles the inbound email webhook
type InboundHandler struct {
	processor Processor
	logger    *slog.Logger
}

// NewInboundHandler creates a new InboundHandler
func NewInboundHandler(processor Processor, logger *slog.Logger) *InboundHandler {
	return &InboundHandler{processor: processor, logger: logger}
}

// Receive handles POST /webhooks/inbound. The provider posts the parsed
// email as multipart form fields. A malformed payload gets a 400 with the
// missing field names; an accepted payload is always acknowledged with 200
// regardless of how processing fares, so the provider never redelivers.
func (h *InboundHandler) Receive(c echo.Context) error {
	// The map mirrors the posted form exactly: absent fields stay absent so
	// the validation diagnostics report what was really received, and extra
	// provider fields (envelope, spam score, ...) pass through untouched.
	fields := map[string]string{}
	if params, err := c.FormParams(); err == nil {
		for name, values := range params {
			if len(values) > 0 {
				fields[name] = values[0]
			}
		}
	}

	outcome, err := h.processor.Process(c.Request().Context(), fields)
	if err != nil {
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) {
			return response.BadRequestWithData(c, ve.Error(), map[string]interface{}{
				"missing_fields":  ve.MissingFields,
				"received_fields": ve.ReceivedFields(),
			})
		}
		// Processing faults are absorbed by the pipeline; anything else
		// is logged here but still acknowledged.
		h.logger.Error("unexpected pipeline error",
			slog.String("error", err.Error()),
		)
		return response.SuccessWithMessage(c, nil, "accepted")
	}

	return response.Success(c, map[string]interface{}{
		"invocation_id": outcome.InvocationID,
		"message_id":    outcome.MessageID,
		"reply_sent":    outcome.ReplySent,
	})
}
