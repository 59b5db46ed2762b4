package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/newsletter"
	"github.com/mailmind/mailmind-backend/internal/pipeline"
)

// processorStub records the fields it was handed and returns a scripted
// outcome.
type processorStub struct {
	fields  map[string]string
	outcome *pipeline.Outcome
	err     error
}

func (p *processorStub) Process(ctx context.Context, fields map[string]string) (*pipeline.Outcome, error) {
	p.fields = fields
	return p.outcome, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func multipartRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestReceive_AcceptedPayloadAcknowledged(t *testing.T) {
	stub := &processorStub{outcome: &pipeline.Outcome{
		InvocationID: "inv-1",
		MessageID:    "<abc@example.com>",
		ReplySent:    true,
	}}
	handler := NewInboundHandler(stub, discardLogger())

	e := echo.New()
	req := multipartRequest(t, map[string]string{
		"from":    "ada@example.com",
		"to":      "assistant@mailmind.io",
		"subject": "hello",
		"text":    "hi there",
		"headers": "Message-ID: <abc@example.com>",
	})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Receive(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "ada@example.com", stub.fields["from"])
	assert.Equal(t, "hi there", stub.fields["text"])

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, true, raw["success"])
	data := raw["data"].(map[string]interface{})
	assert.Equal(t, "<abc@example.com>", data["message_id"])
	assert.Equal(t, true, data["reply_sent"])
}

func TestReceive_MissingFieldsReturn400WithDiagnostics(t *testing.T) {
	stub := &processorStub{err: &apperrors.ValidationError{
		MissingFields: []string{"subject", "headers"},
		Received:      map[string]string{"from": "ada@example.com", "to": "x", "text": "hi"},
	}}
	handler := NewInboundHandler(stub, discardLogger())

	e := echo.New()
	req := multipartRequest(t, map[string]string{
		"from": "ada@example.com",
		"to":   "assistant@mailmind.io",
		"text": "hi there",
	})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Receive(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, false, raw["success"])
	data := raw["data"].(map[string]interface{})
	assert.ElementsMatch(t, []interface{}{"subject", "headers"}, data["missing_fields"])
	assert.Contains(t, data, "received_fields")
}

func TestReceive_FieldsMirrorPostedForm(t *testing.T) {
	stub := &processorStub{outcome: &pipeline.Outcome{InvocationID: "inv-1"}}
	handler := NewInboundHandler(stub, discardLogger())

	e := echo.New()
	req := multipartRequest(t, map[string]string{
		"from":     "ada@example.com",
		"text":     "hi there",
		"envelope": `{"to":["assistant@mailmind.io"]}`,
	})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Receive(c))

	// Extra provider fields pass through; fields that were never posted
	// must not appear as empty entries.
	assert.Equal(t, `{"to":["assistant@mailmind.io"]}`, stub.fields["envelope"])
	_, present := stub.fields["to"]
	assert.False(t, present)
	_, present = stub.fields["subject"]
	assert.False(t, present)
}

func TestReceive_UnexpectedErrorStillAcknowledged(t *testing.T) {
	stub := &processorStub{err: assert.AnError}
	handler := NewInboundHandler(stub, discardLogger())

	e := echo.New()
	req := multipartRequest(t, map[string]string{
		"from":    "ada@example.com",
		"to":      "assistant@mailmind.io",
		"subject": "hello",
		"text":    "hi there",
		"headers": "Message-ID: <abc@example.com>",
	})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Receive(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// runnerStub returns a scripted newsletter report.
type runnerStub struct {
	report *newsletter.RunReport
	err    error
}

func (r *runnerStub) Run(ctx context.Context) (*newsletter.RunReport, error) {
	return r.report, r.err
}

func TestTrigger_ReturnsRunReport(t *testing.T) {
	handler := NewNewsletterHandler(&runnerStub{report: &newsletter.RunReport{
		RunID:       "run-1",
		Subscribers: 3,
		Sent:        3,
	}}, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/newsletter", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Trigger(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	data := raw["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["sent"])
}

func TestTrigger_RunFailureReturns500(t *testing.T) {
	handler := NewNewsletterHandler(&runnerStub{err: assert.AnError}, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/newsletter", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.Trigger(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
