// Package delivery sends outbound email through the mail provider's HTTP
// API, wrapped in the retry orchestrator.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/mail"
)

const defaultBaseURL = "https://api.sendgrid.com"

// Transport is one delivery attempt against the mail provider.
type Transport interface {
	Deliver(ctx context.Context, out *mail.OutgoingEmail) error
}

// HTTPClient delivers mail via the SendGrid v3 send endpoint.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a delivery client. baseURL is overridable for tests;
// empty means the production endpoint.
func NewHTTPClient(apiKey, baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sendAddress struct {
	Email string `json:"email"`
}

type sendPersonalization struct {
	To      []sendAddress     `json:"to"`
	Headers map[string]string `json:"headers,omitempty"`
}

type sendContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []sendPersonalization `json:"personalizations"`
	From             sendAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []sendContent         `json:"content"`
}

// Deliver makes a single send call. Failures are classified here by HTTP
// status; transport errors by context state.
func (c *HTTPClient) Deliver(ctx context.Context, out *mail.OutgoingEmail) error {
	headers := map[string]string{}
	if out.InReplyTo != "" {
		headers["In-Reply-To"] = out.InReplyTo
	}
	if len(out.References) > 0 {
		headers["References"] = strings.Join(out.References, " ")
	}

	payload := sendRequest{
		Personalizations: []sendPersonalization{{
			To:      []sendAddress{{Email: out.To}},
			Headers: headers,
		}},
		From:    sendAddress{Email: out.From},
		Subject: out.Subject,
		Content: []sendContent{{Type: "text/plain", Value: out.Body}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.KindSendFailure, "failed to encode send request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.KindSendFailure, "failed to build send request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.FromTransport("mail API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return apperrors.FromStatus(resp.StatusCode,
		fmt.Sprintf("mail API rejected send: %s", bytes.TrimSpace(detail)), nil)
}
