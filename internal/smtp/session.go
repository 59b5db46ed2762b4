package smtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
)

// processTimeout bounds the pipeline run for one SMTP-delivered message.
const processTimeout = 60 * time.Second

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	from       string
	recipients []string
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{
		backend:    backend,
		recipients: make([]string, 0),
	}
}

// AuthPlain handles PLAIN authentication (not required for receiving)
func (s *Session) AuthPlain(username, password string) error {
	return nil
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	if s.backend.logger != nil {
		s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	}
	return nil
}

// Rcpt handles the RCPT TO command. Only addresses at the service domain
// are accepted; everything else is rejected at the envelope stage.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	_, domainName, err := parseEmailAddress(to)
	if err != nil {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Invalid recipient address",
		}
	}

	if !strings.EqualFold(domainName, s.backend.serviceDomain) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Relay not permitted",
		}
	}

	s.recipients = append(s.recipients, to)
	if s.backend.logger != nil {
		s.backend.logger.Debug("RCPT TO", slog.String("to", to))
	}
	return nil
}

// Data handles the DATA command. The message is parsed, converted into the
// webhook field set and handed to the pipeline asynchronously so the SMTP
// client is not held open across a model call.
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		if s.backend.logger != nil {
			s.backend.logger.Error("failed to parse email", slog.Any("error", err))
		}
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	fields := BuildWebhookFields(env, s.from, s.recipients[0])

	if s.backend.logger != nil {
		s.backend.logger.Info("email received over smtp",
			slog.String("from", s.from),
			slog.String("subject", fields["subject"]),
		)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if _, err := s.backend.processor.Process(ctx, fields); err != nil && s.backend.logger != nil {
			s.backend.logger.Warn("smtp-delivered message rejected",
				slog.String("error", err.Error()),
			)
		}
	}()

	return nil
}

// BuildWebhookFields converts a parsed message into the field set the
// inbound webhook produces, so both ingestion paths share one pipeline
// entry point. Envelope addresses fill in for missing headers.
func BuildWebhookFields(env *enmime.Envelope, envelopeFrom, envelopeTo string) map[string]string {
	from := env.GetHeader("From")
	if strings.TrimSpace(from) == "" {
		from = envelopeFrom
	}
	to := env.GetHeader("To")
	if strings.TrimSpace(to) == "" {
		to = envelopeTo
	}

	var headers strings.Builder
	for _, name := range []string{"Message-ID", "In-Reply-To", "References", "Date"} {
		if value := env.GetHeader(name); value != "" {
			fmt.Fprintf(&headers, "%s: %s\n", name, value)
		}
	}
	if headers.Len() == 0 {
		// The pipeline treats an empty headers field as malformed input;
		// record the receipt time so header-stripped mail still passes.
		fmt.Fprintf(&headers, "Date: %s\n", time.Now().UTC().Format(time.RFC1123Z))
	}

	return map[string]string{
		"from":    from,
		"to":      to,
		"subject": env.GetHeader("Subject"),
		"text":    env.Text,
		"headers": headers.String(),
	}
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = make([]string, 0)
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// parseEmailAddress parses an email address into local part and domain
func parseEmailAddress(address string) (localPart, domain string, err error) {
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	address = strings.TrimSpace(address)

	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	localPart = strings.ToLower(parts[0])
	domain = strings.ToLower(parts[1])

	if localPart == "" || domain == "" {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	return localPart, domain, nil
}
