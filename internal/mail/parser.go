package mail

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
)

// RequiredFields are the multipart keys an inbound webhook call must carry.
var RequiredFields = []string{"from", "to", "subject", "text", "headers"}

// Header patterns are case-insensitive and tolerate folded continuation
// lines per RFC 5322.
var (
	messageIDRe  = regexp.MustCompile(`(?im)^message-id:[ \t]*(.+)$`)
	inReplyToRe  = regexp.MustCompile(`(?im)^in-reply-to:[ \t]*(.+)$`)
	referencesRe = regexp.MustCompile(`(?im)^references:[ \t]*(.*(?:\r?\n[ \t]+.*)*)`)

	// bracketedAddrRe extracts the address from "Display Name" <addr@host>.
	bracketedAddrRe = regexp.MustCompile(`<([^<>]+)>`)
)

// ParseInbound turns the webhook multipart field set into an IncomingEmail.
// A missing required field is a caller fault and yields a ValidationError
// carrying the missing names and the received field set.
func ParseInbound(fields map[string]string, serviceDomain string) (*IncomingEmail, error) {
	var missing []string
	for _, name := range RequiredFields {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &apperrors.ValidationError{MissingFields: missing, Received: fields}
	}

	headers := fields["headers"]

	messageID := extractFirstID(messageIDRe, headers)
	if messageID == "" {
		// At-least-once transports occasionally strip Message-ID;
		// synthesize one so the reply can still thread.
		messageID = fmt.Sprintf("<%d@%s>", time.Now().UnixMilli(), serviceDomain)
	}

	return &IncomingEmail{
		From:       ExtractAddress(fields["from"]),
		To:         ExtractAddress(fields["to"]),
		Subject:    fields["subject"],
		Body:       fields["text"],
		MessageID:  messageID,
		InReplyTo:  extractFirstID(inReplyToRe, headers),
		References: extractReferences(headers),
		Timestamp:  time.Now().UTC(),
	}, nil
}

// ExtractAddress reduces a From/To header value to the bare address:
// the bracketed part of "Display Name" <addr@host>, or the trimmed raw
// string when no brackets are present.
func ExtractAddress(raw string) string {
	if m := bracketedAddrRe.FindStringSubmatch(raw); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

func extractFirstID(re *regexp.Regexp, headers string) string {
	m := re.FindStringSubmatch(headers)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractReferences(headers string) []string {
	m := referencesRe.FindStringSubmatch(headers)
	if len(m) < 2 {
		return []string{}
	}
	refs := strings.Fields(m[1])
	if refs == nil {
		refs = []string{}
	}
	return refs
}
