package mail

import "strings"

// FormatReply composes the outbound reply to an incoming email. The subject
// gets a single "Re: " prefix, the reply points at the incoming Message-ID,
// and the reference chain is extended by exactly one entry so it grows
// monotonically along the thread.
func FormatReply(in *IncomingEmail, body, from string) *OutgoingEmail {
	references := make([]string, 0, len(in.References)+1)
	for _, ref := range in.References {
		references = append(references, NormalizeMessageID(ref))
	}
	references = append(references, NormalizeMessageID(in.MessageID))

	return &OutgoingEmail{
		From:       from,
		To:         in.From,
		Subject:    replySubject(in.Subject),
		Body:       body,
		InReplyTo:  NormalizeMessageID(in.MessageID),
		References: references,
	}
}

// NormalizeMessageID ensures an ID carries the angle brackets RFC 5322
// threading headers require.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return id
	}
	if !strings.HasPrefix(id, "<") {
		id = "<" + id
	}
	if !strings.HasSuffix(id, ">") {
		id = id + ">"
	}
	return id
}

// replySubject prefixes "Re: " exactly once; an already-prefixed subject
// passes through unchanged.
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return subject
	}
	return "Re: " + subject
}
