package mail

import "time"

// IncomingEmail is a validated inbound message, immutable once parsed.
// It lives for one pipeline invocation and is not persisted.
type IncomingEmail struct {
	From      string
	To        string
	Subject   string
	Body      string
	MessageID string
	InReplyTo string
	// References lists ancestor message IDs, oldest first.
	References []string
	Timestamp  time.Time
}

// OutgoingEmail is a composed reply ready for delivery, with the threading
// headers that keep it in the sender's conversation.
type OutgoingEmail struct {
	From      string
	To        string
	Subject   string
	Body      string
	InReplyTo string
	References []string
}
