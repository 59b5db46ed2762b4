package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func incoming() *IncomingEmail {
	return &IncomingEmail{
		From:       "ada@example.com",
		To:         "ask@mailmind.io",
		Subject:    "Question about engines",
		Body:       "Write me a poem",
		MessageID:  "<abc123@example.com>",
		InReplyTo:  "<prev@example.com>",
		References: []string{"<root@example.com>", "<prev@example.com>"},
	}
}

func TestFormatReply_Threading(t *testing.T) {
	in := incoming()
	out := FormatReply(in, "Here is a poem.", "ask@mailmind.io")

	assert.Equal(t, "ask@mailmind.io", out.From)
	assert.Equal(t, "ada@example.com", out.To)
	assert.Equal(t, "Re: Question about engines", out.Subject)
	assert.Equal(t, "Here is a poem.", out.Body)
	assert.Equal(t, in.MessageID, out.InReplyTo)

	// Chain grows by exactly one entry, incoming ID last.
	assert.Len(t, out.References, len(in.References)+1)
	assert.Equal(t, in.MessageID, out.References[len(out.References)-1])
}

func TestFormatReply_SubjectPrefixIdempotent(t *testing.T) {
	tests := []struct {
		subject  string
		expected string
	}{
		{"Hello", "Re: Hello"},
		{"Re: Hello", "Re: Hello"},
		{"re: hello", "re: hello"},
		{"RE: Hello", "RE: Hello"},
		{"Regarding engines", "Re: Regarding engines"},
	}

	for _, tt := range tests {
		in := incoming()
		in.Subject = tt.subject
		out := FormatReply(in, "body", "ask@mailmind.io")
		assert.Equal(t, tt.expected, out.Subject)
		assert.False(t, strings.HasPrefix(out.Subject, "Re: Re: "))
	}
}

func TestFormatReply_NormalizesReferences(t *testing.T) {
	in := incoming()
	in.MessageID = "abc123@example.com"
	in.References = []string{"root@example.com", "<prev@example.com>"}

	out := FormatReply(in, "body", "ask@mailmind.io")

	for _, ref := range out.References {
		assert.True(t, strings.HasPrefix(ref, "<"), "reference %q missing opening bracket", ref)
		assert.True(t, strings.HasSuffix(ref, ">"), "reference %q missing closing bracket", ref)
	}
	assert.Equal(t, "<abc123@example.com>", out.InReplyTo)
}

func TestFormatReply_FirstMessageInThread(t *testing.T) {
	in := incoming()
	in.References = nil
	in.InReplyTo = ""

	out := FormatReply(in, "body", "ask@mailmind.io")

	assert.Equal(t, []string{in.MessageID}, out.References)
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "<a@b.co>", NormalizeMessageID("a@b.co"))
	assert.Equal(t, "<a@b.co>", NormalizeMessageID("<a@b.co>"))
	assert.Equal(t, "<a@b.co>", NormalizeMessageID("  <a@b.co>  "))
	assert.Equal(t, "", NormalizeMessageID("  "))
}
