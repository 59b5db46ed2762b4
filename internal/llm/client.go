// Package llm builds model inputs from incoming email and invokes the
// completion API through the retry orchestrator.
package llm

import "context"

// Request is one completion call.
type Request struct {
	Model        string
	Instruction  string
	Input        string
	MaxTokens    int
	Temperature  float32
	EnableSearch bool
}

// Result is the raw outcome of one completion call.
type Result struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	SearchUsed       bool
}

// Client is a completion API. Implementations classify their failures into
// the pipeline error taxonomy at the call site.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
