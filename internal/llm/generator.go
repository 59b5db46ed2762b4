package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailmind/mailmind-backend/internal/mail"
	"github.com/mailmind/mailmind-backend/internal/retry"
)

// systemInstruction is sent with every completion call.
const systemInstruction = "You are a helpful email assistant. Respond professionally and concisely. " +
	"If web search results are used, cite your sources."

// Response is the generated reply plus the accounting data the ledger
// needs. CompletionTime is wall-clock milliseconds across all attempts.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	SearchUsed       bool
	CompletionTime   int64
}

// GeneratorConfig controls one generator instance.
type GeneratorConfig struct {
	Model        string
	MaxTokens    int
	Temperature  float32
	EnableSearch bool
	// Timeout bounds each attempt, not the whole retry sequence.
	Timeout time.Duration
	Retry   retry.Config
}

// Generator produces model replies to incoming email.
type Generator struct {
	client Client
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(client Client, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	return &Generator{client: client, cfg: cfg, logger: logger}
}

// Generate builds the model input from an incoming email and invokes the
// completion API through the retry orchestrator. Elapsed time is recorded
// whether or not the call succeeds.
func (g *Generator) Generate(ctx context.Context, in *mail.IncomingEmail) (*Response, error) {
	input := buildInput(in)

	start := time.Now()
	result, err := g.complete(ctx, input)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		g.logger.Warn("response generation failed",
			slog.Int64("elapsed_ms", elapsed),
			slog.String("model", g.cfg.Model),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	g.logger.Info("response generated",
		slog.Int64("elapsed_ms", elapsed),
		slog.String("model", result.Model),
		slog.Int("total_tokens", result.TotalTokens),
		slog.Bool("search_used", result.SearchUsed),
	)

	return &Response{
		Content:          result.Content,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		SearchUsed:       result.SearchUsed,
		CompletionTime:   elapsed,
	}, nil
}

// GenerateText runs a bare instruction/input pair through the same retry
// and timeout policy. The newsletter variant shares this primitive.
func (g *Generator) GenerateText(ctx context.Context, instruction, input string) (*Response, error) {
	start := time.Now()
	result, err := g.completeWith(ctx, instruction, input)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}
	return &Response{
		Content:          result.Content,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		SearchUsed:       result.SearchUsed,
		CompletionTime:   elapsed,
	}, nil
}

func (g *Generator) complete(ctx context.Context, input string) (*Result, error) {
	return g.completeWith(ctx, systemInstruction, input)
}

func (g *Generator) completeWith(ctx context.Context, instruction, input string) (*Result, error) {
	return retry.Do(ctx, g.cfg.Retry, g.logger, func(ctx context.Context) (*Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return g.client.Complete(callCtx, Request{
			Model:        g.cfg.Model,
			Instruction:  instruction,
			Input:        input,
			MaxTokens:    g.cfg.MaxTokens,
			Temperature:  g.cfg.Temperature,
			EnableSearch: g.cfg.EnableSearch,
		})
	})
}

// buildInput concatenates the sender, subject and body into the single
// user message the model sees.
func buildInput(in *mail.IncomingEmail) string {
	return fmt.Sprintf("Email from: %s\nSubject: %s\n\n%s", in.From, in.Subject, in.Body)
}
