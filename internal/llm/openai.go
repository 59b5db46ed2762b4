package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
)

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	// searchModel is the search-capable model substituted when a request
	// enables the web search tool (e.g. gpt-4o-search-preview).
	searchModel string
}

// NewOpenAIClient creates an OpenAI-backed completion client.
func NewOpenAIClient(apiKey, searchModel string) *OpenAIClient {
	return &OpenAIClient{
		client:      openai.NewClient(apiKey),
		searchModel: searchModel,
	}
}

// Complete makes a single completion call. Failures are classified here,
// where the status code is first observed: API errors by HTTP status,
// transport errors by context state, and an empty or filtered response as
// a refusal.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	searchEnabled := false
	if req.EnableSearch && c.searchModel != "" {
		model = c.searchModel
		searchEnabled = true
	}

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: req.Input},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, apperrors.FromStatus(apiErr.HTTPStatusCode, "completion API error", err)
		}
		return nil, apperrors.FromTransport("completion API unreachable", err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindRefusal, "model returned no choices")
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if choice.FinishReason == openai.FinishReasonContentFilter || content == "" {
		return nil, apperrors.New(apperrors.KindRefusal, "model declined to answer")
	}

	return &Result{
		Content:          content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		SearchUsed:       searchEnabled,
	}, nil
}
