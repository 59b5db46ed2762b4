package newsletter

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mailmind/mailmind-backend/internal/billing"
	"github.com/mailmind/mailmind-backend/internal/llm"
	"github.com/mailmind/mailmind-backend/internal/models"
	"github.com/mailmind/mailmind-backend/tests/mocks"
)

// generatorStub counts GenerateText calls without the mock ceremony.
type generatorStub struct {
	calls int
	resp  *llm.Response
	err   error
}

func (g *generatorStub) GenerateText(ctx context.Context, instruction, input string) (*llm.Response, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func testService(users *mocks.UserRepository, gen *generatorStub, sender *mocks.Sender, ledger *mocks.Ledger) *Service {
	return NewService(Config{
		FromAddress:   "newsletter@mailmind.io",
		OperatorEmail: "ops@mailmind.io",
		ServiceDomain: "mailmind.io",
		Topic:         "email automation",
	}, users, gen, sender, ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func subscribers(emails ...string) []models.User {
	users := make([]models.User, 0, len(emails))
	for i, email := range emails {
		users = append(users, models.User{
			ID:              uint(i + 10),
			Email:           email,
			NewsletterOptIn: true,
			Tier:            models.TierFree,
			CostLimitUSD:    models.FreeCostLimitUSD,
		})
	}
	return users
}

func TestRun_GeneratesOnceAndFansOut(t *testing.T) {
	users := new(mocks.UserRepository)
	sender := new(mocks.Sender)
	ledger := new(mocks.Ledger)
	gen := &generatorStub{resp: &llm.Response{
		Content:          "This week: threading tips.",
		Model:            "gpt-4o-mini",
		PromptTokens:     50,
		CompletionTokens: 200,
	}}

	operator := &models.User{ID: 1, Email: "ops@mailmind.io"}
	users.On("ListNewsletterSubscribers", mock.Anything).
		Return(subscribers("a@example.com", "b@example.com", "c@example.com"), nil)
	users.On("GetOrCreate", mock.Anything, "ops@mailmind.io").Return(operator, false, nil)
	ledger.On("TrackUsage", mock.Anything, operator, mock.Anything, "gpt-4o-mini", 50, 200).
		Return(billing.CostBreakdown{TotalCostUSD: 0.000128}, nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	report, err := testService(users, gen, sender, ledger).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 3, report.Subscribers)
	assert.Equal(t, 3, report.Sent)
	assert.Zero(t, report.Failed)
	assert.InDelta(t, 0.000128, report.CostUSD, 1e-9)

	require.Len(t, sender.Sent, 3)
	assert.Equal(t, "a@example.com", sender.Sent[0].To)
	assert.Equal(t, "This week: threading tips.", sender.Sent[0].Body)
	assert.Empty(t, sender.Sent[0].References)
	ledger.AssertExpectations(t)
}

func TestRun_NoSubscribersSkipsGeneration(t *testing.T) {
	users := new(mocks.UserRepository)
	sender := new(mocks.Sender)
	ledger := new(mocks.Ledger)
	gen := &generatorStub{}

	users.On("ListNewsletterSubscribers", mock.Anything).Return([]models.User{}, nil)

	report, err := testService(users, gen, sender, ledger).Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, gen.calls)
	assert.Zero(t, report.Subscribers)
	assert.Empty(t, sender.Sent)
}

func TestRun_PerRecipientFailureDoesNotStopFanOut(t *testing.T) {
	users := new(mocks.UserRepository)
	sender := new(mocks.Sender)
	ledger := new(mocks.Ledger)
	gen := &generatorStub{resp: &llm.Response{Content: "digest", Model: "gpt-4o-mini"}}

	operator := &models.User{ID: 1, Email: "ops@mailmind.io"}
	users.On("ListNewsletterSubscribers", mock.Anything).
		Return(subscribers("a@example.com", "b@example.com"), nil)
	users.On("GetOrCreate", mock.Anything, "ops@mailmind.io").Return(operator, false, nil)
	ledger.On("TrackUsage", mock.Anything, operator, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(billing.CostBreakdown{}, nil)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(out interface{}) bool { return true })).
		Return(assert.AnError).Once()
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	report, err := testService(users, gen, sender, ledger).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

func TestRun_NoOperatorEmailSkipsBillingWithWarning(t *testing.T) {
	users := new(mocks.UserRepository)
	sender := new(mocks.Sender)
	ledger := new(mocks.Ledger)
	gen := &generatorStub{resp: &llm.Response{Content: "digest", Model: "gpt-4o-mini"}}

	users.On("ListNewsletterSubscribers", mock.Anything).
		Return(subscribers("a@example.com"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	var logs bytes.Buffer
	svc := NewService(Config{
		FromAddress:   "newsletter@mailmind.io",
		ServiceDomain: "mailmind.io",
	}, users, gen, sender, ledger, slog.New(slog.NewTextHandler(&logs, nil)))

	report, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Zero(t, report.CostUSD)
	assert.Contains(t, logs.String(), "digest usage not billed")
	users.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "TrackUsage",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_GenerationFailurePropagates(t *testing.T) {
	users := new(mocks.UserRepository)
	sender := new(mocks.Sender)
	ledger := new(mocks.Ledger)
	gen := &generatorStub{err: assert.AnError}

	users.On("ListNewsletterSubscribers", mock.Anything).
		Return(subscribers("a@example.com"), nil)

	_, err := testService(users, gen, sender, ledger).Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, sender.Sent)
}
