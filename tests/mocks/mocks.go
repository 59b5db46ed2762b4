// Package mocks provides testify mocks for the pipeline's seams.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mailmind/mailmind-backend/internal/billing"
	"github.com/mailmind/mailmind-backend/internal/llm"
	"github.com/mailmind/mailmind-backend/internal/mail"
	"github.com/mailmind/mailmind-backend/internal/models"
)

// Ledger mocks the pipeline's quota gate and usage recorder.
type Ledger struct {
	mock.Mock
}

func (m *Ledger) CheckQuota(ctx context.Context, email string) (*billing.QuotaDecision, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.QuotaDecision), args.Error(1)
}

func (m *Ledger) TrackUsage(ctx context.Context, user *models.User, messageID, model string, promptTokens, completionTokens int) (billing.CostBreakdown, error) {
	args := m.Called(ctx, user, messageID, model, promptTokens, completionTokens)
	return args.Get(0).(billing.CostBreakdown), args.Error(1)
}

// Generator mocks the model reply generator.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, in *mail.IncomingEmail) (*llm.Response, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// Sender mocks outbound delivery and records every email it is given.
type Sender struct {
	mock.Mock
	Sent []*mail.OutgoingEmail
}

func (m *Sender) Send(ctx context.Context, out *mail.OutgoingEmail) error {
	m.Sent = append(m.Sent, out)
	args := m.Called(ctx, out)
	return args.Error(0)
}

// LLMClient mocks the completion API client.
type LLMClient struct {
	mock.Mock
}

func (m *LLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Result), args.Error(1)
}

// Transport mocks a single delivery attempt.
type Transport struct {
	mock.Mock
}

func (m *Transport) Deliver(ctx context.Context, out *mail.OutgoingEmail) error {
	args := m.Called(ctx, out)
	return args.Error(0)
}

// EmailLogRepository mocks the audit log store.
type EmailLogRepository struct {
	mock.Mock
}

func (m *EmailLogRepository) Insert(ctx context.Context, entry *models.EmailLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *EmailLogRepository) ListByMessageID(ctx context.Context, messageID string) ([]models.EmailLog, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EmailLog), args.Error(1)
}

// UserRepository mocks user data access.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) GetOrCreate(ctx context.Context, email string) (*models.User, bool, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *UserRepository) IncrementCostUsage(ctx context.Context, id uint, deltaUSD float64) (*models.User, error) {
	args := m.Called(ctx, id, deltaUSD)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) ListNewsletterSubscribers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
