package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
	"github.com/mailmind/mailmind-backend/internal/models"
	"github.com/mailmind/mailmind-backend/internal/repository"
)

// LedgerTestSuite exercises the ledger against sqlite-backed repositories.
type LedgerTestSuite struct {
	suite.Suite
	db        *gorm.DB
	users     repository.UserRepository
	usageLogs repository.UsageLogRepository
	ledger    *Ledger
}

// SetupSuite runs once before all tests
func (s *LedgerTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.User{}, &models.UsageLog{})
	require.NoError(s.T(), err)

	s.db = db
	s.users = repository.NewUserRepository(db)
	s.usageLogs = repository.NewUsageLogRepository(db)
	s.ledger = NewLedger(s.users, s.usageLogs, DefaultPricingTable(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TearDownSuite runs once after all tests
func (s *LedgerTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test
func (s *LedgerTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM usage_logs")
	s.db.Exec("DELETE FROM users")
}

// TestLedgerTestSuite runs the test suite
func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) TestCheckQuota_FreshUserAllowed() {
	decision, err := s.ledger.CheckQuota(context.Background(), "fresh@example.com")

	require.NoError(s.T(), err)
	assert.True(s.T(), decision.Allowed)
	assert.Equal(s.T(), models.FreeCostLimitUSD, decision.RemainingBudget)
	assert.Zero(s.T(), decision.PercentUsed)
	assert.NotNil(s.T(), decision.User)
}

func (s *LedgerTestSuite) TestCheckQuota_ExhaustedUserBlocked() {
	user, _, err := s.users.GetOrCreate(context.Background(), "broke@example.com")
	require.NoError(s.T(), err)
	_, err = s.users.IncrementCostUsage(context.Background(), user.ID, user.CostLimitUSD)
	require.NoError(s.T(), err)

	decision, err := s.ledger.CheckQuota(context.Background(), "broke@example.com")

	require.NoError(s.T(), err)
	assert.False(s.T(), decision.Allowed)
	assert.Equal(s.T(), apperrors.KindQuotaExceeded, decision.Reason)
	assert.LessOrEqual(s.T(), decision.RemainingBudget, 0.0)
}

func (s *LedgerTestSuite) TestCheckQuota_InactivePaidSubscriptionBlocked() {
	user, _, err := s.users.GetOrCreate(context.Background(), "lapsed@example.com")
	require.NoError(s.T(), err)
	s.db.Model(user).Updates(map[string]interface{}{
		"tier":                models.TierPro,
		"cost_limit_usd":      models.ProCostLimitUSD,
		"subscription_status": "past_due",
	})

	decision, err := s.ledger.CheckQuota(context.Background(), "lapsed@example.com")

	require.NoError(s.T(), err)
	assert.False(s.T(), decision.Allowed)
	assert.Equal(s.T(), apperrors.KindSubscriptionInactive, decision.Reason)
}

func (s *LedgerTestSuite) TestTrackUsage_AppendsEntryAndIncrementsTotal() {
	user, _, err := s.users.GetOrCreate(context.Background(), "billed@example.com")
	require.NoError(s.T(), err)

	cost, err := s.ledger.TrackUsage(context.Background(), user, "<m1@example.com>", "gpt-4o-2024-08-06", 100_000, 50_000)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 0.75, cost.TotalCostUSD, 1e-9)

	reloaded, err := s.users.GetByEmail(context.Background(), "billed@example.com")
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 0.75, reloaded.CostUsedUSD, 1e-9)

	total, err := s.usageLogs.TotalCostForUser(context.Background(), user.ID)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), reloaded.CostUsedUSD, total, 1e-9)
}

func (s *LedgerTestSuite) TestTrackUsage_UnknownModelUsesFallback() {
	user, _, err := s.users.GetOrCreate(context.Background(), "novel@example.com")
	require.NoError(s.T(), err)

	cost, err := s.ledger.TrackUsage(context.Background(), user, "<m2@example.com>", "model-from-the-future", 1000, 1000)
	require.NoError(s.T(), err)
	assert.Greater(s.T(), cost.TotalCostUSD, 0.0)
}

func TestIsSubscriptionActive(t *testing.T) {
	tests := []struct {
		name     string
		user     models.User
		expected bool
	}{
		{"free tier always active", models.User{Tier: models.TierFree, SubscriptionStatus: "canceled"}, true},
		{"paid active", models.User{Tier: models.TierPro, SubscriptionStatus: models.SubscriptionActive}, true},
		{"paid trialing", models.User{Tier: models.TierPro, SubscriptionStatus: models.SubscriptionTrialing}, true},
		{"paid past due", models.User{Tier: models.TierPro, SubscriptionStatus: "past_due"}, false},
		{"paid canceled", models.User{Tier: models.TierPro, SubscriptionStatus: "canceled"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsSubscriptionActive(&tt.user))
		})
	}
}
