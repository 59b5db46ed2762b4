package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mailmind/mailmind-backend/internal/models"
)

// UserRepositoryTestSuite is the test suite for UserRepository
type UserRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo UserRepository
}

// SetupSuite runs once before all tests
func (s *UserRepositoryTestSuite) SetupSuite() {
	// Use in-memory SQLite for testing
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.User{}, &models.UsageLog{}, &models.EmailLog{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewUserRepository(db)
}

// TearDownSuite runs once after all tests
func (s *UserRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test
func (s *UserRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM usage_logs")
	s.db.Exec("DELETE FROM email_logs")
	s.db.Exec("DELETE FROM users")
}

// TestUserRepositoryTestSuite runs the test suite
func TestUserRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}

func (s *UserRepositoryTestSuite) TestGetOrCreate_NewAddress() {
	user, created, err := s.repo.GetOrCreate(context.Background(), "fresh@example.com")

	require.NoError(s.T(), err)
	assert.True(s.T(), created)
	assert.NotZero(s.T(), user.ID)
	assert.Equal(s.T(), "fresh@example.com", user.Email)
	assert.Equal(s.T(), models.TierFree, user.Tier)
	assert.Equal(s.T(), models.FreeCostLimitUSD, user.CostLimitUSD)
	assert.Equal(s.T(), models.SubscriptionActive, user.SubscriptionStatus)
	assert.Zero(s.T(), user.CostUsedUSD)
}

func (s *UserRepositoryTestSuite) TestGetOrCreate_ExistingAddress() {
	first, created, err := s.repo.GetOrCreate(context.Background(), "known@example.com")
	require.NoError(s.T(), err)
	require.True(s.T(), created)

	second, created, err := s.repo.GetOrCreate(context.Background(), "known@example.com")
	require.NoError(s.T(), err)
	assert.False(s.T(), created)
	assert.Equal(s.T(), first.ID, second.ID)
}

func (s *UserRepositoryTestSuite) TestGetOrCreate_NormalizesEmail() {
	first, _, err := s.repo.GetOrCreate(context.Background(), "Mixed@Example.COM")
	require.NoError(s.T(), err)

	second, created, err := s.repo.GetOrCreate(context.Background(), "  mixed@example.com ")
	require.NoError(s.T(), err)
	assert.False(s.T(), created)
	assert.Equal(s.T(), first.ID, second.ID)
}

func (s *UserRepositoryTestSuite) TestGetOrCreate_EmptyEmail() {
	_, _, err := s.repo.GetOrCreate(context.Background(), "   ")
	assert.ErrorIs(s.T(), err, ErrInvalidInput)
}

func (s *UserRepositoryTestSuite) TestIncrementCostUsage_Accumulates() {
	user, _, err := s.repo.GetOrCreate(context.Background(), "billed@example.com")
	require.NoError(s.T(), err)

	updated, err := s.repo.IncrementCostUsage(context.Background(), user.ID, 0.001234)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 0.001234, updated.CostUsedUSD, 1e-9)

	updated, err = s.repo.IncrementCostUsage(context.Background(), user.ID, 0.002)
	require.NoError(s.T(), err)
	assert.InDelta(s.T(), 0.003234, updated.CostUsedUSD, 1e-9)
}

func (s *UserRepositoryTestSuite) TestIncrementCostUsage_UnknownUser() {
	_, err := s.repo.IncrementCostUsage(context.Background(), 9999, 0.01)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *UserRepositoryTestSuite) TestGetByEmail_NotFound() {
	_, err := s.repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *UserRepositoryTestSuite) TestCreate_DuplicateEmail() {
	user := &models.User{Email: "dupe@example.com", CostLimitUSD: models.FreeCostLimitUSD}
	require.NoError(s.T(), s.repo.Create(context.Background(), user))

	dupe := &models.User{Email: "dupe@example.com", CostLimitUSD: models.FreeCostLimitUSD}
	err := s.repo.Create(context.Background(), dupe)
	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
}

func (s *UserRepositoryTestSuite) TestListNewsletterSubscribers() {
	optedIn := &models.User{Email: "reader@example.com", CostLimitUSD: models.FreeCostLimitUSD, NewsletterOptIn: true}
	optedOut := &models.User{Email: "quiet@example.com", CostLimitUSD: models.FreeCostLimitUSD}
	require.NoError(s.T(), s.repo.Create(context.Background(), optedIn))
	require.NoError(s.T(), s.repo.Create(context.Background(), optedOut))

	subs, err := s.repo.ListNewsletterSubscribers(context.Background())
	require.NoError(s.T(), err)
	require.Len(s.T(), subs, 1)
	assert.Equal(s.T(), "reader@example.com", subs[0].Email)
}
