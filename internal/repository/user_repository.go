package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailmind/mailmind-backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetOrCreate(ctx context.Context, email string) (*models.User, bool, error)
	IncrementCostUsage(ctx context.Context, id uint, deltaUSD float64) (*models.User, error)
	ListNewsletterSubscribers(ctx context.Context) ([]models.User, error)
}

// userRepository implements UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("user with email '%s' already exists: %w", user.Email, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create user: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a user by its ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", result.Error)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", result.Error)
	}
	return &user, nil
}

// GetOrCreate retrieves a user by email or lazily creates a free-tier
// account on the first email from an unseen address.
// Returns the user, a boolean indicating if it was created, and any error
func (r *userRepository) GetOrCreate(ctx context.Context, email string) (*models.User, bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, false, ErrInvalidInput
	}

	user, err := r.GetByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{
		Email:              email,
		Tier:               models.TierFree,
		CostLimitUSD:       models.FreeCostLimitUSD,
		SubscriptionStatus: models.SubscriptionActive,
	}

	if err := r.Create(ctx, user); err != nil {
		// Handle race condition - a concurrent invocation might have created it
		if errors.Is(err, ErrDuplicateEntry) {
			user, err = r.GetByEmail(ctx, email)
			if err != nil {
				return nil, false, err
			}
			return user, false, nil
		}
		return nil, false, err
	}

	return user, true, nil
}

// IncrementCostUsage atomically adds deltaUSD to the user's running cost
// total and returns the updated record. The increment is a single UPDATE
// expression so concurrent invocations never lose a billed amount.
func (r *userRepository) IncrementCostUsage(ctx context.Context, id uint, deltaUSD float64) (*models.User, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("cost_used_usd", gorm.Expr("cost_used_usd + ?", deltaUSD))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to increment cost usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ListNewsletterSubscribers retrieves all users opted into the newsletter
func (r *userRepository) ListNewsletterSubscribers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	result := r.db.WithContext(ctx).
		Where("newsletter_opt_in = ?", true).
		Order("id ASC").
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list newsletter subscribers: %w", result.Error)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
