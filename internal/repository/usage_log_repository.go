package repository

import (
	"context"
	"fmt"

	"github.com/mailmind/mailmind-backend/internal/models"
	"gorm.io/gorm"
)

// UsageLogRepository defines the interface for usage log data access
type UsageLogRepository interface {
	Insert(ctx context.Context, entry *models.UsageLog) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.UsageLog, int64, error)
	TotalCostForUser(ctx context.Context, userID uint) (float64, error)
}

// usageLogRepository implements UsageLogRepository using GORM
type usageLogRepository struct {
	db *gorm.DB
}

// NewUsageLogRepository creates a new UsageLogRepository instance
func NewUsageLogRepository(db *gorm.DB) UsageLogRepository {
	return &usageLogRepository{db: db}
}

// Insert appends a usage log entry. Entries are never updated or deleted.
func (r *usageLogRepository) Insert(ctx context.Context, entry *models.UsageLog) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to insert usage log: %w", result.Error)
	}
	return nil
}

// ListByUser retrieves usage entries for a user, newest first
func (r *usageLogRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.UsageLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.UsageLog{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count usage logs: %w", err)
	}

	var entries []models.UsageLog
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list usage logs: %w", result.Error)
	}
	return entries, total, nil
}

// TotalCostForUser sums the billed cost across all of a user's entries.
// Used to audit the running total on the user record.
func (r *usageLogRepository) TotalCostForUser(ctx context.Context, userID uint) (float64, error) {
	var total float64
	result := r.db.WithContext(ctx).Model(&models.UsageLog{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum usage cost: %w", result.Error)
	}
	return total, nil
}
