package repository

import (
	"context"
	"fmt"

	"github.com/mailmind/mailmind-backend/internal/models"
	"gorm.io/gorm"
)

// EmailLogRepository defines the interface for email audit log data access
type EmailLogRepository interface {
	Insert(ctx context.Context, entry *models.EmailLog) error
	ListByMessageID(ctx context.Context, messageID string) ([]models.EmailLog, error)
}

// emailLogRepository implements EmailLogRepository using GORM
type emailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository creates a new EmailLogRepository instance
func NewEmailLogRepository(db *gorm.DB) EmailLogRepository {
	return &emailLogRepository{db: db}
}

// Insert appends an email log entry
func (r *emailLogRepository) Insert(ctx context.Context, entry *models.EmailLog) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to insert email log: %w", result.Error)
	}
	return nil
}

// ListByMessageID retrieves the audit trail for one message
func (r *emailLogRepository) ListByMessageID(ctx context.Context, messageID string) ([]models.EmailLog, error) {
	var entries []models.EmailLog
	result := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", result.Error)
	}
	return entries, nil
}
