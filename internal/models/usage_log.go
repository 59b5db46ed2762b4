package models

import (
	"time"
)

// UsageLog is one append-only row per billed model call. It is the audit
// trail behind the user's running cost total.
type UsageLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	MessageID        string    `gorm:"not null;index;size:998" json:"message_id"`
	Model            string    `gorm:"not null;size:128" json:"model"`
	PromptTokens     int       `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int       `gorm:"not null;default:0" json:"completion_tokens"`
	TotalTokens      int       `gorm:"not null;default:0" json:"total_tokens"`
	CostUSD          float64   `gorm:"column:cost_usd;not null;default:0" json:"cost_usd"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for UsageLog
func (UsageLog) TableName() string {
	return "usage_logs"
}
