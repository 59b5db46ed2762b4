package models

import (
	"time"
)

// Email log directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Email log statuses
const (
	EmailStatusProcessed  = "processed"
	EmailStatusSent       = "sent"
	EmailStatusSendFailed = "send_failed"
	EmailStatusBlocked    = "blocked"
)

// EmailLog is a best-effort audit row written by the pipeline for each
// processed message. Writing it must never block or fail a reply.
type EmailLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"not null;index;size:998" json:"message_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Direction string    `gorm:"not null;size:16" json:"direction"`
	Status    string    `gorm:"not null;size:32" json:"status"`
	ErrorKind string    `gorm:"size:32" json:"error_kind,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for EmailLog
func (EmailLog) TableName() string {
	return "email_logs"
}
