package models

import (
	"time"
)

// Tier names
const (
	TierFree = "free"
	TierPro  = "pro"
)

// Subscription statuses that grant access for paid tiers
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// Default per-tier spend ceilings in USD
const (
	FreeCostLimitUSD = 0.50
	ProCostLimitUSD  = 20.00
)

// User is an account created lazily on the first email from an unseen
// address. CostUsedUSD only grows within a billing period; resets are
// handled by the billing system, not here.
type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Email              string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Tier               string    `gorm:"not null;default:free;size:32" json:"tier"`
	CostUsedUSD        float64   `gorm:"column:cost_used_usd;not null;default:0" json:"cost_used_usd"`
	CostLimitUSD       float64   `gorm:"column:cost_limit_usd;not null" json:"cost_limit_usd"`
	SubscriptionStatus string    `gorm:"not null;default:active;size:32" json:"subscription_status"`
	NewsletterOptIn    bool      `gorm:"not null;default:false" json:"newsletter_opt_in"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}
