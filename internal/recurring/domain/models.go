package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusCharged Status = "CHARGED"
	StatusFailed  Status = "FAILED"
)

// Claim records the recurring charge of one campaign for one period. The
// (campaign_id, period_key) pair is unique. Attempts increases every time a
// caller takes ownership of the row and fences the final status write.
type Claim struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CampaignID string       `gorm:"not null;uniqueIndex:ux_recurring_charge_claims_campaign_period" json:"campaign_id"`
	AccountID  string       `gorm:"not null;index" json:"account_id"`
	PeriodKey  string       `gorm:"not null;uniqueIndex:ux_recurring_charge_claims_campaign_period" json:"period_key"`
	Status     Status       `gorm:"type:text;not null" json:"status"`
	Credits    int64        `gorm:"not null" json:"credits"`
	Attempts   int64        `gorm:"not null;default:1" json:"attempts"`
	ChargedAt  *time.Time   `json:"charged_at,omitempty"`
	LastError  *string      `json:"last_error,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Claim) TableName() string { return "recurring_charge_claims" }
