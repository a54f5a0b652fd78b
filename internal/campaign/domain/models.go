package domain

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusArchived Status = "ARCHIVED"
)

// Campaign is a drip campaign owned by an account. Only the fields the
// recurring fee needs are kept here; the campaign content lives elsewhere.
type Campaign struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	OwnerAccountID string    `gorm:"not null;index" json:"owner_account_id"`
	Status         Status    `gorm:"type:text;not null;index" json:"status"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Campaign) TableName() string { return "drip_campaigns" }

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}
