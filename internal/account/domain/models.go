package domain

import "time"

// Account is the billing identity that owns a credit ledger. IDs are issued
// by the surrounding product and treated as opaque.
type Account struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"not null;default:''" json:"email"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
