package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Document is a per-account JSON record scoped by namespace. Version is
// bumped on every write and guards compare-and-swap updates.
type Document struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID string         `gorm:"not null;uniqueIndex:ux_account_documents_account_namespace" json:"account_id"`
	Namespace string         `gorm:"not null;uniqueIndex:ux_account_documents_account_namespace" json:"namespace"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	Version   int64          `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Document) TableName() string { return "account_documents" }
