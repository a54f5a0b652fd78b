package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists claims. Every conditional method reports whether its
// update matched a row; false means another caller changed it first.
type Repository interface {
	// Insert fails with a duplicate key error when the period is already claimed.
	Insert(ctx context.Context, db *gorm.DB, claim *Claim) error
	FindByKey(ctx context.Context, db *gorm.DB, campaignID, periodKey string) (*Claim, error)
	// TakeOverStale bumps attempts on a PENDING row still at attempts.
	TakeOverStale(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, accountID string, now time.Time) (bool, error)
	// ReclaimFailed moves a FAILED row still at attempts back to PENDING.
	ReclaimFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, accountID string, now time.Time) (bool, error)
	MarkCharged(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, chargedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, reason string, now time.Time) (bool, error)
}
