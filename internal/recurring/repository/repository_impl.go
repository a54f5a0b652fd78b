package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/recurring/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recurring_charge_claims (id, campaign_id, account_id, period_key, status, credits, attempts, charged_at, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.ID,
		claim.CampaignID,
		claim.AccountID,
		claim.PeriodKey,
		claim.Status,
		claim.Credits,
		claim.Attempts,
		claim.ChargedAt,
		claim.LastError,
		claim.CreatedAt,
		claim.UpdatedAt,
	).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, campaignID, periodKey string) (*domain.Claim, error) {
	var claim domain.Claim
	err := db.WithContext(ctx).Raw(
		`SELECT id, campaign_id, account_id, period_key, status, credits, attempts, charged_at, last_error, created_at, updated_at
		 FROM recurring_charge_claims
		 WHERE campaign_id = ? AND period_key = ?`,
		campaignID,
		periodKey,
	).Scan(&claim).Error
	if err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}

func (r *repo) TakeOverStale(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, accountID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE recurring_charge_claims
		 SET attempts = attempts + 1, account_id = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND attempts = ?`,
		accountID,
		now,
		id,
		domain.StatusPending,
		attempts,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ReclaimFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, accountID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE recurring_charge_claims
		 SET status = ?, attempts = attempts + 1, account_id = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND attempts = ?`,
		domain.StatusPending,
		accountID,
		now,
		id,
		domain.StatusFailed,
		attempts,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkCharged(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, chargedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE recurring_charge_claims
		 SET status = ?, charged_at = ?, last_error = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND attempts = ?`,
		domain.StatusCharged,
		chargedAt,
		chargedAt,
		id,
		domain.StatusPending,
		attempts,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int64, reason string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE recurring_charge_claims
		 SET status = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND attempts = ?`,
		domain.StatusFailed,
		reason,
		now,
		id,
		domain.StatusPending,
		attempts,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
