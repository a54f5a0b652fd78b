package repository

import (
	"context"

	"github.com/smallbiznis/creditgate/internal/campaign/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_account_id, status, created_at, updated_at
		 FROM drip_campaigns
		 WHERE id = ?`,
		id,
	).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == "" {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_account_id", "status", "updated_at"}),
	}).Create(campaign).Error
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, afterID string, limit int) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_account_id, status, created_at, updated_at
		 FROM drip_campaigns
		 WHERE status = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		domain.StatusActive,
		afterID,
		limit,
	).Scan(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}
