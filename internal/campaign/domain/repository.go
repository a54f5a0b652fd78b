package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Campaign, error)
	Upsert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	// ListActive pages through active campaigns ordered by id, starting after afterID.
	ListActive(ctx context.Context, db *gorm.DB, afterID string, limit int) ([]Campaign, error)
}
