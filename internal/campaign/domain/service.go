package domain

import (
	"context"
	"errors"
)

type UpsertCampaignRequest struct {
	ID             string `json:"-"`
	OwnerAccountID string `json:"owner_account_id"`
	Status         Status `json:"status"`
}

type Service interface {
	Get(ctx context.Context, id string) (Campaign, error)
	Upsert(ctx context.Context, req UpsertCampaignRequest) (Campaign, error)
	ListActive(ctx context.Context, afterID string, limit int) ([]Campaign, error)
}

var (
	ErrInvalidID     = errors.New("invalid_campaign_id")
	ErrInvalidOwner  = errors.New("invalid_campaign_owner")
	ErrInvalidStatus = errors.New("invalid_campaign_status")
	ErrNotFound      = errors.New("campaign_not_found")
	ErrNotActive     = errors.New("campaign_not_active")
)
