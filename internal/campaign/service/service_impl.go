package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/creditgate/internal/campaign/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPageSize = 500

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("campaign.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Campaign, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Campaign{}, domain.ErrInvalidID
	}
	campaign, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if campaign == nil {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return *campaign, nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertCampaignRequest) (domain.Campaign, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return domain.Campaign{}, domain.ErrInvalidID
	}
	owner := strings.TrimSpace(req.OwnerAccountID)
	if owner == "" {
		return domain.Campaign{}, domain.ErrInvalidOwner
	}
	status := domain.Status(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return domain.Campaign{}, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	campaign := &domain.Campaign{
		ID:             id,
		OwnerAccountID: owner,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Upsert(ctx, s.db, campaign); err != nil {
		return domain.Campaign{}, err
	}

	stored, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if stored == nil {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) ListActive(ctx context.Context, afterID string, limit int) ([]domain.Campaign, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.ListActive(ctx, s.db, strings.TrimSpace(afterID), limit)
}
