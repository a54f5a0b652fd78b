package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/creditgate/internal/account/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		log:   p.Log.Named("account.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ResolveEmail(ctx context.Context, accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", domain.ErrInvalidID
	}
	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", nil
	}
	return strings.TrimSpace(account.Email), nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertAccountRequest) (domain.Account, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return domain.Account{}, domain.ErrInvalidID
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Account{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:        id,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &account); err != nil {
		return domain.Account{}, err
	}

	stored, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	if stored == nil {
		return account, nil
	}
	return *stored, nil
}
