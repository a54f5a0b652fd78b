package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/observability/tracing"
	"github.com/smallbiznis/creditgate/internal/recurring/domain"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const transitionFromNone = "NONE"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Gate    creditdomain.Gate
	Billing *config.BillingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	gate    creditdomain.Gate
	billing *config.BillingConfigHolder
	metrics *metrics.BillingMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("recurring.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gate:    p.Gate,
		billing: p.Billing,
		metrics: metrics.Billing(),
	}
}

func (s *Service) ChargeCurrentPeriod(ctx context.Context, campaignID, accountID string) (domain.Result, error) {
	return s.ChargePeriod(ctx, domain.ChargeRequest{
		CampaignID: campaignID,
		AccountID:  accountID,
		PeriodKey:  domain.PeriodKey(s.clock.Now()),
	})
}

func (s *Service) ChargePeriod(ctx context.Context, req domain.ChargeRequest) (result domain.Result, err error) {
	ctx, span := tracing.Start(ctx, "recurring.ChargePeriod",
		attribute.String("campaign_id", req.CampaignID),
		attribute.String("account_id", req.AccountID),
		attribute.String("period_key", req.PeriodKey),
	)
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		tracing.End(span, err)
	}()

	req, err = normalizeRequest(req)
	if err != nil {
		return domain.Result{}, err
	}

	cfg := s.billing.Get().Recurring
	now := s.clock.Now()

	claim, err := s.repo.FindByKey(ctx, s.db, req.CampaignID, req.PeriodKey)
	if err != nil {
		return domain.Result{}, err
	}

	var fence int64
	switch state := domain.Assess(claim, now, cfg.ClaimTTL); state {
	case domain.ClaimNoRow:
		claim = &domain.Claim{
			ID:         s.genID.Generate(),
			CampaignID: req.CampaignID,
			AccountID:  req.AccountID,
			PeriodKey:  req.PeriodKey,
			Status:     domain.StatusPending,
			Credits:    cfg.Fee,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Insert(ctx, s.db, claim); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return domain.Result{}, err
			}
			existing, findErr := s.repo.FindByKey(ctx, s.db, req.CampaignID, req.PeriodKey)
			if findErr != nil {
				return domain.Result{}, findErr
			}
			return s.finish(req, domain.Result{Outcome: domain.OutcomePending, Claim: existing}), nil
		}
		s.metrics.IncClaimTransition(transitionFromNone, string(domain.StatusPending))
		fence = claim.Attempts

	case domain.ClaimCharged:
		return s.finish(req, domain.Result{Outcome: domain.OutcomeAlreadyCharged, Claim: claim}), nil

	case domain.ClaimPendingFresh:
		return s.finish(req, domain.Result{Outcome: domain.OutcomePending, Claim: claim}), nil

	case domain.ClaimPendingStale:
		won, err := s.repo.TakeOverStale(ctx, s.db, claim.ID, claim.Attempts, req.AccountID, now)
		if err != nil {
			return domain.Result{}, err
		}
		if !won {
			return s.finish(req, domain.Result{Outcome: domain.OutcomePending, Claim: claim}), nil
		}
		s.log.Warn("taking over abandoned claim",
			zap.String("campaign_id", req.CampaignID),
			zap.String("period_key", req.PeriodKey),
			zap.Time("last_update", claim.UpdatedAt),
			zap.Int64("attempts", claim.Attempts),
		)
		s.metrics.IncClaimTransition(string(domain.StatusPending), string(domain.StatusPending))
		fence = claim.Attempts + 1

	case domain.ClaimFailedFresh:
		return s.finish(req, domain.Result{Outcome: domain.OutcomeFailedRecently, Claim: claim, Reason: lastError(claim)}), nil

	case domain.ClaimFailedStale:
		won, err := s.repo.ReclaimFailed(ctx, s.db, claim.ID, claim.Attempts, req.AccountID, now)
		if err != nil {
			return domain.Result{}, err
		}
		if !won {
			return s.finish(req, domain.Result{Outcome: domain.OutcomePending, Claim: claim}), nil
		}
		s.metrics.IncClaimTransition(string(domain.StatusFailed), string(domain.StatusPending))
		fence = claim.Attempts + 1

	case domain.ClaimInvalid:
		s.log.Error("claim has unknown status",
			zap.String("campaign_id", req.CampaignID),
			zap.String("period_key", req.PeriodKey),
			zap.String("status", string(claim.Status)),
		)
		return domain.Result{}, domain.ErrInvalidClaim

	default:
		return domain.Result{}, domain.ErrInvalidClaim
	}

	return s.charge(ctx, req, claim, fence, cfg.Fee)
}

// charge runs the debit for a claim this caller owns at fence and records the
// result on the row.
func (s *Service) charge(ctx context.Context, req domain.ChargeRequest, claim *domain.Claim, fence, fee int64) (domain.Result, error) {
	consumed, consumeErr := s.gate.Consume(ctx, req.AccountID, fee)
	now := s.clock.Now()
	// The outcome must land even if the caller gave up after the debit.
	ctx = context.WithoutCancel(ctx)

	if consumeErr == nil && consumed.OK {
		marked, err := s.repo.MarkCharged(ctx, s.db, claim.ID, fence, now)
		if err != nil {
			s.log.Error("fee debited but claim not marked charged",
				zap.String("campaign_id", req.CampaignID),
				zap.String("period_key", req.PeriodKey),
				zap.Error(err),
			)
			return domain.Result{}, err
		}
		if !marked {
			s.log.Error("claim fence lost after debit",
				zap.String("campaign_id", req.CampaignID),
				zap.String("period_key", req.PeriodKey),
				zap.Int64("fence", fence),
			)
		} else {
			s.metrics.IncClaimTransition(string(domain.StatusPending), string(domain.StatusCharged))
		}
		return s.finish(req, domain.Result{Outcome: domain.OutcomeCharged, Claim: s.reload(ctx, req, claim)}), nil
	}

	reason := string(consumed.Reason)
	if consumeErr != nil {
		reason = consumeErr.Error()
	}
	if reason == "" {
		reason = string(creditdomain.ReasonInsufficient)
	}
	marked, err := s.repo.MarkFailed(ctx, s.db, claim.ID, fence, reason, now)
	if err != nil {
		return domain.Result{}, errors.Join(err, consumeErr)
	}
	if marked {
		s.metrics.IncClaimTransition(string(domain.StatusPending), string(domain.StatusFailed))
	}
	return s.finish(req, domain.Result{Outcome: domain.OutcomeFailed, Claim: s.reload(ctx, req, claim), Reason: reason}), nil
}

func (s *Service) GetClaim(ctx context.Context, campaignID, periodKey string) (*domain.Claim, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, domain.ErrInvalidCampaign
	}
	if !domain.ValidPeriodKey(periodKey) {
		return nil, domain.ErrInvalidPeriod
	}
	claim, err := s.repo.FindByKey(ctx, s.db, campaignID, periodKey)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrClaimNotFound
	}
	return claim, nil
}

func (s *Service) reload(ctx context.Context, req domain.ChargeRequest, fallback *domain.Claim) *domain.Claim {
	claim, err := s.repo.FindByKey(ctx, s.db, req.CampaignID, req.PeriodKey)
	if err != nil || claim == nil {
		return fallback
	}
	return claim
}

func (s *Service) finish(req domain.ChargeRequest, result domain.Result) domain.Result {
	s.metrics.IncRecurringOutcome(string(result.Outcome))
	fields := []zap.Field{
		zap.String("campaign_id", req.CampaignID),
		zap.String("account_id", req.AccountID),
		zap.String("period_key", req.PeriodKey),
		zap.String("outcome", string(result.Outcome)),
	}
	switch result.Outcome {
	case domain.OutcomeFailed:
		s.log.Warn("recurring charge failed", append(fields, zap.String("reason", result.Reason))...)
	case domain.OutcomeCharged:
		s.log.Info("recurring charge succeeded", fields...)
	default:
		s.log.Debug("recurring charge skipped", fields...)
	}
	return result
}

func normalizeRequest(req domain.ChargeRequest) (domain.ChargeRequest, error) {
	req.CampaignID = strings.TrimSpace(req.CampaignID)
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.PeriodKey = strings.TrimSpace(req.PeriodKey)
	if req.CampaignID == "" {
		return req, domain.ErrInvalidCampaign
	}
	if req.AccountID == "" {
		return req, domain.ErrInvalidAccount
	}
	if !domain.ValidPeriodKey(req.PeriodKey) {
		return req, domain.ErrInvalidPeriod
	}
	return req, nil
}

func lastError(claim *domain.Claim) string {
	if claim == nil || claim.LastError == nil {
		return ""
	}
	return *claim.LastError
}
