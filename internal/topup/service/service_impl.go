package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/creditgate/internal/account/domain"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	"github.com/smallbiznis/creditgate/internal/lock"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/topup/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Store     creditdomain.Store
	Emails    accountdomain.EmailResolver
	Processor paymentdomain.Processor `optional:"true"`
	Lock      *lock.AccountLock       `optional:"true"`
	Billing   *config.BillingConfigHolder
	Telemetry *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	store     creditdomain.Store
	emails    accountdomain.EmailResolver
	processor paymentdomain.Processor
	lock      *lock.AccountLock
	billing   *config.BillingConfigHolder
	metrics   *metrics.BillingMetrics
	telemetry *metrics.Metrics
}

func New(p Params) creditdomain.Replenisher {
	return &Service{
		log:       p.Log.Named("topup.service"),
		clock:     p.Clock,
		store:     p.Store,
		emails:    p.Emails,
		processor: p.Processor,
		lock:      p.Lock,
		billing:   p.Billing,
		metrics:   metrics.Billing(),
		telemetry: p.Telemetry,
	}
}

// Replenish charges the account's stored payment method for enough credit
// packages to cover needed and credits the ledger. It makes exactly one
// charge attempt and never retries.
func (s *Service) Replenish(ctx context.Context, accountID string, needed int64, current creditdomain.State) (state creditdomain.State, err error) {
	ctx, span := tracing.Start(ctx, "topup.Replenish",
		attribute.String("account_id", accountID),
		attribute.Int64("needed", needed),
		attribute.Int64("balance", current.Balance),
	)
	defer func() { tracing.End(span, err) }()

	if s.processor == nil {
		s.metrics.ObserveTopUp(metrics.TopUpResultFailed, 0)
		return current, domain.ErrProcessorNotConfigured
	}

	email, err := s.emails.ResolveEmail(ctx, accountID)
	if err != nil {
		s.metrics.ObserveTopUp(metrics.TopUpResultFailed, 0)
		return current, err
	}
	if strings.TrimSpace(email) == "" {
		s.metrics.ObserveTopUp(metrics.TopUpResultFailed, 0)
		return current, domain.ErrNoEmail
	}

	release, acquired, err := s.lock.AcquireTopUp(ctx, accountID)
	if err != nil {
		// Advisory only; proceed when Redis is unreachable.
		s.log.Warn("top-up lock unavailable, continuing without it", zap.String("account_id", accountID), zap.Error(err))
	} else if !acquired {
		s.metrics.ObserveTopUp(metrics.TopUpResultInProgress, 0)
		return current, domain.ErrTopUpInProgress
	}
	defer release()

	state, credits, err := s.purchase(ctx, accountID, email, needed, current)
	if err != nil {
		s.metrics.ObserveTopUp(metrics.TopUpResultFailed, 0)
		return current, err
	}
	s.metrics.ObserveTopUp(metrics.TopUpResultSucceeded, credits)
	return state, nil
}

func (s *Service) purchase(ctx context.Context, accountID, email string, needed int64, current creditdomain.State) (creditdomain.State, int64, error) {
	cfg := s.billing.Get().Credits

	customer, err := s.processor.EnsureCustomer(ctx, email)
	if err != nil {
		return current, 0, err
	}
	paymentMethodID, err := s.processor.DefaultPaymentMethod(ctx, customer.ID)
	if err != nil {
		return current, 0, err
	}
	if paymentMethodID == "" {
		return current, 0, domain.ErrNoPaymentMethod
	}

	packages := domain.Packages(needed, current.Balance, cfg.PackageCredits, cfg.MaxPackages)
	unitAmount, currency, err := s.unitPrice(ctx, cfg)
	if err != nil {
		return current, 0, err
	}
	credits := packages * cfg.PackageCredits

	topUpID := ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String()
	charge, err := s.processor.Charge(ctx, paymentdomain.ChargeRequest{
		CustomerID:      customer.ID,
		PaymentMethodID: paymentMethodID,
		Amount:          packages * unitAmount,
		Currency:        currency,
		Description:     "Automatic credit top-up",
		Metadata: map[string]string{
			"type":       domain.MetadataType,
			"account_id": accountID,
			"packages":   strconv.FormatInt(packages, 10),
			"credits":    strconv.FormatInt(credits, 10),
			"topup_id":   topUpID,
		},
		IdempotencyKey: domain.IdempotencyKey(topUpID),
	})
	if err != nil {
		s.recordCharge(ctx, "charge_failed")
		return current, 0, err
	}
	s.recordCharge(ctx, "charge_succeeded")

	state, err := s.store.Add(ctx, accountID, credits)
	if err != nil {
		s.log.Error("charge succeeded but credits were not granted",
			zap.String("account_id", accountID),
			zap.String("charge_id", charge.ID),
			zap.String("topup_id", topUpID),
			zap.Int64("credits", credits),
			zap.Error(err),
		)
		return current, 0, err
	}

	s.log.Info("auto top-up succeeded",
		zap.String("account_id", accountID),
		zap.String("charge_id", charge.ID),
		zap.String("topup_id", topUpID),
		zap.Int64("packages", packages),
		zap.Int64("credits", credits),
		zap.Int64("amount", charge.Amount),
		zap.Int64("balance", state.Balance),
	)
	return state, credits, nil
}

func (s *Service) unitPrice(ctx context.Context, cfg config.CreditsConfig) (int64, string, error) {
	if cfg.UnitAmount > 0 {
		return cfg.UnitAmount, cfg.Currency, nil
	}
	priceID := strings.TrimSpace(cfg.PriceID)
	if priceID == "" {
		return 0, "", domain.ErrPriceUnavailable
	}
	price, err := s.processor.GetPrice(ctx, priceID)
	if err != nil {
		return 0, "", errors.Join(domain.ErrPriceUnavailable, err)
	}
	currency := price.Currency
	if currency == "" {
		currency = cfg.Currency
	}
	return price.UnitAmount, currency, nil
}

func (s *Service) recordCharge(ctx context.Context, event string) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.RecordPaymentEvent(ctx, s.processor.Provider(), event)
}
