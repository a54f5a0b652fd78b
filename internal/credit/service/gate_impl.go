package service

import (
	"context"
	"errors"
	"strings"

	accountdomain "github.com/smallbiznis/creditgate/internal/account/domain"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/credit/domain"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type GateParams struct {
	fx.In

	Log         *zap.Logger
	Store       domain.Store
	Replenisher domain.Replenisher
	Emails      accountdomain.EmailResolver
	Billing     *config.BillingConfigHolder
}

type Gate struct {
	log         *zap.Logger
	store       domain.Store
	replenisher domain.Replenisher
	emails      accountdomain.EmailResolver
	billing     *config.BillingConfigHolder
	metrics     *metrics.BillingMetrics
}

func NewGate(p GateParams) domain.Gate {
	return &Gate{
		log:         p.Log.Named("credit.gate"),
		store:       p.Store,
		replenisher: p.Replenisher,
		emails:      p.Emails,
		billing:     p.Billing,
		metrics:     metrics.Billing(),
	}
}

// Consume debits amount from the account ledger when the balance, possibly
// after one automatic top-up, covers it. Errors are returned only when the
// ledger itself cannot be read or written.
func (g *Gate) Consume(ctx context.Context, accountID string, amount int64) (result domain.ConsumeResult, err error) {
	ctx, span := tracing.Start(ctx, "credit.Consume",
		attribute.String("account_id", accountID),
		attribute.Int64("amount", amount),
	)
	defer func() {
		span.SetAttributes(attribute.String("reason", string(result.Reason)))
		tracing.End(span, err)
	}()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ConsumeResult{}, domain.ErrInvalidAccount
	}
	amount = domain.ClampAmount(amount)

	if g.isAllowlisted(ctx, accountID) {
		state, err := g.store.GetState(ctx, accountID)
		if err != nil {
			return domain.ConsumeResult{}, err
		}
		return g.finish(accountID, amount, domain.ConsumeResult{OK: true, State: state, Reason: domain.ReasonAllowlisted}), nil
	}

	state, err := g.store.GetState(ctx, accountID)
	if err != nil {
		return domain.ConsumeResult{}, err
	}
	if amount == 0 {
		return g.finish(accountID, amount, domain.ConsumeResult{OK: true, State: state, Reason: domain.ReasonZeroAmount}), nil
	}

	if state.Balance < amount {
		if !state.AutoTopUp {
			return g.finish(accountID, amount, domain.ConsumeResult{OK: false, State: state, Reason: domain.ReasonInsufficient}), nil
		}
		_, rerr := g.replenish(ctx, accountID, amount, state)
		switch {
		case rerr == nil:
		case errors.Is(rerr, domain.ErrReplenishInProgress):
			// The other purchase may cover this call; Debit re-validates.
			g.log.Debug("auto top-up already in progress",
				zap.String("account_id", accountID),
				zap.Int64("needed", amount),
			)
		default:
			g.log.Warn("auto top-up failed",
				zap.String("account_id", accountID),
				zap.Int64("needed", amount),
				zap.Int64("balance", state.Balance),
				zap.Error(rerr),
			)
			return g.finish(accountID, amount, domain.ConsumeResult{OK: false, State: state, Reason: domain.ReasonReplenishFailed}), nil
		}
	}

	debited, reason, err := g.store.Debit(ctx, accountID, amount)
	if err != nil {
		return domain.ConsumeResult{}, err
	}
	return g.finish(accountID, amount, domain.ConsumeResult{OK: reason == domain.ReasonOK, State: debited, Reason: reason}), nil
}

func (g *Gate) replenish(ctx context.Context, accountID string, needed int64, current domain.State) (domain.State, error) {
	if g.replenisher == nil {
		return current, errNoReplenisher
	}
	return g.replenisher.Replenish(ctx, accountID, needed, current)
}

func (g *Gate) isAllowlisted(ctx context.Context, accountID string) bool {
	credits := g.billing.Get().Credits
	if len(credits.DemoAccounts) == 0 || g.emails == nil {
		return false
	}
	email, err := g.emails.ResolveEmail(ctx, accountID)
	if err != nil {
		g.log.Warn("resolve email for allowlist", zap.String("account_id", accountID), zap.Error(err))
		return false
	}
	return credits.IsDemoAccount(email)
}

func (g *Gate) finish(accountID string, amount int64, result domain.ConsumeResult) domain.ConsumeResult {
	var debited int64
	if result.Reason == domain.ReasonOK {
		debited = amount
	}
	g.metrics.ObserveConsume(string(result.Reason), debited)
	if !result.OK {
		g.log.Info("consume denied",
			zap.String("account_id", accountID),
			zap.Int64("amount", amount),
			zap.Int64("balance", result.State.Balance),
			zap.String("reason", string(result.Reason)),
		)
	}
	return result
}
