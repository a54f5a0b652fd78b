package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/credit/domain"
	docdomain "github.com/smallbiznis/creditgate/internal/document/domain"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    docdomain.Repository
	Billing *config.BillingConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Store struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    docdomain.Repository
	billing *config.BillingConfigHolder
	metrics *metrics.Metrics
}

func NewStore(p StoreParams) domain.Store {
	return &Store{
		db:      p.DB,
		log:     p.Log.Named("credit.store"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		billing: p.Billing,
		metrics: p.Metrics,
	}
}

func (s *Store) GetState(ctx context.Context, accountID string) (domain.State, error) {
	_, state, err := s.load(ctx, accountID)
	return state, err
}

func (s *Store) Add(ctx context.Context, accountID string, amount int64) (domain.State, error) {
	amount = domain.ClampAmount(amount)
	if amount == 0 {
		return s.GetState(ctx, accountID)
	}
	state, _, err := s.mutate(ctx, accountID, func(current domain.State) (domain.State, bool) {
		current.Balance = saturatingAdd(current.Balance, amount)
		return current, true
	})
	if err != nil {
		return domain.State{}, err
	}
	s.metrics.RecordLedgerMutation(ctx, "add")
	s.log.Info("credits added",
		zap.String("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance", state.Balance),
	)
	return state, nil
}

func (s *Store) SetAutoTopUp(ctx context.Context, accountID string, enabled bool) (domain.State, error) {
	state, _, err := s.mutate(ctx, accountID, func(current domain.State) (domain.State, bool) {
		current.AutoTopUp = enabled
		return current, true
	})
	if err != nil {
		return domain.State{}, err
	}
	return state, nil
}

func (s *Store) Debit(ctx context.Context, accountID string, amount int64) (domain.State, domain.Reason, error) {
	amount = domain.ClampAmount(amount)
	state, landed, err := s.mutate(ctx, accountID, func(current domain.State) (domain.State, bool) {
		if current.Balance < amount {
			return current, false
		}
		current.Balance -= amount
		return current, true
	})
	if err != nil {
		return domain.State{}, "", err
	}
	if !landed {
		return state, domain.ReasonInsufficient, nil
	}
	s.metrics.RecordLedgerMutation(ctx, "debit")
	return state, domain.ReasonOK, nil
}

// mutate applies fn to the freshest ledger and writes the result guarded by
// the document version, re-reading after every lost race until the write
// lands, fn returns false, or ctx ends. A lost race means another writer
// landed, so the loop always makes progress.
func (s *Store) mutate(ctx context.Context, accountID string, fn func(domain.State) (domain.State, bool)) (domain.State, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.State{}, false, err
		}
		doc, current, err := s.load(ctx, accountID)
		if err != nil {
			return domain.State{}, false, err
		}

		next, proceed := fn(current)
		if !proceed {
			return current, false, nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return domain.State{}, false, err
		}
		ok, err := s.repo.UpdateIfVersion(ctx, s.db, doc.ID, doc.Version, datatypes.JSON(data), s.clock.Now())
		if err != nil {
			return domain.State{}, false, err
		}
		if ok {
			return next, true, nil
		}
	}
}

// load returns the ledger document, creating it with the configured defaults
// when absent. A lost creation race falls back to the winner's row.
func (s *Store) load(ctx context.Context, accountID string) (*docdomain.Document, domain.State, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domain.State{}, domain.ErrInvalidAccount
	}

	doc, err := s.repo.Get(ctx, s.db, accountID, domain.Namespace)
	if err != nil {
		return nil, domain.State{}, err
	}
	if doc == nil {
		doc, err = s.create(ctx, accountID)
		if err != nil {
			return nil, domain.State{}, err
		}
	}

	var state domain.State
	if err := json.Unmarshal(doc.Data, &state); err != nil {
		return nil, domain.State{}, fmt.Errorf("%w: %v", domain.ErrCorruptLedger, err)
	}
	if state.Balance < 0 {
		state.Balance = 0
	}
	return doc, state, nil
}

func (s *Store) create(ctx context.Context, accountID string) (*docdomain.Document, error) {
	defaults := domain.State{
		Balance:   s.billing.Get().Credits.InitialBalance,
		AutoTopUp: false,
	}
	data, err := json.Marshal(defaults)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	doc := &docdomain.Document{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Namespace: domain.Namespace,
		Data:      datatypes.JSON(data),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, doc); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		existing, getErr := s.repo.Get(ctx, s.db, accountID, domain.Namespace)
		if getErr != nil {
			return nil, getErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}

	s.log.Info("ledger created",
		zap.String("account_id", accountID),
		zap.Int64("balance", defaults.Balance),
	)
	return doc, nil
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
