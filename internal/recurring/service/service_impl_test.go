package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	creditservice "github.com/smallbiznis/creditgate/internal/credit/service"
	docdomain "github.com/smallbiznis/creditgate/internal/document/domain"
	docrepo "github.com/smallbiznis/creditgate/internal/document/repository"
	"github.com/smallbiznis/creditgate/internal/recurring/domain"
	"github.com/smallbiznis/creditgate/internal/recurring/repository"
	"github.com/smallbiznis/creditgate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	store creditdomain.Store
	repo  domain.Repository
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&docdomain.Document{}, &domain.Claim{}))
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	clk := clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

	store := creditservice.NewStore(creditservice.StoreParams{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    docrepo.Provide(),
		Billing: holder,
	})
	gate := creditservice.NewGate(creditservice.GateParams{
		Log:     zap.NewNop(),
		Store:   store,
		Billing: holder,
	})
	repo := repository.Provide()
	svc := New(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    repo,
		Gate:    gate,
		Billing: holder,
	})

	return &fixture{db: conn, clock: clk, node: node, store: store, repo: repo, svc: svc}
}

// setBalance moves the ledger of accountID to exactly balance.
func (f *fixture) setBalance(t *testing.T, accountID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	state, err := f.store.GetState(ctx, accountID)
	require.NoError(t, err)
	if state.Balance < balance {
		_, err = f.store.Add(ctx, accountID, balance-state.Balance)
		require.NoError(t, err)
		return
	}
	_, reason, err := f.store.Debit(ctx, accountID, state.Balance-balance)
	require.NoError(t, err)
	require.Equal(t, creditdomain.ReasonOK, reason)
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	state, err := f.store.GetState(context.Background(), accountID)
	require.NoError(t, err)
	return state.Balance
}

func (f *fixture) seedClaim(t *testing.T, status domain.Status, age time.Duration) *domain.Claim {
	t.Helper()
	at := f.clock.Now().Add(-age)
	claim := &domain.Claim{
		ID:         f.node.Generate(),
		CampaignID: "c1",
		AccountID:  "acct_1",
		PeriodKey:  "2024-05",
		Status:     status,
		Credits:    29,
		Attempts:   1,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if status == domain.StatusFailed {
		reason := "insufficient"
		claim.LastError = &reason
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, claim))
	return claim
}

var c1May = domain.ChargeRequest{CampaignID: "c1", AccountID: "acct_1", PeriodKey: "2024-05"}

func TestChargePeriodChargesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, "acct_1", 100)

	result, err := f.svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCharged, result.Outcome)
	require.NotNil(t, result.Claim)
	assert.Equal(t, domain.StatusCharged, result.Claim.Status)
	assert.NotNil(t, result.Claim.ChargedAt)
	assert.Nil(t, result.Claim.LastError)
	assert.Equal(t, int64(71), f.balance(t, "acct_1"))

	f.clock.Advance(24 * time.Hour)
	result, err = f.svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyCharged, result.Outcome)
	assert.Equal(t, int64(71), f.balance(t, "acct_1"))
}

func TestConcurrentChargesDebitExactlyOnce(t *testing.T) {
	for _, callers := range []int{2, 10} {
		f := newFixture(t)
		f.setBalance(t, "acct_1", 29)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			outcomes = map[domain.Outcome]int{}
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := f.svc.ChargePeriod(context.Background(), c1May)
				if err != nil {
					t.Errorf("charge: %v", err)
					return
				}
				mu.Lock()
				outcomes[result.Outcome]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, outcomes[domain.OutcomeCharged], "callers=%d outcomes=%v", callers, outcomes)
		assert.Equal(t, callers-1, outcomes[domain.OutcomePending]+outcomes[domain.OutcomeAlreadyCharged], "callers=%d outcomes=%v", callers, outcomes)
		assert.Equal(t, int64(0), f.balance(t, "acct_1"))

		claim, err := f.svc.GetClaim(context.Background(), "c1", "2024-05")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCharged, claim.Status)
	}
}

func TestFreshPendingReportsPending(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 100)
	f.seedClaim(t, domain.StatusPending, 9*time.Minute)

	result, err := f.svc.ChargePeriod(context.Background(), c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePending, result.Outcome)
	assert.Equal(t, int64(100), f.balance(t, "acct_1"))
}

func TestStalePendingWithoutFundsBecomesFailed(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 0)
	seeded := f.seedClaim(t, domain.StatusPending, 11*time.Minute)

	result, err := f.svc.ChargePeriod(context.Background(), c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, result.Outcome)
	assert.Equal(t, string(creditdomain.ReasonInsufficient), result.Reason)

	claim, err := f.svc.GetClaim(context.Background(), "c1", "2024-05")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, claim.ID)
	assert.Equal(t, domain.StatusFailed, claim.Status)
	require.NotNil(t, claim.LastError)
	assert.Equal(t, "insufficient", *claim.LastError)
	assert.Nil(t, claim.ChargedAt)
	assert.Equal(t, int64(2), claim.Attempts)
	assert.Equal(t, int64(0), f.balance(t, "acct_1"))
}

func TestFreshFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 100)
	f.seedClaim(t, domain.StatusFailed, 5*time.Minute)

	result, err := f.svc.ChargePeriod(context.Background(), c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailedRecently, result.Outcome)
	assert.Equal(t, "insufficient", result.Reason)
	assert.Equal(t, int64(100), f.balance(t, "acct_1"))
}

func TestStaleFailureIsReclaimedByOneCaller(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 100)
	f.seedClaim(t, domain.StatusFailed, 30*time.Minute)

	const callers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[domain.Outcome]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.ChargePeriod(context.Background(), c1May)
			if err != nil {
				t.Errorf("charge: %v", err)
				return
			}
			mu.Lock()
			outcomes[result.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[domain.OutcomeCharged], "outcomes=%v", outcomes)
	assert.Equal(t, 0, outcomes[domain.OutcomeFailed], "outcomes=%v", outcomes)
	assert.Equal(t, int64(71), f.balance(t, "acct_1"))

	claim, err := f.svc.GetClaim(context.Background(), "c1", "2024-05")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCharged, claim.Status)
	assert.Nil(t, claim.LastError)
}

func TestFailedClaimRecoversAfterCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setBalance(t, "acct_1", 0)

	result, err := f.svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, result.Outcome)

	f.setBalance(t, "acct_1", 40)
	f.clock.Advance(5 * time.Minute)
	result, err = f.svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailedRecently, result.Outcome)

	f.clock.Advance(6 * time.Minute)
	result, err = f.svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCharged, result.Outcome)
	assert.Equal(t, int64(11), f.balance(t, "acct_1"))
}

func TestChargeCurrentPeriodUsesUTCMonth(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 100)

	result, err := f.svc.ChargeCurrentPeriod(context.Background(), "c1", "acct_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCharged, result.Outcome)
	assert.Equal(t, "2024-05", result.Claim.PeriodKey)
}

func TestChargePeriodValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ChargePeriod(ctx, domain.ChargeRequest{AccountID: "acct_1", PeriodKey: "2024-05"})
	assert.True(t, errors.Is(err, domain.ErrInvalidCampaign))
	_, err = f.svc.ChargePeriod(ctx, domain.ChargeRequest{CampaignID: "c1", PeriodKey: "2024-05"})
	assert.True(t, errors.Is(err, domain.ErrInvalidAccount))
	_, err = f.svc.ChargePeriod(ctx, domain.ChargeRequest{CampaignID: "c1", AccountID: "acct_1", PeriodKey: "May"})
	assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))

	_, err = f.svc.GetClaim(ctx, "c1", "2024-05")
	assert.True(t, errors.Is(err, domain.ErrClaimNotFound))
}

// cancelAfterDebit lets the debit through and then cancels the caller's
// context, as a job timeout or client disconnect would.
type cancelAfterDebit struct {
	gate   creditdomain.Gate
	cancel context.CancelFunc
}

func (g *cancelAfterDebit) Consume(ctx context.Context, accountID string, amount int64) (creditdomain.ConsumeResult, error) {
	result, err := g.gate.Consume(ctx, accountID, amount)
	g.cancel()
	return result, err
}

func TestChargeRecordsOutcomeAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	f.setBalance(t, "acct_1", 100)

	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: f.node,
		Clock: f.clock,
		Repo:  f.repo,
		Gate: &cancelAfterDebit{
			gate:   creditservice.NewGate(creditservice.GateParams{Log: zap.NewNop(), Store: f.store, Billing: holder}),
			cancel: cancel,
		},
		Billing: holder,
	})

	result, err := svc.ChargePeriod(ctx, c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCharged, result.Outcome)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	claim, err := f.svc.GetClaim(context.Background(), "c1", "2024-05")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCharged, claim.Status)
	require.NotNil(t, claim.ChargedAt)
	assert.Equal(t, int64(71), f.balance(t, "acct_1"))

	// Past the claim TTL a retry must still see the charge, not debit again.
	f.clock.Advance(11 * time.Minute)
	again, err := f.svc.ChargePeriod(context.Background(), c1May)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyCharged, again.Outcome)
	assert.Equal(t, int64(71), f.balance(t, "acct_1"))
}
