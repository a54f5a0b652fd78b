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
	"github.com/smallbiznis/creditgate/internal/credit/domain"
	docdomain "github.com/smallbiznis/creditgate/internal/document/domain"
	docrepo "github.com/smallbiznis/creditgate/internal/document/repository"
	"github.com/smallbiznis/creditgate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type emailResolverMock struct {
	mock.Mock
}

func (m *emailResolverMock) ResolveEmail(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

// storeReplenisher grants a fixed number of credits through the store, the
// way a successful processor charge would.
type storeReplenisher struct {
	store   domain.Store
	credits int64
	err     error
	calls   int
}

func (r *storeReplenisher) Replenish(ctx context.Context, accountID string, needed int64, current domain.State) (domain.State, error) {
	r.calls++
	if r.err != nil {
		return current, r.err
	}
	return r.store.Add(ctx, accountID, r.credits)
}

// busyReplenisher stands in for a caller that finds another purchase already
// running. landed controls whether that purchase has credited the ledger yet.
type busyReplenisher struct {
	store   domain.Store
	credits int64
	landed  bool
	calls   int
}

func (r *busyReplenisher) Replenish(ctx context.Context, accountID string, needed int64, current domain.State) (domain.State, error) {
	r.calls++
	if r.landed {
		if _, err := r.store.Add(ctx, accountID, r.credits); err != nil {
			return current, err
		}
	}
	return current, domain.ErrReplenishInProgress
}

// racingRepo reports its first losses updates as lost version races, as if
// other writers kept landing first.
type racingRepo struct {
	docdomain.Repository
	losses  int
	updates int
}

func (r *racingRepo) UpdateIfVersion(ctx context.Context, conn *gorm.DB, id snowflake.ID, expected int64, data datatypes.JSON, updatedAt time.Time) (bool, error) {
	r.updates++
	if r.updates <= r.losses {
		return false, nil
	}
	return r.Repository.UpdateIfVersion(ctx, conn, id, expected, data, updatedAt)
}

type fixture struct {
	store   domain.Store
	gate    domain.Gate
	emails  *emailResolverMock
	topups  *storeReplenisher
	billing config.BillingConfig
}

func newFixture(t *testing.T, mutate func(*config.BillingConfig)) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&docdomain.Document{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	billing := config.DefaultBillingConfig()
	if mutate != nil {
		mutate(&billing)
	}
	holder := config.NewStaticBillingConfigHolder(billing)

	store := NewStore(StoreParams{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)),
		Repo:    docrepo.Provide(),
		Billing: holder,
	})
	emails := &emailResolverMock{}
	topups := &storeReplenisher{store: store, credits: billing.Credits.PackageCredits}
	gate := NewGate(GateParams{
		Log:         zap.NewNop(),
		Store:       store,
		Replenisher: topups,
		Emails:      emails,
		Billing:     holder,
	})

	return &fixture{store: store, gate: gate, emails: emails, topups: topups, billing: billing}
}

func TestGetStateCreatesDefaults(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	state, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, domain.State{Balance: 10, AutoTopUp: false}, state)

	again, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, state, again)
}

func TestGetStateRejectsEmptyAccount(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.store.GetState(context.Background(), "  ")
	assert.True(t, errors.Is(err, domain.ErrInvalidAccount))
}

func TestAddClampsNegativeAmounts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	state, err := f.store.Add(ctx, "acct_1", -50)
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.Balance)

	state, err = f.store.Add(ctx, "acct_1", 15)
	require.NoError(t, err)
	assert.Equal(t, int64(25), state.Balance)
}

func TestSetAutoTopUpPreservesBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.Add(ctx, "acct_1", 7)
	require.NoError(t, err)

	state, err := f.store.SetAutoTopUp(ctx, "acct_1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.State{Balance: 17, AutoTopUp: true}, state)

	state, err = f.store.SetAutoTopUp(ctx, "acct_1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.State{Balance: 17, AutoTopUp: false}, state)
}

func TestConsumeInsufficientLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.gate.Consume(ctx, "acct_1", 15)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.ReasonInsufficient, result.Reason)
	assert.Equal(t, int64(10), result.State.Balance)

	state, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.Balance)
	assert.Equal(t, 0, f.topups.calls)
}

func TestConsumeZeroNeverMutates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := f.gate.Consume(ctx, "acct_1", 0)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, domain.ReasonZeroAmount, result.Reason)
	}
	result, err := f.gate.Consume(ctx, "acct_1", -4)
	require.NoError(t, err)
	assert.True(t, result.OK)

	state, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.Balance)
}

func TestConsumeWithAutoTopUpBuysShortfall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.gate.Consume(ctx, "acct_1", 5)
	require.NoError(t, err)
	_, err = f.store.SetAutoTopUp(ctx, "acct_1", true)
	require.NoError(t, err)

	result, err := f.gate.Consume(ctx, "acct_1", 30)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, domain.ReasonOK, result.Reason)
	assert.Equal(t, int64(0), result.State.Balance)
	assert.Equal(t, 1, f.topups.calls)
}

func TestConsumeReplenishFailureReturnsPreAttemptState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.topups.err = errors.New("card_declined")

	_, err := f.store.SetAutoTopUp(ctx, "acct_1", true)
	require.NoError(t, err)

	result, err := f.gate.Consume(ctx, "acct_1", 40)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.ReasonReplenishFailed, result.Reason)
	assert.Equal(t, domain.State{Balance: 10, AutoTopUp: true}, result.State)
}

func TestConsumeAllowlistedAccountBypassesMetering(t *testing.T) {
	f := newFixture(t, func(cfg *config.BillingConfig) {
		cfg.Credits.DemoAccounts = []string{"Demo@Example.com"}
	})
	ctx := context.Background()
	f.emails.On("ResolveEmail", mock.Anything, "acct_demo").Return("demo@example.com", nil)
	f.emails.On("ResolveEmail", mock.Anything, "acct_paid").Return("paid@example.com", nil)

	result, err := f.gate.Consume(ctx, "acct_demo", 1000)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, domain.ReasonAllowlisted, result.Reason)
	assert.Equal(t, int64(10), result.State.Balance)

	result, err = f.gate.Consume(ctx, "acct_paid", 1000)
	require.NoError(t, err)
	assert.False(t, result.OK)
	f.emails.AssertExpectations(t)
}

func TestConsumeConservation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var added, consumed int64
	for _, amount := range []int64{20, 5, 40} {
		_, err := f.store.Add(ctx, "acct_1", amount)
		require.NoError(t, err)
		added += amount
	}
	for _, amount := range []int64{12, 100, 30, 33, 1} {
		result, err := f.gate.Consume(ctx, "acct_1", amount)
		require.NoError(t, err)
		if result.OK {
			consumed += amount
		}
	}

	state, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 10+added-consumed, state.Balance)
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.Add(ctx, "acct_1", 90)
	require.NoError(t, err)

	const workers = 30
	const amount = 7
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.gate.Consume(ctx, "acct_1", amount)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if result.OK {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	state, err := f.store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, state.Balance, int64(0))
	assert.LessOrEqual(t, successes, int64(100/amount))
	assert.Equal(t, 100-successes*amount, state.Balance)
}

func TestConsumeDebitsWhenTopUpAlreadyInProgress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.SetAutoTopUp(ctx, "acct_1", true)
	require.NoError(t, err)

	busy := &busyReplenisher{store: f.store, credits: 25, landed: true}
	gate := NewGate(GateParams{
		Log:         zap.NewNop(),
		Store:       f.store,
		Replenisher: busy,
		Emails:      f.emails,
		Billing:     config.NewStaticBillingConfigHolder(f.billing),
	})

	result, err := gate.Consume(ctx, "acct_1", 30)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, domain.ReasonOK, result.Reason)
	assert.Equal(t, int64(5), result.State.Balance)
	assert.Equal(t, 1, busy.calls)

	busy.landed = false
	result, err = gate.Consume(ctx, "acct_1", 30)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.ReasonInsufficient, result.Reason)
	assert.Equal(t, int64(5), result.State.Balance)
}

func TestDebitSurvivesRepeatedLostRaces(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&docdomain.Document{}))
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	repo := &racingRepo{Repository: docrepo.Provide(), losses: 25}
	store := NewStore(StoreParams{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)),
		Repo:    repo,
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	ctx := context.Background()

	state, reason, err := store.Debit(ctx, "acct_1", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonOK, reason)
	assert.Equal(t, int64(6), state.Balance)
	assert.Equal(t, 26, repo.updates)

	repo.losses, repo.updates = 1000, 0
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = store.Debit(cancelled, "acct_1", 4)
	assert.ErrorIs(t, err, context.Canceled)

	got, err := store.GetState(ctx, "acct_1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Balance)
}
