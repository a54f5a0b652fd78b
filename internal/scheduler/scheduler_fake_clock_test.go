package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/creditgate/internal/campaign/domain"
	campaignrepo "github.com/smallbiznis/creditgate/internal/campaign/repository"
	campaignservice "github.com/smallbiznis/creditgate/internal/campaign/service"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	creditservice "github.com/smallbiznis/creditgate/internal/credit/service"
	docdomain "github.com/smallbiznis/creditgate/internal/document/domain"
	docrepo "github.com/smallbiznis/creditgate/internal/document/repository"
	recurringdomain "github.com/smallbiznis/creditgate/internal/recurring/domain"
	recurringrepo "github.com/smallbiznis/creditgate/internal/recurring/repository"
	recurringservice "github.com/smallbiznis/creditgate/internal/recurring/service"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/zap"
)

func TestScheduler_RunOnce_FakeClock_ChargesEachPeriodOnce(t *testing.T) {
	newMetricsRegistry(t)
	ctx := context.Background()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&docdomain.Document{}, &recurringdomain.Claim{}, &campaigndomain.Campaign{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	fakeClock := clock.NewFakeClock(time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC))
	holder := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	log := zap.NewNop()

	store := creditservice.NewStore(creditservice.StoreParams{
		DB: conn, Log: log, GenID: node, Clock: fakeClock, Repo: docrepo.Provide(), Billing: holder,
	})
	gate := creditservice.NewGate(creditservice.GateParams{Log: log, Store: store, Billing: holder})
	recurringSvc := recurringservice.New(recurringservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fakeClock, Repo: recurringrepo.Provide(), Gate: gate, Billing: holder,
	})
	campaignSvc := campaignservice.New(campaignservice.Params{
		DB: conn, Log: log, Clock: fakeClock, Repo: campaignrepo.Provide(),
	})

	for _, req := range []campaigndomain.UpsertCampaignRequest{
		{ID: "c1", OwnerAccountID: "acct_1"},
		{ID: "c2", OwnerAccountID: "acct_1"},
		{ID: "c3", OwnerAccountID: "acct_2", Status: campaigndomain.StatusPaused},
	} {
		if _, err := campaignSvc.Upsert(ctx, req); err != nil {
			t.Fatalf("upsert campaign: %v", err)
		}
	}
	if _, err := store.Add(ctx, "acct_1", 90); err != nil {
		t.Fatalf("add credits: %v", err)
	}

	s, err := New(Params{
		Log:          log,
		GenID:        node,
		Clock:        fakeClock,
		CampaignSvc:  campaignSvc,
		RecurringSvc: recurringSvc,
		Config:       Config{BatchSize: 1},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	balance := func() int64 {
		t.Helper()
		state, err := store.GetState(ctx, "acct_1")
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		return state.Balance
	}

	// two ticks in May charge each active campaign once
	for i := 0; i < 2; i++ {
		if err := s.RunOnce(ctx); err != nil {
			t.Fatalf("run once: %v", err)
		}
		fakeClock.Advance(10 * time.Minute)
	}
	if got := balance(); got != 100-58 {
		t.Fatalf("expected balance 42 after May, got %d", got)
	}

	// crossing into June opens a new period
	fakeClock.Advance(time.Hour)
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if got := balance(); got != 42-29 {
		t.Fatalf("expected balance 13 after June, got %d", got)
	}

	june, err := recurringSvc.GetClaim(ctx, "c2", "2024-06")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if june.Status != recurringdomain.StatusFailed || june.LastError == nil || *june.LastError != string(creditdomain.ReasonInsufficient) {
		t.Fatalf("expected c2 June claim to fail for insufficient credits, got %+v", june)
	}

	if _, err := recurringSvc.GetClaim(ctx, "c3", "2024-05"); err == nil {
		t.Fatalf("paused campaign should not be charged")
	}
}
