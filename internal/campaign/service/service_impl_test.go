package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/creditgate/internal/campaign/domain"
	"github.com/smallbiznis/creditgate/internal/campaign/repository"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Campaign{}))

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestUpsertDefaultsToActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	campaign, err := svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: "c1", OwnerAccountID: "acct_1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, campaign.Status)

	campaign, err = svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: "c1", OwnerAccountID: "acct_2", Status: "paused"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, campaign.Status)
	assert.Equal(t, "acct_2", campaign.OwnerAccountID)
}

func TestUpsertValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.UpsertCampaignRequest{OwnerAccountID: "acct_1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidID))
	_, err = svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: "c1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidOwner))
	_, err = svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: "c1", OwnerAccountID: "acct_1", Status: "done"})
	assert.True(t, errors.Is(err, domain.ErrInvalidStatus))

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListActivePagesByID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: fmt.Sprintf("c%d", i), OwnerAccountID: "acct_1"})
		require.NoError(t, err)
	}
	_, err := svc.Upsert(ctx, domain.UpsertCampaignRequest{ID: "c2", OwnerAccountID: "acct_1", Status: domain.StatusArchived})
	require.NoError(t, err)

	var seen []string
	after := ""
	for {
		page, err := svc.ListActive(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			seen = append(seen, c.ID)
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, []string{"c0", "c1", "c3", "c4"}, seen)
}
