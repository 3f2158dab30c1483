package app_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/account/memstore"
	"github.com/MrJamesThe3rd/treevu/internal/app"
	"github.com/MrJamesThe3rd/treevu/internal/config"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func loadConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EWA_FEE", "3.00")
	t.Setenv("PAYROLL_SIMULATED_LATENCY", "0s")

	cfg, err := config.Load()
	require.NoError(t, err)

	return cfg
}

func TestSettings(t *testing.T) {
	cfg := loadConfig(t)

	s := app.Settings(cfg)

	assert.True(t, s.EWA.Fee.Equal(decimal.RequireFromString("3")))
	assert.True(t, s.GroupShare.Equal(decimal.RequireFromString("0.4")))
	assert.Equal(t, 24*time.Hour, s.EWA.TransferSLA)
	assert.Equal(t, "PEN", s.Currency)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	store := memstore.New()
	store.Seed(&account.Snapshot{
		Profile: account.Profile{AccountID: "emp-1", Level: 1},
		Redemptions: []*merchant.Redemption{
			{ID: uuid.New(), OfferID: "cafe-free", CostPoints: 300},
			{ID: uuid.New(), OfferID: "cafe-free", CostPoints: 300},
		},
	})

	t.Run("Defaults", func(t *testing.T) {
		c, err := app.Catalog(ctx, "", store)
		require.NoError(t, err)

		o, err := c.Get("cafe-free")
		require.NoError(t, err)
		assert.Equal(t, int64(2), o.Redemptions())
		assert.Len(t, c.List(), len(merchant.DefaultOffers))
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "offers.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":"cafe-free","merchant":"Bisetti","title":"Café","cost_points":250}]`), 0o600))

		c, err := app.Catalog(ctx, path, store)
		require.NoError(t, err)

		require.Len(t, c.List(), 1)
		assert.Equal(t, int64(250), c.List()[0].CostPoints)
		assert.Equal(t, int64(2), c.List()[0].Redemptions())
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := app.Catalog(ctx, filepath.Join(t.TempDir(), "nope.json"), store)
		assert.ErrorContains(t, err, "opening catalog")
	})
}

func TestApp_PayoutAndSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := loadConfig(t)

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, discard)
	require.NoError(t, err)
	defer closeRepo()

	a, err := app.New(ctx, cfg, discard, repo)
	require.NoError(t, err)

	a.Start(ctx)
	defer a.Dispatcher.Stop()

	_, err = a.Engine.Open(ctx, account.OpenParams{
		AccountID:     "emp-1",
		MonthlyIncome: decimal.NewFromInt(4000),
		MonthlyBudget: decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	r, err := a.Engine.RequestWithdrawal(ctx, "emp-1", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, r.Fee.Equal(decimal.NewFromInt(3)))

	assert.Eventually(t, func() bool {
		list, err := a.Engine.Withdrawals(ctx, "emp-1")
		return err == nil && len(list) == 1 && list[0].Status == ewa.StatusDisbursed
	}, 2*time.Second, 10*time.Millisecond)

	n, err := a.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApp_ScheduleRejectsBadSpec(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Sweep.Schedule = "every now and then"

	a, err := app.New(context.Background(), cfg, discard, memstore.New())
	require.NoError(t, err)

	_, err = a.Schedule(context.Background())
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestNew_RestoresKPIFromStore(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t)

	store := memstore.New()
	store.Seed(&account.Snapshot{
		Profile: account.Profile{AccountID: "emp-1", Level: 1, FWIScore: 64},
		Expenses: []*expense.Record{
			{ID: uuid.New(), Amount: decimal.NewFromInt(1000), IsFormal: true, Date: time.Now()},
			{ID: uuid.New(), Amount: decimal.NewFromInt(80), Date: time.Now()},
		},
	})

	a, err := app.New(ctx, cfg, discard, store)
	require.NoError(t, err)

	kpi := a.Engine.KPI().Snapshot()
	assert.True(t, kpi.RetentionSavings.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, kpi.Accounts)
	assert.InDelta(t, 64.0, kpi.AvgFWI, 0.001)
}
