package memstore_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/account/memstore"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

var now = time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)

func TestMemoryStore_CommitMakesWritesVisible(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	tx, err := s.Begin(ctx, "emp-1")
	require.NoError(t, err)

	require.NoError(t, tx.CreateProfile(ctx, &account.Profile{AccountID: "emp-1", CreatedAt: now}))

	rec := &expense.Record{ID: uuid.New(), Amount: decimal.NewFromInt(25), Date: now}
	require.NoError(t, tx.SaveExpense(ctx, "emp-1", rec))
	require.NoError(t, tx.SaveRedemption(ctx, "emp-1", &merchant.Redemption{ID: uuid.New(), OfferID: "cafe-free"}))

	_, err = s.Load(ctx, "emp-1")
	require.ErrorIs(t, err, account.ErrNotFound, "staged writes must not be visible before commit")

	staged, err := tx.Load(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, staged.Expenses, 1, "the transaction sees its own writes")

	_, err = tx.Load(ctx, "emp-2")
	require.ErrorIs(t, err, account.ErrNotFound)

	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Rollback(), sql.ErrTxDone)

	snap, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, snap.Expenses, 1)
	assert.Equal(t, rec.ID, snap.Expenses[0].ID)

	rec.Merchant = "mutated after commit"
	snap, err = s.Load(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Expenses[0].Merchant)

	counts, err := s.RedemptionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cafe-free": 1}, counts)
}

func TestMemoryStore_RollbackDiscards(t *testing.T) {
	s := memstore.New()
	s.Seed(&account.Snapshot{Profile: account.Profile{AccountID: "emp-1", PointsBalance: 10}})
	ctx := context.Background()

	tx, err := s.Begin(ctx, "emp-1")
	require.NoError(t, err)

	require.NoError(t, tx.SaveProfile(ctx, &account.Profile{AccountID: "emp-1", PointsBalance: 99}))
	require.NoError(t, tx.Rollback())

	snap, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.Profile.PointsBalance)
}

func TestMemoryStore_Errors(t *testing.T) {
	s := memstore.New()
	s.Seed(&account.Snapshot{Profile: account.Profile{AccountID: "emp-1"}})
	ctx := context.Background()

	tx, err := s.Begin(ctx, "emp-1")
	require.NoError(t, err)
	assert.ErrorIs(t, tx.CreateProfile(ctx, &account.Profile{AccountID: "emp-1"}), account.ErrExists)
	require.NoError(t, tx.Rollback())

	tx, err = s.Begin(ctx, "ghost")
	require.NoError(t, err)
	assert.ErrorIs(t, tx.SaveProfile(ctx, &account.Profile{AccountID: "ghost"}), account.ErrNotFound)
	require.NoError(t, tx.Rollback())
}

func TestMemoryStore_BeginSerialisesPerAccount(t *testing.T) {
	s := memstore.New()
	s.Seed(&account.Snapshot{Profile: account.Profile{AccountID: "emp-1"}})
	ctx := context.Background()

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			tx, err := s.Begin(ctx, "emp-1")
			if !assert.NoError(t, err) {
				return
			}

			snap, err := s.Load(ctx, "emp-1")
			if !assert.NoError(t, err) {
				_ = tx.Rollback()
				return
			}

			snap.Profile.PointsBalance++
			assert.NoError(t, tx.SaveProfile(ctx, &snap.Profile))
			assert.NoError(t, tx.Commit())
		})
	}

	wg.Wait()

	snap, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), snap.Profile.PointsBalance)
}

func TestMemoryStore_ListAccountIDs(t *testing.T) {
	s := memstore.New()
	s.Seed(
		&account.Snapshot{Profile: account.Profile{AccountID: "b"}},
		&account.Snapshot{Profile: account.Profile{AccountID: "a"}},
	)

	ids, err := s.ListAccountIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
