package account_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/account/memstore"
	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

const accountID = "emp-1"

var now = time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseSnapshot() *account.Snapshot {
	return &account.Snapshot{Profile: account.Profile{
		AccountID:        accountID,
		Level:            1,
		StreakCount:      3,
		LastActivityDate: now.AddDate(0, 0, -1),
		MonthlyIncome:    dec("4000"),
		MonthlyBudget:    dec("3000"),
		PersonalLimitPct: dec("0.5"),
	}}
}

type fixture struct {
	repo *memstore.MemoryStore
}

// storeFixture seeds an in-memory store with snap.
func storeFixture(t *testing.T, snap *account.Snapshot) fixture {
	t.Helper()

	repo := memstore.New()
	repo.Seed(snap)

	return fixture{repo: repo}
}

func newEngine(t *testing.T, repo account.Repository, opts ...account.Option) *account.Engine {
	t.Helper()

	opts = append([]account.Option{account.WithClock(func() time.Time { return now })}, opts...)

	e, err := account.NewEngine(repo, opts...)
	require.NoError(t, err)

	return e
}

func TestEngine_RecordExpense_MixedLedgerScore(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	_, err := e.RecordExpense(ctx, accountID, expense.Candidate{
		Merchant: "Tambo", Amount: dec("25"), Category: expense.CategoryFood, IsFormal: true,
	})
	require.NoError(t, err)

	res, err := e.RecordExpense(ctx, accountID, expense.Candidate{
		Merchant: "Mercado", Amount: dec("12"), Category: expense.CategoryFood,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Profile.StreakCount)
	assert.Equal(t, 69, res.Profile.FWIScore)
	assert.Equal(t, int64(8), res.Profile.PointsBalance)
	assert.Equal(t, int64(8), res.Profile.LifetimePoints)
	assert.Equal(t, int64(1), res.Record.PointsEarned)
	assert.True(t, res.Record.LostSavings.Equal(dec("1.2")))

	assert.True(t, e.KPI().Snapshot().RetentionSavings.Equal(dec("1.25")))
	assert.InDelta(t, 69.0, e.KPI().Snapshot().AvgFWI, 0.001)
}

func TestEngine_RecordExpense_InvalidAmountChangesNothing(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	_, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("0")})
	require.ErrorIs(t, err, expense.ErrInvalidAmount)

	p, err := e.Profile(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StreakCount)
	assert.Zero(t, p.PointsBalance)

	records, err := e.Expenses(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := account.NewMockRepository(ctrl)
	tx := account.NewMockTx(ctrl)

	repo.EXPECT().Load(gomock.Any(), accountID).Return(baseSnapshot(), nil).Times(2)
	repo.EXPECT().Begin(gomock.Any(), accountID).Return(tx, nil)
	tx.EXPECT().Load(gomock.Any(), accountID).Return(baseSnapshot(), nil)
	tx.EXPECT().SaveExpense(gomock.Any(), accountID, gomock.Any()).Return(nil)
	tx.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	tx.EXPECT().Rollback().Return(nil)

	e := newEngine(t, repo)
	ctx := context.Background()

	_, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("50"), IsFormal: true})
	require.Error(t, err)

	p, err := e.Profile(ctx, accountID)
	require.NoError(t, err)
	assert.Zero(t, p.PointsBalance)
	assert.Equal(t, 3, p.StreakCount)
	assert.True(t, e.KPI().Snapshot().RetentionSavings.IsZero())

	records, err := e.Expenses(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_RemoveExpenseRescoresAndReversesAggregate(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	formal, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("25"), IsFormal: true})
	require.NoError(t, err)

	_, err = e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("12")})
	require.NoError(t, err)

	p, err := e.RemoveExpense(ctx, accountID, formal.Record.ID)
	require.NoError(t, err)

	// streak 4, nothing formal, 12 of 3000 spent
	assert.Equal(t, 42, p.FWIScore)
	assert.Equal(t, int64(8), p.PointsBalance)
	assert.True(t, e.KPI().Snapshot().RetentionSavings.IsZero())

	_, err = e.RemoveExpense(ctx, accountID, formal.Record.ID)
	assert.ErrorIs(t, err, expense.ErrNotFound)
}

func TestEngine_EditExpense(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	rec, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("40")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Record.PointsEarned)

	formal := true
	edited, err := e.EditExpense(ctx, accountID, rec.Record.ID, expense.Patch{IsFormal: &formal})
	require.NoError(t, err)

	assert.Equal(t, int64(9), edited.Record.PointsEarned)
	assert.Equal(t, int64(9), edited.Profile.LifetimePoints)
	assert.True(t, edited.Record.IGV.Equal(dec("7.2")))
	assert.True(t, e.KPI().Snapshot().RetentionSavings.Equal(dec("2")))

	informal := false
	edited, err = e.EditExpense(ctx, accountID, rec.Record.ID, expense.Patch{IsFormal: &informal})
	require.NoError(t, err)

	assert.Equal(t, int64(9), edited.Profile.PointsBalance)
	assert.True(t, e.KPI().Snapshot().RetentionSavings.IsZero())

	bad := dec("-1")
	_, err = e.EditExpense(ctx, accountID, rec.Record.ID, expense.Patch{Amount: &bad})
	assert.ErrorIs(t, err, expense.ErrInvalidAmount)
}

func TestEngine_LevelUpEventPublishedOnce(t *testing.T) {
	snap := baseSnapshot()
	snap.Profile.PointsBalance = 495
	snap.Profile.LifetimePoints = 495

	f := storeFixture(t, snap)
	e := newEngine(t, f.repo)
	ctx := context.Background()

	events, unsubscribe := e.Bus().Subscribe(32)
	defer unsubscribe()

	res, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("100"), IsFormal: true})
	require.NoError(t, err)
	require.NotNil(t, res.LevelUp)
	assert.Equal(t, 2, res.LevelUp.To.Number)

	res, err = e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("100"), IsFormal: true})
	require.NoError(t, err)
	assert.Nil(t, res.LevelUp)

	levelUps := 0

	for {
		select {
		case ev := <-events:
			if ev.Type == account.EventLevelUp {
				levelUps++
			}

			continue
		default:
		}

		break
	}

	assert.Equal(t, 1, levelUps)
}

func TestEngine_SkipExpense(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)

	res, err := e.SkipExpense(context.Background(), accountID)
	require.NoError(t, err)

	assert.Equal(t, int64(15), res.Profile.PointsBalance)
	assert.Equal(t, 4, res.Profile.StreakCount)
	assert.Equal(t, now, res.Profile.LastActivityDate)
}

func TestEngine_StreakResetsAfterGap(t *testing.T) {
	snap := baseSnapshot()
	snap.Profile.StreakCount = 5
	snap.Profile.LastActivityDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	f := storeFixture(t, snap)
	e := newEngine(t, f.repo, account.WithClock(func() time.Time {
		return time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	}))

	res, err := e.RecordExpense(context.Background(), accountID, expense.Candidate{Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Profile.StreakCount)
}

func TestEngine_Redeem(t *testing.T) {
	type testCase struct {
		name        string
		balance     int64
		offerID     string
		wantErr     error
		wantBalance int64
		wantCounter int64
	}

	tests := []testCase{
		{
			name:        "InsufficientBalance",
			balance:     1240,
			offerID:     "gym-month",
			wantErr:     merchant.ErrInsufficientBalance,
			wantBalance: 1240,
		},
		{
			name:        "UnknownOffer",
			balance:     5000,
			offerID:     "nope",
			wantErr:     merchant.ErrOfferNotFound,
			wantBalance: 5000,
		},
		{
			name:        "Success",
			balance:     2100,
			offerID:     "gym-month",
			wantBalance: 100,
			wantCounter: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			snap.Profile.PointsBalance = tt.balance
			snap.Profile.LifetimePoints = tt.balance

			f := storeFixture(t, snap)
			e := newEngine(t, f.repo)
			ctx := context.Background()

			_, _, err := e.Redeem(ctx, accountID, tt.offerID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			p, err := e.Profile(ctx, accountID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, p.PointsBalance)
			assert.Equal(t, tt.balance, p.LifetimePoints)

			offer, err := e.Catalog().Get("gym-month")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCounter, offer.Redemptions())
		})
	}
}

func TestEngine_RedeemRevertsCounterWhenPersistenceFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := account.NewMockRepository(ctrl)
	tx := account.NewMockTx(ctrl)

	snap := baseSnapshot()
	snap.Profile.PointsBalance = 1000

	repo.EXPECT().Begin(gomock.Any(), accountID).Return(tx, nil)
	tx.EXPECT().Load(gomock.Any(), accountID).Return(snap, nil)
	tx.EXPECT().SaveRedemption(gomock.Any(), accountID, gomock.Any()).Return(errors.New("db down"))
	tx.EXPECT().Rollback().Return(nil)

	e := newEngine(t, repo)

	_, _, err := e.Redeem(context.Background(), accountID, "cafe-free")
	require.Error(t, err)

	offer, err := e.Catalog().Get("cafe-free")
	require.NoError(t, err)
	assert.Zero(t, offer.Redemptions())
}

type recordingQueue struct {
	mu       sync.Mutex
	requests []ewa.Request
}

func (q *recordingQueue) Enqueue(_ string, r ewa.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.requests = append(q.requests, r)

	return true
}

func TestEngine_WithdrawalLifecycle(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	q := &recordingQueue{}
	e := newEngine(t, f.repo, account.WithTransferQueue(q))
	ctx := context.Background()

	before, err := e.Liquidity(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, before.Balance.Available.Equal(dec("1000")))

	r, err := e.RequestWithdrawal(ctx, accountID, dec("100"))
	require.NoError(t, err)
	assert.True(t, r.NetAmount.Equal(dec("97.5")))
	assert.Equal(t, ewa.StatusProcessingTransfer, r.Status)
	require.Len(t, q.requests, 1)
	assert.Equal(t, r.ID, q.requests[0].ID)

	after, err := e.Liquidity(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, before.Balance.Available.Sub(after.Balance.Available).Equal(dec("100")))

	done, applied, err := e.CompleteWithdrawal(ctx, accountID, r.ID, ewa.Outcome{Success: true})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, ewa.StatusDisbursed, done.Status)

	again, applied, err := e.CompleteWithdrawal(ctx, accountID, r.ID, ewa.Outcome{Reason: "late failure"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, ewa.StatusDisbursed, again.Status)

	_, err = e.RequestWithdrawal(ctx, accountID, dec("901"))
	assert.ErrorIs(t, err, ewa.ErrExceedsAvailableBalance)

	_, _, err = e.CompleteWithdrawal(ctx, accountID, uuid.New(), ewa.Outcome{Success: true})
	assert.ErrorIs(t, err, ewa.ErrNotFound)
}

func TestEngine_ApprovalAndExpiry(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	q := &recordingQueue{}

	settings := account.DefaultSettings()
	settings.EWA.ApprovalThreshold = dec("200")

	clock := now
	e := newEngine(t, f.repo,
		account.WithTransferQueue(q),
		account.WithSettings(settings),
		account.WithClock(func() time.Time { return clock }),
	)
	ctx := context.Background()

	r, err := e.RequestWithdrawal(ctx, accountID, dec("300"))
	require.NoError(t, err)
	assert.Equal(t, ewa.StatusPendingApproval, r.Status)
	assert.Empty(t, q.requests)

	_, _, err = e.CompleteWithdrawal(ctx, accountID, r.ID, ewa.Outcome{Success: true})
	assert.ErrorIs(t, err, ewa.ErrInvalidTransition)

	approved, err := e.ApproveWithdrawal(ctx, accountID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ewa.StatusProcessingTransfer, approved.Status)
	assert.Len(t, q.requests, 1)

	clock = now.Add(time.Hour)

	n, err := e.ExpireWithdrawals(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock = now.Add(3 * time.Hour)

	n, err = e.ExpireWithdrawals(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := e.Withdrawals(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ewa.StatusRejected, list[0].Status)
	assert.Equal(t, ewa.ReasonTimedOut, list[0].Reason)

	l, err := e.Liquidity(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, l.Balance.Available.Equal(dec("1000")))
}

func TestEngine_ConcurrentWithdrawalsNeverExceedBalance(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := e.RequestWithdrawal(ctx, accountID, dec("150")); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 6, ok)

	l, err := e.Liquidity(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, l.Balance.Reserved.Equal(dec("900")))
}

func TestEngine_OpenAndNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := account.NewMockRepository(ctrl)
	tx := account.NewMockTx(ctrl)

	repo.EXPECT().Load(gomock.Any(), "ghost").Return(nil, account.ErrNotFound)
	repo.EXPECT().Begin(gomock.Any(), "new").Return(tx, nil).Times(2)
	tx.EXPECT().Load(gomock.Any(), "new").Return(nil, account.ErrNotFound)
	tx.EXPECT().Load(gomock.Any(), "new").Return(&account.Snapshot{Profile: account.Profile{AccountID: "new"}}, nil)
	tx.EXPECT().CreateProfile(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(sql.ErrTxDone).Times(2)

	e := newEngine(t, repo)
	ctx := context.Background()

	p, err := e.Open(ctx, account.OpenParams{
		AccountID:     "new",
		MonthlyIncome: dec("3000"),
		MonthlyBudget: dec("2000"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.True(t, p.PersonalLimitPct.Equal(dec("0.5")))

	_, err = e.Open(ctx, account.OpenParams{AccountID: "new"})
	assert.ErrorIs(t, err, account.ErrExists)

	_, err = e.Profile(ctx, "ghost")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestEngine_UpdateSettings(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	_, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("500")})
	require.NoError(t, err)

	zero := decimal.Zero
	p, err := e.UpdateSettings(ctx, accountID, account.SettingsPatch{MonthlyBudget: &zero})
	require.NoError(t, err)
	assert.True(t, p.MonthlyBudget.IsZero())
	assert.Equal(t, 0, p.FWIBreakdown.BalanceScore)

	tooHigh := dec("1.5")
	_, err = e.UpdateSettings(ctx, accountID, account.SettingsPatch{PersonalLimitPct: &tooHigh})
	assert.ErrorIs(t, err, account.ErrInvalidSettings)
}

func TestEngine_SummaryAndProjection(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	for _, c := range []expense.Candidate{
		{Amount: dec("500"), Category: expense.CategoryFood, Date: now.AddDate(0, 0, -1)},
		{Amount: dec("140"), Category: expense.CategoryTransport, Date: now},
	} {
		_, err := e.RecordExpense(ctx, accountID, c)
		require.NoError(t, err)
	}

	s, err := e.Summary(ctx, accountID, budget.GranularityDaily)
	require.NoError(t, err)

	// (3000 - 640) / 16 days left in April
	assert.True(t, s.SafeToSpend.Equal(dec("147.5")))
	assert.Equal(t, 16, s.DaysRemaining)
	assert.Equal(t, []float64{0, 0, 0, 500, 140}, s.Trend)
	assert.Equal(t, "PEN", s.Currency)

	focus, err := e.Projection(ctx, accountID, []expense.Category{expense.CategoryFood})
	require.NoError(t, err)

	// 500 over 15 days projected to 30 days is 1000, above 80% of 40% of 3000
	assert.True(t, focus.Projection.Projected.Equal(dec("1000")))
	assert.Equal(t, budget.StatusWarning, focus.Projection.Status)
	assert.Len(t, focus.Chart, 30)

	_, err = e.Projection(ctx, accountID, []expense.Category{"crypto"})
	assert.ErrorIs(t, err, expense.ErrInvalidCategory)
}

func TestEngine_SharedStoreSeesOtherWriters(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	q := &recordingQueue{}

	clock := now
	api := newEngine(t, f.repo,
		account.WithTransferQueue(q),
		account.WithClock(func() time.Time { return clock }),
	)
	sweeper := newEngine(t, f.repo, account.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	r, err := api.RequestWithdrawal(ctx, accountID, dec("100"))
	require.NoError(t, err)

	clock = now.Add(3 * time.Hour)

	n, err := sweeper.ExpireWithdrawals(ctx, 2*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, applied, err := api.CompleteWithdrawal(ctx, accountID, r.ID, ewa.Outcome{Success: true})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, ewa.StatusRejected, got.Status)

	stored, err := f.repo.Load(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, stored.Withdrawals, 1)
	assert.Equal(t, ewa.StatusRejected, stored.Withdrawals[0].Status)

	_, err = sweeper.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("10")})
	require.NoError(t, err)

	_, err = api.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("20")})
	require.NoError(t, err)

	records, err := api.Expenses(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestEngine_BudgetFiguresOnlyCountThisMonth(t *testing.T) {
	snap := baseSnapshot()
	snap.Expenses = []*expense.Record{{
		ID:       uuid.New(),
		Amount:   dec("2900"),
		Category: expense.CategoryFood,
		Date:     time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
	}}

	f := storeFixture(t, snap)
	e := newEngine(t, f.repo)
	ctx := context.Background()

	focus, err := e.Projection(ctx, accountID, []expense.Category{expense.CategoryFood})
	require.NoError(t, err)
	assert.True(t, focus.Projection.Spent.IsZero())
	assert.Equal(t, budget.StatusOK, focus.Projection.Status)

	s, err := e.Summary(ctx, accountID, budget.GranularityDaily)
	require.NoError(t, err)
	assert.True(t, s.Spent.IsZero())
	// 3000 over the 16 days left in April
	assert.True(t, s.SafeToSpend.Equal(dec("187.5")))

	res, err := e.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("30")})
	require.NoError(t, err)
	assert.Equal(t, 99, res.Profile.FWIBreakdown.BalanceScore)
}

func TestEngine_RestoreKPI(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	ctx := context.Background()

	first := newEngine(t, f.repo)

	_, err := first.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("1000"), IsFormal: true})
	require.NoError(t, err)

	_, err = first.RecordExpense(ctx, accountID, expense.Candidate{Amount: dec("40")})
	require.NoError(t, err)

	restarted := newEngine(t, f.repo)
	assert.True(t, restarted.KPI().Snapshot().RetentionSavings.IsZero())

	require.NoError(t, restarted.RestoreKPI(ctx))

	kpi := restarted.KPI().Snapshot()
	assert.True(t, kpi.RetentionSavings.Equal(dec("50")))
	assert.Equal(t, 1, kpi.Accounts)
	assert.InDelta(t, first.KPI().Snapshot().AvgFWI, kpi.AvgFWI, 0.001)
}

func TestEngine_LookupsDoNotRetainLockSlots(t *testing.T) {
	f := storeFixture(t, baseSnapshot())
	e := newEngine(t, f.repo)
	ctx := context.Background()

	for _, id := range []string{"ghost-1", "ghost-2", accountID} {
		_, _ = e.Profile(ctx, id)
	}

	_, err := e.SkipExpense(ctx, "ghost-3")
	require.ErrorIs(t, err, account.ErrNotFound)

	assert.Zero(t, e.LockedAccounts())
	assert.Equal(t, 1, e.KPI().Snapshot().Accounts)
}
