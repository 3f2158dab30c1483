package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
	"github.com/MrJamesThe3rd/treevu/internal/scoring"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrExists          = errors.New("account already exists")
	ErrInvalidSettings = errors.New("invalid account settings")
)

// Profile is the long-lived per-account state every engine operation reads
// and writes.
type Profile struct {
	AccountID        string
	PointsBalance    int64
	LifetimePoints   int64
	Level            int
	StreakCount      int
	LastActivityDate time.Time
	MonthlyIncome    decimal.Decimal
	MonthlyBudget    decimal.Decimal
	PersonalLimitPct decimal.Decimal
	FWIScore         int
	FWIBreakdown     scoring.Breakdown
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p Profile) progress() gamification.Progress {
	return gamification.Progress{
		PointsBalance:  p.PointsBalance,
		LifetimePoints: p.LifetimePoints,
		Level:          p.Level,
		StreakCount:    p.StreakCount,
		LastActivity:   p.LastActivityDate,
	}
}

func (p *Profile) setProgress(g gamification.Progress) {
	p.PointsBalance = g.PointsBalance
	p.LifetimePoints = g.LifetimePoints
	p.Level = g.Level
	p.StreakCount = g.StreakCount
	p.LastActivityDate = g.LastActivity
}

func (p Profile) wage() ewa.Wage {
	return ewa.Wage{MonthlyIncome: p.MonthlyIncome, PersonalLimitPct: p.PersonalLimitPct}
}

// Snapshot is the full persisted state of an account.
type Snapshot struct {
	Profile     Profile
	Expenses    []*expense.Record
	Withdrawals []*ewa.Request
	Redemptions []*merchant.Redemption
}

// OpenParams configures a new account.
type OpenParams struct {
	AccountID        string
	MonthlyIncome    decimal.Decimal
	MonthlyBudget    decimal.Decimal
	PersonalLimitPct *decimal.Decimal
}

// SettingsPatch updates the money settings of a profile. Nil fields are kept.
type SettingsPatch struct {
	MonthlyIncome    *decimal.Decimal
	MonthlyBudget    *decimal.Decimal
	PersonalLimitPct *decimal.Decimal
}

// state is the in-memory working set of one account.
type state struct {
	profile     Profile
	ledger      *expense.Ledger
	book        *ewa.Book
	redemptions []*merchant.Redemption
}

func newState(s *Snapshot) *state {
	return &state{
		profile:     s.Profile,
		ledger:      expense.NewLedger(s.Expenses),
		book:        ewa.NewBook(s.Withdrawals),
		redemptions: append([]*merchant.Redemption(nil), s.Redemptions...),
	}
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Profile:     s.profile,
		Expenses:    s.ledger.Records(),
		Withdrawals: s.book.Requests(),
		Redemptions: append([]*merchant.Redemption(nil), s.redemptions...),
	}
}

// month is the part of the ledger dated in the calendar month containing now.
// Budgets are monthly, so every budget figure reads this view.
func (s *state) month(now time.Time) *expense.Ledger {
	m := budget.MonthOf(now)
	return s.ledger.Between(m.Start, m.Start.AddDate(0, 1, 0))
}

// rescore recomputes the FWI from this month's spending, the budget and the
// streak.
func (s *state) rescore(now time.Time) {
	month := s.month(now)

	r := scoring.Compute(scoring.Input{
		Total:       month.Total(),
		FormalTotal: month.FormalTotal(),
		Budget:      s.profile.MonthlyBudget,
		Streak:      s.profile.StreakCount,
	})

	s.profile.FWIScore = r.Score
	s.profile.FWIBreakdown = r.Breakdown
}

func validateSettings(income, budget, personalPct decimal.Decimal) error {
	if income.IsNegative() || budget.IsNegative() {
		return ErrInvalidSettings
	}

	if personalPct.IsNegative() || personalPct.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidSettings
	}

	return nil
}
