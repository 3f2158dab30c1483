package account

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
)

const trendDays = 5

// Summary is the read model behind the dashboard.
type Summary struct {
	Profile       Profile
	Granularity   budget.Granularity
	SafeToSpend   decimal.Decimal
	Currency      string
	DaysRemaining int
	Trend         []float64
	Spent         decimal.Decimal
	Level         gamification.Level
	NextLevel     *gamification.Level
	LevelProgress float64
	Budget        budget.Status
}

func (e *Engine) Summary(ctx context.Context, accountID string, g budget.Granularity) (Summary, error) {
	var out Summary

	if g != budget.GranularityWeekly {
		g = budget.GranularityDaily
	}

	err := e.view(ctx, accountID, func(st *state) error {
		now := e.clock()
		month := budget.MonthOf(now)
		ledger := st.month(now)
		spent := ledger.Total()
		levels := e.game.Levels()

		out = Summary{
			Profile:       st.profile,
			Granularity:   g,
			SafeToSpend:   budget.SafeToSpend(g, spent, st.profile.MonthlyBudget, month.DaysRemaining).Round(2),
			Currency:      e.settings.Currency,
			DaysRemaining: month.DaysRemaining,
			Trend:         budget.Trend(st.ledger.DailyTotals(now, trendDays)),
			Spent:         spent,
			Level:         levels.For(st.profile.LifetimePoints),
			LevelProgress: levels.Progress(st.profile.LifetimePoints),
			Budget: budget.CategoryProjection(
				nil, ledger, st.profile.MonthlyBudget, month.DayOfMonth, month.DaysInMonth, e.settings.GroupShare,
			).Status,
		}

		if next, ok := levels.Next(st.profile.LifetimePoints); ok {
			out.NextLevel = &next
		}

		return nil
	})

	return out, err
}

// Focus is a category group projection with its chart series.
type Focus struct {
	Projection budget.Projection
	Chart      []budget.ChartPoint
}

func (e *Engine) Projection(ctx context.Context, accountID string, categories []expense.Category) (Focus, error) {
	var out Focus

	for _, c := range categories {
		if !c.Valid() {
			return Focus{}, expense.ErrInvalidCategory
		}
	}

	err := e.view(ctx, accountID, func(st *state) error {
		now := e.clock()
		month := budget.MonthOf(now)

		out = Focus{
			Projection: budget.CategoryProjection(
				categories, st.month(now), st.profile.MonthlyBudget, month.DayOfMonth, month.DaysInMonth, e.settings.GroupShare,
			),
			Chart: budget.ChartData(
				st.ledger.DailyTotals(now, month.DayOfMonth, categories...), month.DayOfMonth, month.DaysInMonth,
			),
		}

		return nil
	})

	return out, err
}
