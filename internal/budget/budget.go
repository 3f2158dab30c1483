package budget

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/expense"
)

// Granularity selects the horizon of a safe-to-spend figure.
type Granularity string

const (
	GranularityDaily  Granularity = "DAILY"
	GranularityWeekly Granularity = "WEEKLY"
)

// Status classifies a projection against its budget portion.
type Status string

const (
	StatusOK            Status = "OK"
	StatusWarning       Status = "WARNING"
	StatusExceedingRisk Status = "EXCEEDING_RISK"
)

// DefaultGroupShare is the share of the monthly budget assumed for a
// category group when projecting a subset of categories.
var DefaultGroupShare = decimal.RequireFromString("0.4")

var warningShare = decimal.RequireFromString("0.8")

// Period describes where a moment falls within its calendar month.
type Period struct {
	Start         time.Time
	End           time.Time
	DayOfMonth    int
	DaysInMonth   int
	DaysRemaining int
}

// MonthOf returns the calendar month containing t, in t's location.
// DaysRemaining counts today.
func MonthOf(t time.Time) Period {
	y, m, d := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	next := start.AddDate(0, 1, 0)
	days := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()

	return Period{
		Start:         start,
		End:           next.Add(-time.Nanosecond),
		DayOfMonth:    d,
		DaysInMonth:   days,
		DaysRemaining: days - d + 1,
	}
}

// SafeToSpend is the remaining budget spread over the remaining days. For
// weekly granularity the daily figure is multiplied by min(7, daysRemaining).
// daysRemaining below 1 is treated as 1.
func SafeToSpend(g Granularity, totalSpent, budget decimal.Decimal, daysRemaining int) decimal.Decimal {
	if daysRemaining < 1 {
		daysRemaining = 1
	}

	left := decimal.Max(decimal.Zero, budget.Sub(totalSpent))
	daily := left.Div(decimal.NewFromInt(int64(daysRemaining)))

	if g == GranularityWeekly {
		return daily.Mul(decimal.NewFromInt(int64(min(7, daysRemaining))))
	}

	return daily
}

// Projection is the month-end forecast for a category group.
type Projection struct {
	Categories    []expense.Category
	Spent         decimal.Decimal
	BudgetPortion decimal.Decimal
	Projected     decimal.Decimal
	Status        Status
}

// CategoryProjection extrapolates month-to-date spending in the given
// categories (or the whole ledger when empty) linearly to the end of the
// month and classifies it against the group's share of the budget. ledger
// holds only the current month's records.
func CategoryProjection(
	categories []expense.Category,
	ledger *expense.Ledger,
	monthlyBudget decimal.Decimal,
	dayOfMonth, daysInMonth int,
	groupShare decimal.Decimal,
) Projection {
	spent := ledger.SpentIn(categories)
	projected := spent.
		Div(decimal.NewFromInt(int64(max(1, dayOfMonth)))).
		Mul(decimal.NewFromInt(int64(daysInMonth)))

	portion := monthlyBudget
	if len(categories) > 0 {
		portion = monthlyBudget.Mul(groupShare)
	}

	return Projection{
		Categories:    categories,
		Spent:         spent,
		BudgetPortion: portion,
		Projected:     projected,
		Status:        classify(projected, portion),
	}
}

func classify(projected, portion decimal.Decimal) Status {
	switch {
	case projected.GreaterThan(portion):
		return StatusExceedingRisk
	case projected.GreaterThan(portion.Mul(warningShare)):
		return StatusWarning
	default:
		return StatusOK
	}
}

// ChartPoint is one day of a projection chart. Actual is nil for days that
// have not happened yet.
type ChartPoint struct {
	Day       int
	Actual    *decimal.Decimal
	Projected decimal.Decimal
}

// ChartData builds a cumulative spend series for the month: actual values up
// to dayOfMonth and the linear projection for every day. daily holds the
// per-day spend from day 1 to dayOfMonth.
func ChartData(daily []decimal.Decimal, dayOfMonth, daysInMonth int) []ChartPoint {
	spent := decimal.Zero
	for _, d := range daily {
		spent = spent.Add(d)
	}

	rate := spent.Div(decimal.NewFromInt(int64(max(1, dayOfMonth))))
	points := make([]ChartPoint, 0, daysInMonth)
	running := decimal.Zero

	for day := 1; day <= daysInMonth; day++ {
		p := ChartPoint{
			Day:       day,
			Projected: rate.Mul(decimal.NewFromInt(int64(day))).Round(2),
		}

		if day <= dayOfMonth && day-1 < len(daily) {
			running = running.Add(daily[day-1])
			actual := running
			p.Actual = &actual
		}

		points = append(points, p)
	}

	return points
}

// Trend returns the per-day amounts as floats, oldest first, rounded to
// cents for display.
func Trend(daily []decimal.Decimal) []float64 {
	out := make([]float64, len(daily))
	for i, d := range daily {
		out[i] = d.Round(2).InexactFloat64()
	}

	return out
}
