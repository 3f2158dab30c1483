// Package scoring computes the Financial Wellness Index (FWI).
//
// The index blends three signals:
//
//	formalRatio  share of spending backed by a formal invoice (0-100)
//	savingsRatio share of the monthly budget still unspent (0-100)
//	streakBonus  ten points per consecutive active day, capped at 100
//
// weighted 40/30/30 and rounded to an integer in [0,100].
package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	formalWeight  = 0.4
	savingsWeight = 0.3
	streakWeight  = 0.3

	streakPointsPerDay = 10
	maxScore           = 100
)

// Breakdown is the per-signal view of a score, each rounded to an integer.
type Breakdown struct {
	FormalScore  int
	BalanceScore int
	DevScore     int
}

// Result carries the score together with the unrounded ratios it came from.
type Result struct {
	Score        int
	FormalRatio  float64
	SavingsRatio float64
	StreakBonus  float64
	Breakdown    Breakdown
}

// Input is everything the index depends on. Compute is a pure function of it.
type Input struct {
	Total       decimal.Decimal
	FormalTotal decimal.Decimal
	Budget      decimal.Decimal
	Streak      int
}

func Compute(in Input) Result {
	formal := FormalRatio(in.Total, in.FormalTotal)
	savings := SavingsRatio(in.Budget, in.Total)
	streak := StreakBonus(in.Streak)

	raw := formal*formalWeight + savings*savingsWeight + streak*streakWeight

	return Result{
		Score:        clamp(int(math.Round(raw))),
		FormalRatio:  formal,
		SavingsRatio: savings,
		StreakBonus:  streak,
		Breakdown: Breakdown{
			FormalScore:  clamp(int(math.Round(formal))),
			BalanceScore: clamp(int(math.Round(savings))),
			DevScore:     clamp(int(math.Round(streak))),
		},
	}
}

// FormalRatio is formalTotal/total as a percentage, or 0 for an empty ledger.
func FormalRatio(total, formalTotal decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}

	return formalTotal.Div(total).InexactFloat64() * 100
}

// SavingsRatio is the unspent share of the budget as a percentage. A zero or
// negative budget has no defined ratio and contributes 0.
func SavingsRatio(budget, spent decimal.Decimal) float64 {
	if !budget.IsPositive() {
		return 0
	}

	ratio := budget.Sub(spent).Div(budget).InexactFloat64()

	return math.Max(0, ratio) * 100
}

func StreakBonus(streak int) float64 {
	if streak <= 0 {
		return 0
	}

	return math.Min(maxScore, float64(streak*streakPointsPerDay))
}

func clamp(v int) int {
	return max(0, min(maxScore, v))
}
