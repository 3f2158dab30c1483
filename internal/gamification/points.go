package gamification

import (
	"github.com/shopspring/decimal"
)

// Policy decides how many points a captured expense is worth. It must be
// deterministic and non-decreasing in amount for a fixed formality.
type Policy interface {
	PointsFor(isFormal bool, amount decimal.Decimal) int64
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(isFormal bool, amount decimal.Decimal) int64

func (f PolicyFunc) PointsFor(isFormal bool, amount decimal.Decimal) int64 {
	return f(isFormal, amount)
}

var (
	ten    = decimal.NewFromInt(10)
	twenty = decimal.NewFromInt(20)
)

// ReferencePolicy rewards formal expenses with max(5, floor(amount/10)+5)
// and informal ones with max(1, floor(amount/20)).
type ReferencePolicy struct{}

func (ReferencePolicy) PointsFor(isFormal bool, amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}

	if isFormal {
		return max(5, amount.Div(ten).Floor().IntPart()+5)
	}

	return max(1, amount.Div(twenty).Floor().IntPart())
}
