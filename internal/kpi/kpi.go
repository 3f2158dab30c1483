// Package kpi keeps the employer-side aggregate that employee activity feeds
// into. Only the mutation contract lives here; the aggregate's own lifecycle
// belongs to the B2B side.
package kpi

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// RetentionShare is the fraction of a formal expense credited to retention
// savings.
var RetentionShare = decimal.RequireFromString("0.05")

// Snapshot is a consistent read of the aggregate.
type Snapshot struct {
	AvgFWI           float64
	FlightRiskScore  float64
	RetentionSavings decimal.Decimal
	Accounts         int
}

// Aggregate is shared by all accounts and safe for concurrent use.
type Aggregate struct {
	mu               sync.Mutex
	retentionSavings decimal.Decimal
	scores           map[string]int
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		retentionSavings: decimal.Zero,
		scores:           make(map[string]int),
	}
}

// ApplyFormalExpense credits the retention share of a formal expense.
func (a *Aggregate) ApplyFormalExpense(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.retentionSavings = a.retentionSavings.Add(amount.Mul(RetentionShare))
}

// ReverseFormalExpense undoes ApplyFormalExpense for a removed or edited
// record. Savings never go below zero.
func (a *Aggregate) ReverseFormalExpense(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.retentionSavings = decimal.Max(decimal.Zero, a.retentionSavings.Sub(amount.Mul(RetentionShare)))
}

// Restore replaces the retention savings with the share of formalTotal, the
// sum of every stored formal expense.
func (a *Aggregate) Restore(formalTotal decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.retentionSavings = formalTotal.Mul(RetentionShare)
}

// ObserveFWI records the latest score of an account.
func (a *Aggregate) ObserveFWI(accountID string, score int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.scores[accountID] = score
}

// Forget drops an account from the average.
func (a *Aggregate) Forget(accountID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.scores, accountID)
}

// Snapshot returns the current KPIs. FlightRiskScore is the complement of the
// average wellness score.
func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{RetentionSavings: a.retentionSavings, Accounts: len(a.scores)}
	if len(a.scores) == 0 {
		return s
	}

	sum := 0
	for _, v := range a.scores {
		sum += v
	}

	s.AvgFWI = math.Round(float64(sum)/float64(len(a.scores))*10) / 10
	s.FlightRiskScore = math.Round((100-s.AvgFWI)*10) / 10

	return s
}
