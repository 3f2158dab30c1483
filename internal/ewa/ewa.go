// Package ewa implements Earned Wage Access: how much of the wage already
// earned in the current pay period can be withdrawn early, and the lifecycle
// of each withdrawal request until payroll confirms or rejects it.
package ewa

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrExceedsAvailableBalance = errors.New("amount exceeds available balance")
	ErrBelowFee                = errors.New("amount does not cover the withdrawal fee")
	ErrNotFound                = errors.New("withdrawal request not found")
	ErrInvalidTransition       = errors.New("invalid withdrawal status transition")
)

// Status is the lifecycle state of a withdrawal request.
type Status string

const (
	StatusPendingApproval    Status = "pending_approval"
	StatusProcessingTransfer Status = "processing_transfer"
	StatusDisbursed          Status = "disbursed"
	StatusRejected           Status = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDisbursed || s == StatusRejected
}

// Reserves reports whether a request in this status holds part of the
// period's available balance.
func (s Status) Reserves() bool {
	return s != StatusRejected
}

var transitions = map[Status][]Status{
	StatusPendingApproval:    {StatusProcessingTransfer, StatusRejected},
	StatusProcessingTransfer: {StatusDisbursed, StatusRejected},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Request is a single early wage withdrawal. The full Amount is deducted
// from the next payroll; the employee receives NetAmount = Amount - Fee.
type Request struct {
	ID                   uuid.UUID
	Amount               decimal.Decimal
	Fee                  decimal.Decimal
	NetAmount            decimal.Decimal
	Status               Status
	Reason               string
	RequestedAt          time.Time
	ProcessingSince      time.Time // zero while pending approval
	EstimatedArrival     time.Time
	PayrollDeductionDate time.Time
	ResolvedAt           *time.Time
}

// Outcome is the result reported by payroll for a request.
type Outcome struct {
	Success bool
	Reason  string
}

const ReasonTimedOut = "payroll confirmation timed out"

// AvailableBalance is the earned-but-undisbursed wage that can still be
// withdrawn:
//
//	income × daysWorked/daysInPeriod × min(personalPct, employerPct) − reserved
//
// floored at zero. A non-positive daysInPeriod yields zero.
func AvailableBalance(income decimal.Decimal, daysWorked, daysInPeriod int, personalPct, employerPct, reserved decimal.Decimal) decimal.Decimal {
	if daysInPeriod <= 0 || !income.IsPositive() {
		return decimal.Zero
	}

	worked := min(max(daysWorked, 0), daysInPeriod)
	limit := decimal.Min(personalPct, employerPct)

	earned := income.
		Mul(decimal.NewFromInt(int64(worked))).
		Div(decimal.NewFromInt(int64(daysInPeriod))).
		Mul(limit)

	return decimal.Max(decimal.Zero, earned.Sub(reserved)).Truncate(2)
}
