package ewa

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Policy holds the employer-side EWA settings.
type Policy struct {
	// Fee is charged per withdrawal.
	Fee decimal.Decimal
	// EmployerLimitPct caps the share of earned wage that can be withdrawn.
	EmployerLimitPct decimal.Decimal
	// ApprovalThreshold routes requests above it to pending_approval.
	// Zero disables manual approval.
	ApprovalThreshold decimal.Decimal
	// TransferSLA is added to the request time to estimate arrival.
	TransferSLA time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Fee:              decimal.RequireFromString("2.50"),
		EmployerLimitPct: decimal.RequireFromString("0.5"),
		TransferSLA:      24 * time.Hour,
	}
}

// Period is the pay period a balance is computed for.
type Period struct {
	Start        time.Time
	End          time.Time
	DaysWorked   int
	DaysInPeriod int
}

// Wage is the employee side of the calculation.
type Wage struct {
	MonthlyIncome    decimal.Decimal
	PersonalLimitPct decimal.Decimal
}

// Balance is a snapshot of a period's liquidity.
type Balance struct {
	Earned    decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

// Book is the set of withdrawal requests of one account. It is not safe for
// concurrent use.
type Book struct {
	requests []*Request
}

func NewBook(requests []*Request) *Book {
	b := &Book{requests: make([]*Request, 0, len(requests))}
	for _, r := range requests {
		b.requests = append(b.requests, cloneRequest(r))
	}

	return b
}

// Requests returns all requests, newest first.
func (b *Book) Requests() []*Request {
	out := make([]*Request, len(b.requests))
	copy(out, b.requests)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})

	return out
}

func (b *Book) Get(id uuid.UUID) (*Request, error) {
	for _, r := range b.requests {
		if r.ID == id {
			return r, nil
		}
	}

	return nil, ErrNotFound
}

// Reserved sums the amounts of requests in the period that still hold
// balance: everything except rejected ones.
func (b *Book) Reserved(p Period) decimal.Decimal {
	total := decimal.Zero

	for _, r := range b.requests {
		if !r.Status.Reserves() {
			continue
		}

		if r.RequestedAt.Before(p.Start) || r.RequestedAt.After(p.End) {
			continue
		}

		total = total.Add(r.Amount)
	}

	return total
}

// Balance computes the period's liquidity for the given wage and policy.
func (b *Book) Balance(policy Policy, w Wage, p Period) Balance {
	reserved := b.Reserved(p)
	earnedLimit := AvailableBalance(w.MonthlyIncome, p.DaysWorked, p.DaysInPeriod, w.PersonalLimitPct, policy.EmployerLimitPct, decimal.Zero)

	return Balance{
		Earned:    earnedLimit,
		Reserved:  reserved,
		Available: AvailableBalance(w.MonthlyIncome, p.DaysWorked, p.DaysInPeriod, w.PersonalLimitPct, policy.EmployerLimitPct, reserved),
	}
}

// Request reserves amount against the period and creates a withdrawal. The
// full amount is reserved, not the net, because all of it is recovered from
// the next payroll.
func (b *Book) Request(policy Policy, w Wage, p Period, amount decimal.Decimal, now time.Time) (*Request, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrExceedsAvailableBalance
	}

	if amount.GreaterThan(b.Balance(policy, w, p).Available) {
		return nil, ErrExceedsAvailableBalance
	}

	if !amount.GreaterThan(policy.Fee) {
		return nil, ErrBelowFee
	}

	status := StatusProcessingTransfer
	if policy.ApprovalThreshold.IsPositive() && amount.GreaterThan(policy.ApprovalThreshold) {
		status = StatusPendingApproval
	}

	y, m, d := p.End.Date()

	var since time.Time
	if status == StatusProcessingTransfer {
		since = now
	}

	r := &Request{
		ID:                   uuid.New(),
		Amount:               amount,
		Fee:                  policy.Fee,
		NetAmount:            amount.Sub(policy.Fee),
		Status:               status,
		RequestedAt:          now,
		ProcessingSince:      since,
		EstimatedArrival:     now.Add(policy.TransferSLA),
		PayrollDeductionDate: time.Date(y, m, d, 0, 0, 0, 0, p.End.Location()),
	}

	b.requests = append(b.requests, r)

	return r, nil
}

// Approve moves a pending request into processing. The payroll timeout runs
// from now.
func (b *Book) Approve(id uuid.UUID, now time.Time) (*Request, error) {
	r, err := b.Get(id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(r.Status, StatusProcessingTransfer) {
		return nil, ErrInvalidTransition
	}

	r.Status = StatusProcessingTransfer
	r.ProcessingSince = now

	return r, nil
}

// Complete applies a payroll outcome. It is idempotent per request id: once a
// request is terminal, further completions are ignored and applied is false.
// A success for a request still awaiting approval is an invalid transition.
func (b *Book) Complete(id uuid.UUID, o Outcome, now time.Time) (r *Request, applied bool, err error) {
	r, err = b.Get(id)
	if err != nil {
		return nil, false, err
	}

	if r.Status.Terminal() {
		return r, false, nil
	}

	to := StatusRejected
	if o.Success {
		to = StatusDisbursed
	}

	if !CanTransition(r.Status, to) {
		return nil, false, ErrInvalidTransition
	}

	r.Status = to
	r.ResolvedAt = &now

	if !o.Success {
		r.Reason = o.Reason
	}

	return r, true, nil
}

// Expire rejects requests that have been processing for longer than timeout
// and returns them. Their reservation is released.
func (b *Book) Expire(now time.Time, timeout time.Duration) []*Request {
	var expired []*Request

	for _, r := range b.requests {
		if r.Status != StatusProcessingTransfer {
			continue
		}

		since := r.ProcessingSince
		if since.IsZero() {
			since = r.RequestedAt
		}

		if now.Sub(since) < timeout {
			continue
		}

		resolved := now
		r.Status = StatusRejected
		r.Reason = ReasonTimedOut
		r.ResolvedAt = &resolved

		expired = append(expired, r)
	}

	return expired
}

func cloneRequest(r *Request) *Request {
	cp := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		cp.ResolvedAt = &t
	}

	return &cp
}
