package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
)

// payPeriod is the calendar month containing now. Days worked counts today.
func payPeriod(now time.Time) ewa.Period {
	m := budget.MonthOf(now)

	return ewa.Period{
		Start:        m.Start,
		End:          m.End,
		DaysWorked:   m.DayOfMonth,
		DaysInPeriod: m.DaysInMonth,
	}
}

// Liquidity is the EWA balance of the current pay period.
type Liquidity struct {
	Period  ewa.Period
	Balance ewa.Balance
	Fee     decimal.Decimal
}

func (e *Engine) Liquidity(ctx context.Context, accountID string) (Liquidity, error) {
	var out Liquidity

	err := e.view(ctx, accountID, func(st *state) error {
		p := payPeriod(e.clock())

		out = Liquidity{
			Period:  p,
			Balance: st.book.Balance(e.settings.EWA, st.profile.wage(), p),
			Fee:     e.settings.EWA.Fee,
		}

		return nil
	})

	return out, err
}

// RequestWithdrawal reserves amount and, unless it needs approval, hands the
// request to the transfer queue once it is persisted.
func (e *Engine) RequestWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal) (ewa.Request, error) {
	var out ewa.Request

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		r, err := next.book.Request(e.settings.EWA, next.profile.wage(), payPeriod(now), amount, now)
		if err != nil {
			return err
		}

		if err := tx.SaveWithdrawal(ctx, accountID, r); err != nil {
			return fmt.Errorf("saving withdrawal: %w", err)
		}

		out = *r

		ch.emit(Event{Type: EventWithdrawalRequested, AccountID: accountID, At: now, Withdrawal: new(*r)})
		e.dispatch(ch, accountID, r)

		return nil
	})

	return out, err
}

// ApproveWithdrawal releases a pending request to the transfer queue.
func (e *Engine) ApproveWithdrawal(ctx context.Context, accountID string, id uuid.UUID) (ewa.Request, error) {
	var out ewa.Request

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		r, err := next.book.Approve(id, e.clock())
		if err != nil {
			return err
		}

		if err := tx.SaveWithdrawal(ctx, accountID, r); err != nil {
			return fmt.Errorf("saving withdrawal: %w", err)
		}

		out = *r

		ch.emit(Event{Type: EventWithdrawalApproved, AccountID: accountID, At: e.clock(), Withdrawal: new(*r)})
		e.dispatch(ch, accountID, r)

		return nil
	})

	return out, err
}

func (e *Engine) dispatch(ch *change, accountID string, r *ewa.Request) {
	if e.queue == nil || r.Status != ewa.StatusProcessingTransfer {
		return
	}

	req := *r

	ch.onCommit = append(ch.onCommit, func() {
		if !e.queue.Enqueue(accountID, req) {
			e.logger.Warn("transfer queue full, request left for sweep",
				"account_id", accountID, "request_id", req.ID)
		}
	})
}

// CompleteWithdrawal applies a payroll outcome. Completing an already
// resolved request changes nothing and reports applied=false, so redelivered
// outcomes are harmless.
func (e *Engine) CompleteWithdrawal(ctx context.Context, accountID string, id uuid.UUID, o ewa.Outcome) (ewa.Request, bool, error) {
	var (
		out     ewa.Request
		applied bool
	)

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		r, ok, err := next.book.Complete(id, o, now)
		if err != nil {
			return err
		}

		out = *r
		applied = ok

		if !ok {
			return errNoChange
		}

		if err := tx.SaveWithdrawal(ctx, accountID, r); err != nil {
			return fmt.Errorf("saving withdrawal: %w", err)
		}

		ch.emit(Event{Type: EventWithdrawalResolved, AccountID: accountID, At: now, Withdrawal: new(*r)})

		return nil
	})

	return out, applied, err
}

// Withdrawals lists the requests of an account, newest first.
func (e *Engine) Withdrawals(ctx context.Context, accountID string) ([]ewa.Request, error) {
	var out []ewa.Request

	err := e.view(ctx, accountID, func(st *state) error {
		for _, r := range st.book.Requests() {
			out = append(out, *r)
		}

		return nil
	})

	return out, err
}

// ExpireWithdrawals rejects every request that has been processing for
// longer than timeout, counted from when it entered processing, across all accounts, and returns how many it expired.
func (e *Engine) ExpireWithdrawals(ctx context.Context, timeout time.Duration) (int, error) {
	ids, err := e.repo.ListAccountIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing accounts: %w", err)
	}

	total := 0

	var errs []error

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := e.expire(ctx, id, timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", id, err))
			continue
		}

		total += n
	}

	return total, errors.Join(errs...)
}

func (e *Engine) expire(ctx context.Context, accountID string, timeout time.Duration) (int, error) {
	n := 0

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		expired := next.book.Expire(now, timeout)
		if len(expired) == 0 {
			return errNoChange
		}

		for _, r := range expired {
			if err := tx.SaveWithdrawal(ctx, accountID, r); err != nil {
				return fmt.Errorf("saving withdrawal: %w", err)
			}

			ch.emit(Event{Type: EventWithdrawalResolved, AccountID: accountID, At: now, Withdrawal: new(*r)})
		}

		n = len(expired)

		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}

	return n, err
}
