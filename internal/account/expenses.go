package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
)

// ExpenseResult is what a capture changed on the account.
type ExpenseResult struct {
	Record  expense.Record
	Profile Profile
	// Points awarded by this operation.
	Points  int64
	LevelUp *gamification.LevelUp
}

// RecordExpense runs the capture pipeline: ledger append, streak, points and
// level, FWI and the employer aggregate.
func (e *Engine) RecordExpense(ctx context.Context, accountID string, c expense.Candidate) (ExpenseResult, error) {
	var out ExpenseResult

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		rec, err := next.ledger.Append(c, now)
		if err != nil {
			return err
		}

		progress, points, lu := e.game.ExpenseCaptured(next.profile.progress(), rec.IsFormal, rec.Amount, now)
		next.profile.setProgress(progress)
		rec.PointsEarned = points

		e.rescore(next, ch)

		if err := tx.SaveExpense(ctx, accountID, rec); err != nil {
			return fmt.Errorf("saving expense: %w", err)
		}

		if err := e.saveProfile(ctx, tx, next, &out.Profile); err != nil {
			return err
		}

		if rec.IsFormal {
			amount := rec.Amount
			ch.onCommit = append(ch.onCommit, func() { e.kpi.ApplyFormalExpense(amount) })
		}

		out.Record = *rec
		out.Points = points
		out.LevelUp = lu

		ch.emit(Event{Type: EventExpenseRecorded, AccountID: accountID, At: now, Points: points, Expense: new(*rec)})
		e.levelUp(ch, accountID, lu)

		return nil
	})

	return out, err
}

// RecordExpenses captures a batch in order, stopping at the first failure.
// Records captured before the failure stay captured.
func (e *Engine) RecordExpenses(ctx context.Context, accountID string, cs []expense.Candidate) ([]ExpenseResult, error) {
	out := make([]ExpenseResult, 0, len(cs))

	for i, c := range cs {
		res, err := e.RecordExpense(ctx, accountID, c)
		if err != nil {
			return out, fmt.Errorf("recording expense %d: %w", i+1, err)
		}

		out = append(out, res)
	}

	return out, nil
}

// RemoveExpense deletes a record and rescores. Points earned by it are kept.
func (e *Engine) RemoveExpense(ctx context.Context, accountID string, id uuid.UUID) (Profile, error) {
	var out Profile

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		rec, err := next.ledger.Remove(id)
		if err != nil {
			return err
		}

		e.rescore(next, ch)

		if err := tx.DeleteExpense(ctx, accountID, id); err != nil {
			return fmt.Errorf("deleting expense: %w", err)
		}

		if err := e.saveProfile(ctx, tx, next, &out); err != nil {
			return err
		}

		if rec.IsFormal {
			amount := rec.Amount
			ch.onCommit = append(ch.onCommit, func() { e.kpi.ReverseFormalExpense(amount) })
		}

		ch.emit(Event{Type: EventExpenseRemoved, AccountID: accountID, At: e.clock(), Expense: rec})

		return nil
	})

	return out, err
}

// EditExpense patches a record. The aggregate sees the edit as a removal of
// the old record followed by a capture of the new one. Points are re-rated
// with the current policy; an increase is awarded, a decrease is not taken
// back.
func (e *Engine) EditExpense(ctx context.Context, accountID string, id uuid.UUID, patch expense.Patch) (ExpenseResult, error) {
	var out ExpenseResult

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		prev, rec, err := next.ledger.Edit(id, patch)
		if err != nil {
			return err
		}

		points := e.game.PointsFor(rec.IsFormal, rec.Amount)
		if delta := points - prev.PointsEarned; delta > 0 {
			progress, lu := e.game.Award(next.profile.progress(), delta)
			next.profile.setProgress(progress)
			rec.PointsEarned = points
			out.Points = delta
			out.LevelUp = lu
			e.levelUp(ch, accountID, lu)
		} else {
			rec.PointsEarned = prev.PointsEarned
		}

		e.rescore(next, ch)

		if err := tx.SaveExpense(ctx, accountID, rec); err != nil {
			return fmt.Errorf("saving expense: %w", err)
		}

		if err := e.saveProfile(ctx, tx, next, &out.Profile); err != nil {
			return err
		}

		if prev.IsFormal {
			amount := prev.Amount
			ch.onCommit = append(ch.onCommit, func() { e.kpi.ReverseFormalExpense(amount) })
		}

		if rec.IsFormal {
			amount := rec.Amount
			ch.onCommit = append(ch.onCommit, func() { e.kpi.ApplyFormalExpense(amount) })
		}

		out.Record = *rec

		ch.emit(Event{Type: EventExpenseEdited, AccountID: accountID, At: e.clock(), Expense: new(*rec)})

		return nil
	})

	return out, err
}

// Expenses lists the ledger of an account in capture order.
func (e *Engine) Expenses(ctx context.Context, accountID string) ([]*expense.Record, error) {
	var out []*expense.Record

	err := e.view(ctx, accountID, func(st *state) error {
		out = st.ledger.Records()
		return nil
	})

	return out, err
}

// Expense returns one record.
func (e *Engine) Expense(ctx context.Context, accountID string, id uuid.UUID) (expense.Record, error) {
	var out expense.Record

	err := e.view(ctx, accountID, func(st *state) error {
		r, err := st.ledger.Get(id)
		if err != nil {
			return err
		}

		out = *r

		return nil
	})

	return out, err
}

// SkipExpense rewards the user for deciding not to spend.
func (e *Engine) SkipExpense(ctx context.Context, accountID string) (ExpenseResult, error) {
	var out ExpenseResult

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		progress, points, lu := e.game.SkipBonus(next.profile.progress(), now)
		next.profile.setProgress(progress)

		e.rescore(next, ch)

		if err := e.saveProfile(ctx, tx, next, &out.Profile); err != nil {
			return err
		}

		out.Points = points
		out.LevelUp = lu

		ch.emit(Event{Type: EventSkipRewarded, AccountID: accountID, At: now, Points: points})
		e.levelUp(ch, accountID, lu)

		return nil
	})

	return out, err
}
