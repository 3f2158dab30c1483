package expense

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	httpaccount "github.com/MrJamesThe3rd/treevu/internal/http/account"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
)

type expenseResponse struct {
	ID           uuid.UUID        `json:"id"`
	Merchant     string           `json:"merchant"`
	Amount       json.Number      `json:"amount"`
	Date         time.Time        `json:"date"`
	Category     expense.Category `json:"category"`
	IsFormal     bool             `json:"is_formal"`
	IGV          json.Number      `json:"igv"`
	LostSavings  json.Number      `json:"lost_savings"`
	PointsEarned int64            `json:"points_earned"`
	Source       expense.Source   `json:"source"`
	Confidence   float64          `json:"confidence"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toResponse(r *expense.Record) expenseResponse {
	return expenseResponse{
		ID:           r.ID,
		Merchant:     r.Merchant,
		Amount:       respond.Money(r.Amount),
		Date:         r.Date,
		Category:     r.Category,
		IsFormal:     r.IsFormal,
		IGV:          respond.Money(r.IGV),
		LostSavings:  respond.Money(r.LostSavings),
		PointsEarned: r.PointsEarned,
		Source:       r.Source,
		Confidence:   r.Confidence,
		CreatedAt:    r.CreatedAt,
	}
}

func toResponseList(records []*expense.Record) []expenseResponse {
	resp := make([]expenseResponse, len(records))
	for i, r := range records {
		resp[i] = toResponse(r)
	}

	return resp
}

// resultResponse is returned by every operation that changes the ledger or
// the points balance.
type resultResponse struct {
	Expense *expenseResponse            `json:"expense,omitempty"`
	Points  int64                       `json:"points_awarded"`
	LevelUp *gamification.LevelUp       `json:"level_up,omitempty"`
	Profile httpaccount.ProfileResponse `json:"profile"`
}

func toResultResponse(res account.ExpenseResult, withRecord bool) resultResponse {
	resp := resultResponse{
		Points:  res.Points,
		LevelUp: res.LevelUp,
		Profile: httpaccount.ToProfileResponse(res.Profile),
	}

	if withRecord {
		resp.Expense = new(toResponse(&res.Record))
	}

	return resp
}

type importResponse struct {
	Format   string            `json:"format"`
	Encoding string            `json:"encoding"`
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Expenses []expenseResponse `json:"expenses"`
	Error    string            `json:"error,omitempty"`
}
