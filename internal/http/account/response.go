package account

import (
	"encoding/json"
	"time"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
)

type ProfileResponse struct {
	AccountID        string       `json:"account_id"`
	PointsBalance    int64        `json:"points_balance"`
	LifetimePoints   int64        `json:"lifetime_points"`
	Level            int          `json:"level"`
	StreakCount      int          `json:"streak_count"`
	LastActivityDate *time.Time   `json:"last_activity_date,omitempty"`
	MonthlyIncome    json.Number  `json:"monthly_income"`
	MonthlyBudget    json.Number  `json:"monthly_budget"`
	PersonalLimitPct json.Number  `json:"personal_limit_pct"`
	FWIScore         int          `json:"fwi_score"`
	FWIBreakdown     FWIBreakdown `json:"fwi_breakdown"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// FWIBreakdown names the three signals the way the dashboard shows them.
type FWIBreakdown struct {
	Health      int `json:"health"`
	Balance     int `json:"balance"`
	Development int `json:"development"`
}

func ToProfileResponse(p account.Profile) ProfileResponse {
	resp := ProfileResponse{
		AccountID:        p.AccountID,
		PointsBalance:    p.PointsBalance,
		LifetimePoints:   p.LifetimePoints,
		Level:            p.Level,
		StreakCount:      p.StreakCount,
		MonthlyIncome:    respond.Money(p.MonthlyIncome),
		MonthlyBudget:    respond.Money(p.MonthlyBudget),
		PersonalLimitPct: json.Number(p.PersonalLimitPct.String()),
		FWIScore:         p.FWIScore,
		FWIBreakdown: FWIBreakdown{
			Health:      p.FWIBreakdown.FormalScore,
			Balance:     p.FWIBreakdown.BalanceScore,
			Development: p.FWIBreakdown.DevScore,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}

	if !p.LastActivityDate.IsZero() {
		resp.LastActivityDate = new(p.LastActivityDate)
	}

	return resp
}

type SafeToSpend struct {
	Granularity         budget.Granularity `json:"granularity"`
	Amount              json.Number        `json:"amount"`
	Currency            string             `json:"currency"`
	PeriodRemainingDays int                `json:"period_remaining_days"`
	Last5DaysTrend      []float64          `json:"last_5_days_trend"`
}

type LevelResponse struct {
	Current  gamification.Level  `json:"current"`
	Next     *gamification.Level `json:"next,omitempty"`
	Progress float64             `json:"progress"`
}

// DashboardSummaryResponse keeps the field names the dashboard client reads.
type DashboardSummaryResponse struct {
	SafeToSpend    SafeToSpend   `json:"safe_to_spend"`
	FWIScore       int           `json:"fwi_score"`
	FWIBreakdown   FWIBreakdown  `json:"fwi_breakdown"`
	AICoachMessage string        `json:"ai_coach_message"`
	PointsBalance  int64         `json:"points_balance"`
	StreakCount    int           `json:"streak_count"`
	Level          LevelResponse `json:"level"`
	BudgetStatus   budget.Status `json:"budget_status"`
	SpentToDate    json.Number   `json:"spent_to_date"`
}

func toDashboardResponse(s account.Summary, message string) DashboardSummaryResponse {
	trend := s.Trend
	if trend == nil {
		trend = []float64{}
	}

	return DashboardSummaryResponse{
		SafeToSpend: SafeToSpend{
			Granularity:         s.Granularity,
			Amount:              respond.Money(s.SafeToSpend),
			Currency:            s.Currency,
			PeriodRemainingDays: s.DaysRemaining,
			Last5DaysTrend:      trend,
		},
		FWIScore:       s.Profile.FWIScore,
		FWIBreakdown:   ToProfileResponse(s.Profile).FWIBreakdown,
		AICoachMessage: message,
		PointsBalance:  s.Profile.PointsBalance,
		StreakCount:    s.Profile.StreakCount,
		Level: LevelResponse{
			Current:  s.Level,
			Next:     s.NextLevel,
			Progress: s.LevelProgress,
		},
		BudgetStatus: s.Budget,
		SpentToDate:  respond.Money(s.Spent),
	}
}

type ChartPoint struct {
	Day       int          `json:"day"`
	Actual    *json.Number `json:"actual"`
	Projected json.Number  `json:"projected"`
}

type FocusProjection struct {
	SelectedCategories  []expense.Category `json:"selected_categories"`
	SpentMonthToDate    json.Number        `json:"spent_month_to_date"`
	BudgetedForGroup    json.Number        `json:"budgeted_for_group"`
	ProjectedEndOfMonth json.Number        `json:"projected_end_of_month"`
	Status              budget.Status      `json:"status"`
	ProjectionChartData []ChartPoint       `json:"projection_chart_data"`
}

type ProjectionFocusResponse struct {
	FocusProjection FocusProjection `json:"focus_projection"`
}

func toProjectionResponse(f account.Focus) ProjectionFocusResponse {
	categories := f.Projection.Categories
	if categories == nil {
		categories = []expense.Category{}
	}

	chart := make([]ChartPoint, len(f.Chart))
	for i, p := range f.Chart {
		chart[i] = ChartPoint{Day: p.Day, Projected: respond.Money(p.Projected)}
		if p.Actual != nil {
			chart[i].Actual = new(respond.Money(*p.Actual))
		}
	}

	return ProjectionFocusResponse{FocusProjection: FocusProjection{
		SelectedCategories:  categories,
		SpentMonthToDate:    respond.Money(f.Projection.Spent),
		BudgetedForGroup:    respond.Money(f.Projection.BudgetPortion),
		ProjectedEndOfMonth: respond.Money(f.Projection.Projected),
		Status:              f.Projection.Status,
		ProjectionChartData: chart,
	}}
}
