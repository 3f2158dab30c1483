package account

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/coach"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
)

type Handler struct {
	engine *account.Engine
	coach  coach.Coach
	logger *slog.Logger
}

func NewHandler(engine *account.Engine, c coach.Coach, logger *slog.Logger) *Handler {
	if c == nil {
		c = coach.Rules{}
	}

	return &Handler{engine: engine, coach: c, logger: logger}
}

// Routes registers the collection routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
}

// AccountRoutes registers the routes under /{accountID}.
func (h *Handler) AccountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Patch("/settings", h.updateSettings)
	r.Get("/dashboard", h.dashboard)
	r.Get("/projection", h.projection)
}

type createAccountRequest struct {
	AccountID        string           `json:"account_id"`
	MonthlyIncome    decimal.Decimal  `json:"monthly_income"`
	MonthlyBudget    decimal.Decimal  `json:"monthly_budget"`
	PersonalLimitPct *decimal.Decimal `json:"personal_limit_pct,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.AccountID) == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	if !middleware.CanAccess(r.Context(), req.AccountID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	p, err := h.engine.Open(r.Context(), account.OpenParams{
		AccountID:        req.AccountID,
		MonthlyIncome:    req.MonthlyIncome,
		MonthlyBudget:    req.MonthlyBudget,
		PersonalLimitPct: req.PersonalLimitPct,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, ToProfileResponse(p))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Profile(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToProfileResponse(p))
}

type updateSettingsRequest struct {
	MonthlyIncome    *decimal.Decimal `json:"monthly_income,omitempty"`
	MonthlyBudget    *decimal.Decimal `json:"monthly_budget,omitempty"`
	PersonalLimitPct *decimal.Decimal `json:"personal_limit_pct,omitempty"`
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.engine.UpdateSettings(r.Context(), chi.URLParam(r, "accountID"), account.SettingsPatch{
		MonthlyIncome:    req.MonthlyIncome,
		MonthlyBudget:    req.MonthlyBudget,
		PersonalLimitPct: req.PersonalLimitPct,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToProfileResponse(p))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	g := budget.Granularity(strings.ToUpper(r.URL.Query().Get("granularity")))

	s, err := h.engine.Summary(r.Context(), chi.URLParam(r, "accountID"), g)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	message, err := h.coach.Message(r.Context(), coach.Insight{
		FWIScore:     s.Profile.FWIScore,
		Breakdown:    s.Profile.FWIBreakdown,
		SafeToSpend:  s.SafeToSpend,
		Currency:     s.Currency,
		BudgetStatus: s.Budget,
		Streak:       s.Profile.StreakCount,
		Level:        s.Level.Name,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "coach message unavailable", "error", err)
	}

	respond.JSON(w, http.StatusOK, toDashboardResponse(s, message))
}

func (h *Handler) projection(w http.ResponseWriter, r *http.Request) {
	var categories []expense.Category

	for _, part := range strings.Split(r.URL.Query().Get("categories"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			categories = append(categories, expense.Category(strings.ToLower(part)))
		}
	}

	f, err := h.engine.Projection(r.Context(), chi.URLParam(r, "accountID"), categories)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toProjectionResponse(f))
}
