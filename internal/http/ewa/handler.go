package ewa

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
)

type Handler struct {
	engine *account.Engine
}

func NewHandler(engine *account.Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes registers the EWA routes. Approving and resolving a request is
// reserved to employers and the payroll integration.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/balance", h.balance)
	r.Get("/withdrawals", h.list)
	r.Post("/withdrawals", h.request)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePrivileged)
		r.Post("/withdrawals/{withdrawalID}/approve", h.approve)
		r.Post("/withdrawals/{withdrawalID}/confirm", h.confirm)
		r.Post("/withdrawals/{withdrawalID}/reject", h.reject)
	})
}

type balanceResponse struct {
	PeriodStart  time.Time   `json:"period_start"`
	PeriodEnd    time.Time   `json:"period_end"`
	DaysWorked   int         `json:"days_worked"`
	DaysInPeriod int         `json:"days_in_period"`
	Earned       json.Number `json:"earned"`
	Reserved     json.Number `json:"reserved"`
	Available    json.Number `json:"available"`
	Fee          json.Number `json:"fee"`
	Currency     string      `json:"currency"`
}

type withdrawalResponse struct {
	ID                   uuid.UUID   `json:"id"`
	Amount               json.Number `json:"amount"`
	Fee                  json.Number `json:"fee"`
	NetAmount            json.Number `json:"net_amount"`
	Status               ewa.Status  `json:"status"`
	Reason               string      `json:"reason,omitempty"`
	RequestedAt          time.Time   `json:"requested_at"`
	EstimatedArrival     time.Time   `json:"estimated_arrival"`
	PayrollDeductionDate time.Time   `json:"payroll_deduction_date"`
	ResolvedAt           *time.Time  `json:"resolved_at,omitempty"`
}

type resolveResponse struct {
	Withdrawal withdrawalResponse `json:"withdrawal"`
	Applied    bool               `json:"applied"`
}

func toResponse(r ewa.Request) withdrawalResponse {
	return withdrawalResponse{
		ID:                   r.ID,
		Amount:               respond.Money(r.Amount),
		Fee:                  respond.Money(r.Fee),
		NetAmount:            respond.Money(r.NetAmount),
		Status:               r.Status,
		Reason:               r.Reason,
		RequestedAt:          r.RequestedAt,
		EstimatedArrival:     r.EstimatedArrival,
		PayrollDeductionDate: r.PayrollDeductionDate,
		ResolvedAt:           r.ResolvedAt,
	}
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.Liquidity(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, balanceResponse{
		PeriodStart:  l.Period.Start,
		PeriodEnd:    l.Period.End,
		DaysWorked:   l.Period.DaysWorked,
		DaysInPeriod: l.Period.DaysInPeriod,
		Earned:       respond.Money(l.Balance.Earned),
		Reserved:     respond.Money(l.Balance.Reserved),
		Available:    respond.Money(l.Balance.Available),
		Fee:          respond.Money(l.Fee),
		Currency:     h.engine.Settings().Currency,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requests, err := h.engine.Withdrawals(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]withdrawalResponse, len(requests))
	for i, req := range requests {
		resp[i] = toResponse(req)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type withdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.engine.RequestWithdrawal(r.Context(), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(out))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	out, err := h.engine.ApproveWithdrawal(r.Context(), chi.URLParam(r, "accountID"), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(out))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, ewa.Outcome{Success: true})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Reason == "" {
		req.Reason = "rejected by payroll"
	}

	h.complete(w, r, ewa.Outcome{Reason: req.Reason})
}

// complete is idempotent: resolving an already resolved request answers 200
// with applied=false.
func (h *Handler) complete(w http.ResponseWriter, r *http.Request, o ewa.Outcome) {
	id, err := uuid.Parse(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	out, applied, err := h.engine.CompleteWithdrawal(r.Context(), chi.URLParam(r, "accountID"), id, o)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, resolveResponse{Withdrawal: toResponse(out), Applied: applied})
}
