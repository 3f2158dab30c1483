package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
	"github.com/MrJamesThe3rd/treevu/internal/kpi"
	"github.com/MrJamesThe3rd/treevu/internal/report"
)

type Handler struct {
	svc *report.Service
	kpi *kpi.Aggregate
}

func NewHandler(svc *report.Service, agg *kpi.Aggregate) *Handler {
	return &Handler{svc: svc, kpi: agg}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{role}", h.export)
}

// export streams the CSV for the role. Employees may only export their own
// ledger; the employer and merchant reports need a privileged token.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	role, err := report.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	accountID := r.URL.Query().Get("account_id")

	if c := middleware.ClaimsFrom(r.Context()); c != nil && !c.Privileged() {
		if role != report.RoleEmployee {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if accountID == "" {
			accountID = c.Subject
		}

		if accountID != c.Subject {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	var buf bytes.Buffer
	if err := h.svc.Write(r.Context(), &buf, role, accountID); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(role)+".csv"))
	_, _ = w.Write(buf.Bytes())
}

type kpiResponse struct {
	Accounts         int         `json:"accounts"`
	AvgFWI           float64     `json:"avg_fwi"`
	FlightRiskScore  float64     `json:"flight_risk_score"`
	RetentionSavings json.Number `json:"retention_savings"`
}

func (h *Handler) KPI(w http.ResponseWriter, _ *http.Request) {
	s := h.kpi.Snapshot()

	respond.JSON(w, http.StatusOK, kpiResponse{
		Accounts:         s.Accounts,
		AvgFWI:           s.AvgFWI,
		FlightRiskScore:  s.FlightRiskScore,
		RetentionSavings: respond.Money(s.RetentionSavings),
	})
}
