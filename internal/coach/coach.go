// Package coach produces the short coaching line shown on the dashboard. The
// text itself comes from an external service; Rules is the local fallback.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/scoring"
)

// Insight is what the coach gets to see about an account.
type Insight struct {
	FWIScore     int               `json:"fwi_score"`
	Breakdown    scoring.Breakdown `json:"fwi_breakdown"`
	SafeToSpend  decimal.Decimal   `json:"safe_to_spend"`
	Currency     string            `json:"currency"`
	BudgetStatus budget.Status     `json:"budget_status"`
	Streak       int               `json:"streak"`
	Level        string            `json:"level"`
}

type Coach interface {
	Message(ctx context.Context, in Insight) (string, error)
}

// Rules picks a message from the weakest signal of the score.
type Rules struct{}

func (Rules) Message(_ context.Context, in Insight) (string, error) {
	switch {
	case in.BudgetStatus == budget.StatusExceedingRisk:
		return fmt.Sprintf("Vas camino a pasarte del presupuesto. Hoy puedes gastar hasta %s %s.",
			in.Currency, in.SafeToSpend.StringFixed(2)), nil
	case in.Breakdown.FormalScore < 50:
		return "Pide boleta o factura: tus compras formales suben tu puntaje y te devuelven IGV.", nil
	case in.Streak == 0:
		return "Registra un gasto hoy para empezar tu racha.", nil
	case in.Breakdown.BalanceScore < 50:
		return "Tu presupuesto se está agotando. Revisa tus categorías con más gasto.", nil
	case in.FWIScore >= 80:
		return fmt.Sprintf("¡Excelente! Tu bienestar financiero está en %d. Sigue así, %s.", in.FWIScore, in.Level), nil
	default:
		return fmt.Sprintf("Llevas %d días seguidos registrando. Cada día suma a tu puntaje.", in.Streak), nil
	}
}

type fallback struct {
	primary   Coach
	secondary Coach
	logger    *slog.Logger
}

// WithFallback returns a Coach that asks primary first and degrades to
// secondary when it fails or answers with nothing.
func WithFallback(primary, secondary Coach, logger *slog.Logger) Coach {
	return &fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *fallback) Message(ctx context.Context, in Insight) (string, error) {
	msg, err := f.primary.Message(ctx, in)
	if err == nil && strings.TrimSpace(msg) != "" {
		return msg, nil
	}

	if err != nil {
		f.logger.Warn("coach unavailable, using fallback", "error", err)
	}

	return f.secondary.Message(ctx, in)
}
