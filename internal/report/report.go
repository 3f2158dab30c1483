// Package report renders the per-role comma-separated exports: the
// employee's expense ledger, the employer's KPI summary and the merchant
// offer summary. Column order is fixed.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/kpi"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

var (
	ErrUnknownRole     = errors.New("unknown report role")
	ErrAccountRequired = errors.New("employee report requires an account id")
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleEmployer Role = "employer"
	RoleMerchant Role = "merchant"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleEmployer, RoleMerchant:
		return r, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

var (
	EmployeeColumns = []string{"date", "merchant", "category", "amount", "is_formal", "igv", "lost_savings", "points_earned", "source"}
	EmployerColumns = []string{"metric", "value"}
	MerchantColumns = []string{"offer_id", "merchant", "title", "cost_points", "redemptions", "points_redeemed"}
)

// Source is the read side of the account engine the reports draw from.
type Source interface {
	Expenses(ctx context.Context, accountID string) ([]*expense.Record, error)
	Snapshots(ctx context.Context) ([]account.Snapshot, error)
	KPI() *kpi.Aggregate
	Catalog() *merchant.Catalog
}

type Service struct {
	source Source
}

func NewService(source Source) *Service {
	return &Service{source: source}
}

// Write renders the report for role to w. accountID is only used by the
// employee report.
func (s *Service) Write(ctx context.Context, w io.Writer, role Role, accountID string) error {
	switch role {
	case RoleEmployee:
		if accountID == "" {
			return ErrAccountRequired
		}

		records, err := s.source.Expenses(ctx, accountID)
		if err != nil {
			return fmt.Errorf("listing expenses: %w", err)
		}

		return WriteEmployee(w, records)

	case RoleEmployer:
		snaps, err := s.source.Snapshots(ctx)
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}

		return WriteEmployer(w, s.source.KPI().Snapshot(), snaps)

	case RoleMerchant:
		return WriteMerchant(w, s.source.Catalog().List())
	}

	return fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

func WriteEmployee(w io.Writer, records []*expense.Record) error {
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		rows = append(rows, []string{
			r.Date.Format(time.DateOnly),
			r.Merchant,
			string(r.Category),
			money(r.Amount),
			strconv.FormatBool(r.IsFormal),
			money(r.IGV),
			money(r.LostSavings),
			strconv.FormatInt(r.PointsEarned, 10),
			string(r.Source),
		})
	}

	return write(w, EmployeeColumns, rows)
}

// WriteEmployer renders the company KPI aggregate plus totals computed over
// every account snapshot.
func WriteEmployer(w io.Writer, agg kpi.Snapshot, snaps []account.Snapshot) error {
	formal, informal, igv, disbursed := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero

	var pending int

	for _, s := range snaps {
		for _, e := range s.Expenses {
			if e.IsFormal {
				formal = formal.Add(e.Amount)
				igv = igv.Add(e.IGV)
			} else {
				informal = informal.Add(e.Amount)
			}
		}

		for _, r := range s.Withdrawals {
			switch r.Status {
			case ewa.StatusDisbursed:
				disbursed = disbursed.Add(r.Amount)
			case ewa.StatusPendingApproval, ewa.StatusProcessingTransfer:
				pending++
			}
		}
	}

	rows := [][]string{
		{"accounts", strconv.Itoa(len(snaps))},
		{"avg_fwi", strconv.FormatFloat(agg.AvgFWI, 'f', 2, 64)},
		{"flight_risk_score", strconv.FormatFloat(agg.FlightRiskScore, 'f', 2, 64)},
		{"retention_savings", money(agg.RetentionSavings)},
		{"formal_spend", money(formal)},
		{"informal_spend", money(informal)},
		{"igv_recovered", money(igv)},
		{"ewa_disbursed", money(disbursed)},
		{"ewa_in_flight", strconv.Itoa(pending)},
	}

	return write(w, EmployerColumns, rows)
}

func WriteMerchant(w io.Writer, offers []*merchant.Offer) error {
	rows := make([][]string, 0, len(offers))

	for _, o := range offers {
		n := o.Redemptions()

		rows = append(rows, []string{
			o.ID,
			o.Merchant,
			o.Title,
			strconv.FormatInt(o.CostPoints, 10),
			strconv.FormatInt(n, 10),
			strconv.FormatInt(n*o.CostPoints, 10),
		})
	}

	return write(w, MerchantColumns, rows)
}

func write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}

	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
