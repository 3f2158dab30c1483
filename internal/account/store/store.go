package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectProfileColumns = `
	id, points_balance, lifetime_points, level, streak_count, last_activity_date,
	monthly_income, monthly_budget, personal_limit_pct,
	fwi_score, fwi_formal, fwi_balance, fwi_development, created_at, updated_at
`

// scanProfile expects the columns of selectProfileColumns.
func scanProfile(s scanner) (*account.Profile, error) {
	var (
		p            account.Profile
		lastActivity sql.NullTime
	)

	if err := s.Scan(
		&p.AccountID, &p.PointsBalance, &p.LifetimePoints, &p.Level, &p.StreakCount, &lastActivity,
		&p.MonthlyIncome, &p.MonthlyBudget, &p.PersonalLimitPct,
		&p.FWIScore, &p.FWIBreakdown.FormalScore, &p.FWIBreakdown.BalanceScore, &p.FWIBreakdown.DevScore,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastActivity.Valid {
		p.LastActivityDate = lastActivity.Time
	}

	return &p, nil
}

const selectExpenseColumns = `
	id, merchant, amount, date, category, is_formal, igv, lost_savings,
	points_earned, source, confidence, created_at
`

func scanExpense(s scanner) (*expense.Record, error) {
	var (
		r                expense.Record
		category, source string
	)

	if err := s.Scan(
		&r.ID, &r.Merchant, &r.Amount, &r.Date, &category, &r.IsFormal, &r.IGV, &r.LostSavings,
		&r.PointsEarned, &source, &r.Confidence, &r.CreatedAt,
	); err != nil {
		return nil, err
	}

	r.Category = expense.Category(category)
	r.Source = expense.Source(source)

	return &r, nil
}

const selectWithdrawalColumns = `
	id, amount, fee, net_amount, status, reason, requested_at, processing_since,
	estimated_arrival, payroll_deduction_date, resolved_at
`

func scanWithdrawal(s scanner) (*ewa.Request, error) {
	var (
		r          ewa.Request
		status     string
		processing sql.NullTime
		resolved   sql.NullTime
	)

	if err := s.Scan(
		&r.ID, &r.Amount, &r.Fee, &r.NetAmount, &status, &r.Reason, &r.RequestedAt, &processing,
		&r.EstimatedArrival, &r.PayrollDeductionDate, &resolved,
	); err != nil {
		return nil, err
	}

	r.Status = ewa.Status(status)
	r.ProcessingSince = processing.Time

	if resolved.Valid {
		r.ResolvedAt = &resolved.Time
	}

	return &r, nil
}

func scanRedemption(s scanner) (*merchant.Redemption, error) {
	var r merchant.Redemption

	if err := s.Scan(&r.ID, &r.OfferID, &r.CostPoints, &r.RedeemedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

// Load reads the profile and everything hanging off it in one read-only
// transaction so the snapshot is consistent.
func (s *Store) Load(ctx context.Context, accountID string) (*account.Snapshot, error) {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning load tx: %w", err)
	}
	defer dbTx.Rollback()

	snap, err := loadSnapshot(ctx, dbTx, accountID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing load tx: %w", err)
	}

	return snap, nil
}

func loadSnapshot(ctx context.Context, q querier, accountID string) (*account.Snapshot, error) {
	p, err := scanProfile(q.QueryRowContext(ctx,
		`SELECT `+selectProfileColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("getting profile: %w", err)
	}

	snap := &account.Snapshot{Profile: *p}

	snap.Expenses, err = list(ctx, q, scanExpense,
		`SELECT `+selectExpenseColumns+` FROM expenses WHERE account_id = $1 ORDER BY created_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	snap.Withdrawals, err = list(ctx, q, scanWithdrawal,
		`SELECT `+selectWithdrawalColumns+` FROM withdrawals WHERE account_id = $1 ORDER BY requested_at ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing withdrawals: %w", err)
	}

	snap.Redemptions, err = list(ctx, q, scanRedemption,
		`SELECT id, offer_id, cost_points, redeemed_at FROM redemptions WHERE account_id = $1 ORDER BY redeemed_at ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing redemptions: %w", err)
	}

	return snap, nil
}

func list[T any](ctx context.Context, q querier, scan func(scanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return out, nil
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	return ids, nil
}

// RedemptionCounts returns how many times each offer has been redeemed, used
// to seed the catalog counters at startup.
func (s *Store) RedemptionCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT offer_id, COUNT(*) FROM redemptions GROUP BY offer_id`)
	if err != nil {
		return nil, fmt.Errorf("counting redemptions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)

	for rows.Next() {
		var (
			id string
			n  int64
		)

		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning redemption count: %w", err)
		}

		counts[id] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating redemption counts: %w", err)
	}

	return counts, nil
}

func accountLockKey(accountID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("account:"))
	h.Write([]byte(accountID))

	return int64(h.Sum64())
}

type accountTx struct {
	tx *sql.Tx
}

// Begin opens a transaction holding the account's advisory lock until it
// ends, so writers from other processes queue behind it.
func (s *Store) Begin(ctx context.Context, accountID string) (account.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning account tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", accountLockKey(accountID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring account lock: %w", err)
	}

	return &accountTx{tx: dbTx}, nil
}

// Load reads the account inside the transaction, after the advisory lock is
// held, so it sees every write committed by earlier lock holders.
func (atx *accountTx) Load(ctx context.Context, accountID string) (*account.Snapshot, error) {
	return loadSnapshot(ctx, atx.tx, accountID)
}

func (atx *accountTx) Commit() error   { return atx.tx.Commit() }
func (atx *accountTx) Rollback() error { return atx.tx.Rollback() }

func nullTime(p *account.Profile) sql.NullTime {
	return sql.NullTime{Time: p.LastActivityDate, Valid: !p.LastActivityDate.IsZero()}
}

func (atx *accountTx) CreateProfile(ctx context.Context, p *account.Profile) error {
	query := `
		INSERT INTO accounts (
			id, points_balance, lifetime_points, level, streak_count, last_activity_date,
			monthly_income, monthly_budget, personal_limit_pct,
			fwi_score, fwi_formal, fwi_balance, fwi_development, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	res, err := atx.tx.ExecContext(ctx, query,
		p.AccountID, p.PointsBalance, p.LifetimePoints, p.Level, p.StreakCount, nullTime(p),
		p.MonthlyIncome, p.MonthlyBudget, p.PersonalLimitPct,
		p.FWIScore, p.FWIBreakdown.FormalScore, p.FWIBreakdown.BalanceScore, p.FWIBreakdown.DevScore,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	if n == 0 {
		return account.ErrExists
	}

	return nil
}

func (atx *accountTx) SaveProfile(ctx context.Context, p *account.Profile) error {
	query := `
		UPDATE accounts
		SET points_balance = $1, lifetime_points = $2, level = $3, streak_count = $4, last_activity_date = $5,
			monthly_income = $6, monthly_budget = $7, personal_limit_pct = $8,
			fwi_score = $9, fwi_formal = $10, fwi_balance = $11, fwi_development = $12, updated_at = $13
		WHERE id = $14
	`

	res, err := atx.tx.ExecContext(ctx, query,
		p.PointsBalance, p.LifetimePoints, p.Level, p.StreakCount, nullTime(p),
		p.MonthlyIncome, p.MonthlyBudget, p.PersonalLimitPct,
		p.FWIScore, p.FWIBreakdown.FormalScore, p.FWIBreakdown.BalanceScore, p.FWIBreakdown.DevScore,
		p.UpdatedAt, p.AccountID,
	)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}

	return nil
}

func (atx *accountTx) SaveExpense(ctx context.Context, accountID string, r *expense.Record) error {
	query := `
		INSERT INTO expenses (
			id, account_id, merchant, amount, date, category, is_formal, igv, lost_savings,
			points_earned, source, confidence, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			merchant = EXCLUDED.merchant, amount = EXCLUDED.amount, date = EXCLUDED.date,
			category = EXCLUDED.category, is_formal = EXCLUDED.is_formal, igv = EXCLUDED.igv,
			lost_savings = EXCLUDED.lost_savings, points_earned = EXCLUDED.points_earned
	`

	_, err := atx.tx.ExecContext(ctx, query,
		r.ID, accountID, r.Merchant, r.Amount, r.Date, string(r.Category), r.IsFormal, r.IGV, r.LostSavings,
		r.PointsEarned, string(r.Source), r.Confidence, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving expense: %w", err)
	}

	return nil
}

func (atx *accountTx) DeleteExpense(ctx context.Context, accountID string, id uuid.UUID) error {
	_, err := atx.tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}

	return nil
}

func (atx *accountTx) SaveWithdrawal(ctx context.Context, accountID string, r *ewa.Request) error {
	query := `
		INSERT INTO withdrawals (
			id, account_id, amount, fee, net_amount, status, reason, requested_at, processing_since,
			estimated_arrival, payroll_deduction_date, resolved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, reason = EXCLUDED.reason,
			processing_since = EXCLUDED.processing_since, resolved_at = EXCLUDED.resolved_at
	`

	var resolved sql.NullTime
	if r.ResolvedAt != nil {
		resolved = sql.NullTime{Time: *r.ResolvedAt, Valid: true}
	}

	processing := sql.NullTime{Time: r.ProcessingSince, Valid: !r.ProcessingSince.IsZero()}

	_, err := atx.tx.ExecContext(ctx, query,
		r.ID, accountID, r.Amount, r.Fee, r.NetAmount, string(r.Status), r.Reason, r.RequestedAt, processing,
		r.EstimatedArrival, r.PayrollDeductionDate, resolved,
	)
	if err != nil {
		return fmt.Errorf("saving withdrawal: %w", err)
	}

	return nil
}

func (atx *accountTx) SaveRedemption(ctx context.Context, accountID string, r *merchant.Redemption) error {
	_, err := atx.tx.ExecContext(ctx,
		`INSERT INTO redemptions (id, account_id, offer_id, cost_points, redeemed_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, accountID, r.OfferID, r.CostPoints, r.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("saving redemption: %w", err)
	}

	return nil
}
