// Package memstore is an in-memory account.Repository for local runs and
// tests. Writes made through a Tx are staged and only become visible on
// Commit; Begin serialises transactions per account.
package memstore

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*account.Snapshot

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*account.Snapshot),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Seed stores snaps as if they had been committed.
func (s *MemoryStore) Seed(snaps ...*account.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		s.accounts[snap.Profile.AccountID] = copySnapshot(snap)
	}
}

func (s *MemoryStore) Load(_ context.Context, accountID string) (*account.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrNotFound
	}

	return copySnapshot(snap), nil
}

func (s *MemoryStore) ListAccountIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

// RedemptionCounts returns how many times each offer has been redeemed.
func (s *MemoryStore) RedemptionCounts(context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)

	for _, snap := range s.accounts {
		for _, r := range snap.Redemptions {
			counts[r.OfferID]++
		}
	}

	return counts, nil
}

func (s *MemoryStore) lock(accountID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}

	return l
}

func (s *MemoryStore) Begin(ctx context.Context, accountID string) (account.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := s.lock(accountID)
	l.Lock()

	return &tx{store: s, accountID: accountID, unlock: l.Unlock}, nil
}

type tx struct {
	store     *MemoryStore
	accountID string
	unlock    func()
	done      bool
	created   bool
	ops       []func(*account.Snapshot) *account.Snapshot
}

func (t *tx) exists() bool {
	if t.created {
		return true
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	_, ok := t.store.accounts[t.accountID]

	return ok
}

func (t *tx) stage(op func(*account.Snapshot) *account.Snapshot) error {
	if t.done {
		return sql.ErrTxDone
	}

	if !t.exists() {
		return account.ErrNotFound
	}

	t.ops = append(t.ops, op)

	return nil
}

// Load returns the committed snapshot with the writes staged so far applied.
func (t *tx) Load(_ context.Context, accountID string) (*account.Snapshot, error) {
	if t.done {
		return nil, sql.ErrTxDone
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var snap *account.Snapshot
	if cur, ok := t.store.accounts[accountID]; ok {
		snap = copySnapshot(cur)
	}

	if accountID == t.accountID {
		for _, op := range t.ops {
			snap = op(snap)
		}
	}

	if snap == nil {
		return nil, account.ErrNotFound
	}

	return snap, nil
}

func (t *tx) CreateProfile(_ context.Context, p *account.Profile) error {
	if t.exists() {
		return account.ErrExists
	}

	if t.done {
		return sql.ErrTxDone
	}

	profile := *p

	t.ops = append(t.ops, func(*account.Snapshot) *account.Snapshot {
		return &account.Snapshot{Profile: profile}
	})
	t.created = true

	return nil
}

func (t *tx) SaveProfile(_ context.Context, p *account.Profile) error {
	profile := *p

	return t.stage(func(snap *account.Snapshot) *account.Snapshot {
		snap.Profile = profile
		return snap
	})
}

func (t *tx) SaveExpense(_ context.Context, _ string, r *expense.Record) error {
	rec := new(*r)

	return t.stage(func(snap *account.Snapshot) *account.Snapshot {
		if i := slices.IndexFunc(snap.Expenses, func(e *expense.Record) bool { return e.ID == rec.ID }); i >= 0 {
			snap.Expenses[i] = rec
		} else {
			snap.Expenses = append(snap.Expenses, rec)
		}

		return snap
	})
}

func (t *tx) DeleteExpense(_ context.Context, _ string, id uuid.UUID) error {
	return t.stage(func(snap *account.Snapshot) *account.Snapshot {
		snap.Expenses = slices.DeleteFunc(snap.Expenses, func(e *expense.Record) bool { return e.ID == id })
		return snap
	})
}

func (t *tx) SaveWithdrawal(_ context.Context, _ string, r *ewa.Request) error {
	req := new(*r)

	return t.stage(func(snap *account.Snapshot) *account.Snapshot {
		if i := slices.IndexFunc(snap.Withdrawals, func(w *ewa.Request) bool { return w.ID == req.ID }); i >= 0 {
			snap.Withdrawals[i] = req
		} else {
			snap.Withdrawals = append(snap.Withdrawals, req)
		}

		return snap
	})
}

func (t *tx) SaveRedemption(_ context.Context, _ string, r *merchant.Redemption) error {
	red := new(*r)

	return t.stage(func(snap *account.Snapshot) *account.Snapshot {
		snap.Redemptions = append(snap.Redemptions, red)
		return snap
	})
}

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}

	t.done = true
	defer t.unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var snap *account.Snapshot
	if cur, ok := t.store.accounts[t.accountID]; ok {
		snap = copySnapshot(cur)
	}

	for _, op := range t.ops {
		snap = op(snap)
	}

	if snap != nil {
		t.store.accounts[t.accountID] = snap
	}

	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}

	t.done = true
	t.unlock()

	return nil
}

func copySnapshot(s *account.Snapshot) *account.Snapshot {
	out := &account.Snapshot{Profile: s.Profile}

	for _, e := range s.Expenses {
		out.Expenses = append(out.Expenses, new(*e))
	}

	for _, w := range s.Withdrawals {
		out.Withdrawals = append(out.Withdrawals, new(*w))
	}

	for _, r := range s.Redemptions {
		out.Redemptions = append(out.Redemptions, new(*r))
	}

	return out
}
