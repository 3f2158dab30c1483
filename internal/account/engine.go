package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	"github.com/MrJamesThe3rd/treevu/internal/kpi"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

// TransferQueue receives withdrawals that are ready to be paid out.
type TransferQueue interface {
	Enqueue(accountID string, r ewa.Request) bool
}

// Settings are the engine-wide money settings.
type Settings struct {
	EWA                     ewa.Policy
	GroupShare              decimal.Decimal
	Currency                string
	DefaultPersonalLimitPct decimal.Decimal
}

func DefaultSettings() Settings {
	return Settings{
		EWA:                     ewa.DefaultPolicy(),
		GroupShare:              budget.DefaultGroupShare,
		Currency:                "PEN",
		DefaultPersonalLimitPct: decimal.RequireFromString("0.5"),
	}
}

// Engine runs account operations. Every operation reads the account from
// the repository; writes re-read it inside the transaction that holds the
// account lock, so writers in other processes are never overwritten.
// Operations on the same account are serialised in process as well.
type Engine struct {
	repo     Repository
	game     *gamification.Engine
	catalog  *merchant.Catalog
	kpi      *kpi.Aggregate
	settings Settings
	bus      *Bus
	queue    TransferQueue
	clock    func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// slot serialises in-process callers of one account. It lives while refs > 0.
type slot struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Engine)

func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

func WithGamification(g *gamification.Engine) Option {
	return func(e *Engine) { e.game = g }
}

func WithCatalog(c *merchant.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func WithKPI(a *kpi.Aggregate) Option {
	return func(e *Engine) { e.kpi = a }
}

func WithBus(b *Bus) Option {
	return func(e *Engine) { e.bus = b }
}

func WithTransferQueue(q TransferQueue) Option {
	return func(e *Engine) { e.queue = q }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(repo Repository, opts ...Option) (*Engine, error) {
	e := &Engine{
		repo:     repo,
		game:     gamification.NewEngine(),
		kpi:      kpi.NewAggregate(),
		settings: DefaultSettings(),
		bus:      NewBus(),
		clock:    time.Now,
		logger:   slog.Default(),
		slots:    make(map[string]*slot),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.catalog == nil {
		c, err := merchant.NewCatalog(merchant.DefaultOffers)
		if err != nil {
			return nil, fmt.Errorf("building default catalog: %w", err)
		}

		e.catalog = c
	}

	return e, nil
}

func (e *Engine) Bus() *Bus {
	return e.bus
}

func (e *Engine) Catalog() *merchant.Catalog {
	return e.catalog
}

func (e *Engine) KPI() *kpi.Aggregate {
	return e.kpi
}

func (e *Engine) Settings() Settings {
	return e.settings
}

func (e *Engine) Gamification() *gamification.Engine {
	return e.game
}

// errNoChange aborts a mutation without reporting an error.
var errNoChange = errors.New("no change")

// change collects what a mutation wants to happen once it is durable.
type change struct {
	events   []Event
	onCommit []func()
	onAbort  []func()
}

func (c *change) emit(ev Event) {
	c.events = append(c.events, ev)
}

// lock takes the in-process lock of an account. The returned func releases
// it and drops the slot once nobody else waits on it.
func (e *Engine) lock(accountID string) func() {
	e.mu.Lock()

	s, ok := e.slots[accountID]
	if !ok {
		s = &slot{}
		e.slots[accountID] = s
	}

	s.refs++
	e.mu.Unlock()

	s.mu.Lock()

	return func() {
		s.mu.Unlock()

		e.mu.Lock()
		defer e.mu.Unlock()

		if s.refs--; s.refs == 0 {
			delete(e.slots, accountID)
		}
	}
}

type loader func(ctx context.Context, accountID string) (*Snapshot, error)

func (e *Engine) load(ctx context.Context, load loader, accountID string) (*state, error) {
	snap, err := load(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.kpi.Forget(accountID)
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	st := newState(snap)
	e.kpi.ObserveFWI(accountID, st.profile.FWIScore)

	return st, nil
}

// view runs fn against the committed state of an account.
func (e *Engine) view(ctx context.Context, accountID string, fn func(st *state) error) error {
	unlock := e.lock(accountID)
	defer unlock()

	st, err := e.load(ctx, e.repo.Load, accountID)
	if err != nil {
		return err
	}

	return fn(st)
}

// mutate applies fn to the account state read inside one repository
// transaction. Nothing outside the transaction changes unless it commits.
func (e *Engine) mutate(ctx context.Context, accountID string, fn func(next *state, tx Tx, c *change) error) error {
	unlock := e.lock(accountID)
	defer unlock()

	c := &change{}

	err := e.commit(ctx, accountID, func(tx Tx) error {
		next, err := e.load(ctx, tx.Load, accountID)
		if err != nil {
			return err
		}

		return fn(next, tx, c)
	})
	if err != nil {
		for _, undo := range c.onAbort {
			undo()
		}

		if errors.Is(err, errNoChange) {
			return nil
		}

		return err
	}

	for _, f := range c.onCommit {
		f()
	}

	e.bus.Publish(c.events...)

	return nil
}

func (e *Engine) commit(ctx context.Context, accountID string, fn func(Tx) error) error {
	tx, err := e.repo.Begin(ctx, accountID)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil {
			e.logger.Debug("rollback after commit", "account_id", accountID, "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Open creates a new account.
func (e *Engine) Open(ctx context.Context, params OpenParams) (Profile, error) {
	if params.AccountID == "" {
		return Profile{}, ErrInvalidSettings
	}

	personal := e.settings.DefaultPersonalLimitPct
	if params.PersonalLimitPct != nil {
		personal = *params.PersonalLimitPct
	}

	if err := validateSettings(params.MonthlyIncome, params.MonthlyBudget, personal); err != nil {
		return Profile{}, err
	}

	unlock := e.lock(params.AccountID)
	defer unlock()

	now := e.clock()
	st := newState(&Snapshot{Profile: Profile{
		AccountID:        params.AccountID,
		Level:            e.game.Levels().For(0).Number,
		MonthlyIncome:    params.MonthlyIncome,
		MonthlyBudget:    params.MonthlyBudget,
		PersonalLimitPct: personal,
		CreatedAt:        now,
		UpdatedAt:        now,
	}})
	st.rescore(now)

	err := e.commit(ctx, params.AccountID, func(tx Tx) error {
		switch _, err := tx.Load(ctx, params.AccountID); {
		case err == nil:
			return ErrExists
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("loading account %s: %w", params.AccountID, err)
		}

		if err := tx.CreateProfile(ctx, &st.profile); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	e.kpi.ObserveFWI(params.AccountID, st.profile.FWIScore)

	return st.profile, nil
}

// Profile returns the committed profile of an account.
func (e *Engine) Profile(ctx context.Context, accountID string) (Profile, error) {
	var p Profile

	err := e.view(ctx, accountID, func(st *state) error {
		p = st.profile
		return nil
	})

	return p, err
}

// Snapshot returns a copy of the full state of an account.
func (e *Engine) Snapshot(ctx context.Context, accountID string) (Snapshot, error) {
	var snap Snapshot

	err := e.view(ctx, accountID, func(st *state) error {
		snap = st.snapshot()
		return nil
	})

	return snap, err
}

// Snapshots returns every known account, ordered as the repository lists
// them.
func (e *Engine) Snapshots(ctx context.Context) ([]Snapshot, error) {
	ids, err := e.repo.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	out := make([]Snapshot, 0, len(ids))

	for _, id := range ids {
		snap, err := e.Snapshot(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return nil, err
		}

		out = append(out, snap)
	}

	return out, nil
}

// RestoreKPI rebuilds the employer aggregate from the stored accounts, so a
// fresh process reports the same figures as the one that recorded them.
func (e *Engine) RestoreKPI(ctx context.Context) error {
	snaps, err := e.Snapshots(ctx)
	if err != nil {
		return err
	}

	formal := decimal.Zero

	for _, snap := range snaps {
		for _, r := range snap.Expenses {
			if r.IsFormal {
				formal = formal.Add(r.Amount)
			}
		}
	}

	e.kpi.Restore(formal)

	return nil
}

// UpdateSettings changes income, budget or personal limit and rescores.
func (e *Engine) UpdateSettings(ctx context.Context, accountID string, patch SettingsPatch) (Profile, error) {
	var out Profile

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, c *change) error {
		p := &next.profile

		if patch.MonthlyIncome != nil {
			p.MonthlyIncome = *patch.MonthlyIncome
		}

		if patch.MonthlyBudget != nil {
			p.MonthlyBudget = *patch.MonthlyBudget
		}

		if patch.PersonalLimitPct != nil {
			p.PersonalLimitPct = *patch.PersonalLimitPct
		}

		if err := validateSettings(p.MonthlyIncome, p.MonthlyBudget, p.PersonalLimitPct); err != nil {
			return err
		}

		e.rescore(next, c)

		return e.saveProfile(ctx, tx, next, &out)
	})

	return out, err
}

// rescore recomputes the FWI and schedules the aggregate update.
func (e *Engine) rescore(next *state, c *change) {
	before := next.profile.FWIScore
	next.rescore(e.clock())

	id, score := next.profile.AccountID, next.profile.FWIScore
	c.onCommit = append(c.onCommit, func() { e.kpi.ObserveFWI(id, score) })

	if score != before {
		c.emit(Event{Type: EventScoreChanged, AccountID: id, At: e.clock(), Score: score})
	}
}

func (e *Engine) saveProfile(ctx context.Context, tx Tx, next *state, out *Profile) error {
	next.profile.UpdatedAt = e.clock()

	if err := tx.SaveProfile(ctx, &next.profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	if out != nil {
		*out = next.profile
	}

	return nil
}

func (e *Engine) levelUp(c *change, accountID string, lu *gamification.LevelUp) {
	if lu == nil {
		return
	}

	c.emit(Event{Type: EventLevelUp, AccountID: accountID, At: e.clock(), LevelUp: lu})
}
