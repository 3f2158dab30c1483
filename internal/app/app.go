// Package app assembles the engine and its collaborators from configuration.
// Both the HTTP server and the admin CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/account/memstore"
	"github.com/MrJamesThe3rd/treevu/internal/account/store"
	"github.com/MrJamesThe3rd/treevu/internal/budget"
	"github.com/MrJamesThe3rd/treevu/internal/coach"
	"github.com/MrJamesThe3rd/treevu/internal/config"
	"github.com/MrJamesThe3rd/treevu/internal/database"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/gamification"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
	"github.com/MrJamesThe3rd/treevu/internal/payroll"
)

// Repository is an account store that can also report redemption counts,
// which seed the catalog counters on start.
type Repository interface {
	account.Repository
	RedemptionCounts(ctx context.Context) (map[string]int64, error)
}

type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Engine     *account.Engine
	Dispatcher *payroll.Dispatcher
	Coach      coach.Coach
}

// OpenRepository connects the configured store and brings the postgres
// schema up to date. The returned close func is never nil.
func OpenRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Repository, func() error, error) {
	if cfg.DB.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		return memstore.New(), func() error { return nil }, nil
	}

	db, err := database.New(ctx, cfg.ConnectionString(), database.Pool{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := database.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	return store.New(db), db.Close, nil
}

// Catalog loads the offer catalog from the configured file, or the default
// offers, with counters restored from the store.
func Catalog(ctx context.Context, path string, repo Repository) (*merchant.Catalog, error) {
	specs := merchant.DefaultOffers

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		defer f.Close()

		if specs, err = merchant.ReadOffers(f); err != nil {
			return nil, err
		}
	}

	counts, err := repo.RedemptionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading redemption counts: %w", err)
	}

	seeded := make([]merchant.OfferSpec, len(specs))
	for i, s := range specs {
		s.Redemptions = counts[s.ID]
		seeded[i] = s
	}

	return merchant.NewCatalog(seeded)
}

// Settings maps the engine configuration onto account settings.
func Settings(cfg *config.Config) account.Settings {
	s := account.DefaultSettings()

	s.EWA = ewa.Policy{
		Fee:               cfg.Engine.Fee,
		EmployerLimitPct:  cfg.Engine.EmployerLimitPct,
		ApprovalThreshold: cfg.Engine.ApprovalThreshold,
		TransferSLA:       cfg.Engine.TransferSLA,
	}
	s.GroupShare = cfg.Engine.GroupShare
	s.Currency = cfg.Engine.Currency
	s.DefaultPersonalLimitPct = cfg.Engine.PersonalLimitPct

	if s.GroupShare.IsZero() {
		s.GroupShare = budget.DefaultGroupShare
	}

	return s
}

// New builds the engine over repo and restores the employer aggregate from
// it. The payroll workers are not started.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, repo Repository) (*App, error) {
	catalog, err := Catalog(ctx, cfg.Engine.CatalogFile, repo)
	if err != nil {
		return nil, err
	}

	dispatcher := payroll.NewDispatcher(payroll.SimulatedGateway{
		Latency:     cfg.Payroll.Latency,
		FailureRate: cfg.Payroll.FailureRate,
	}, cfg.Payroll.Workers, cfg.Payroll.QueueSize, cfg.Payroll.TransferTimeout, logger)

	engine, err := account.NewEngine(repo,
		account.WithSettings(Settings(cfg)),
		account.WithGamification(gamification.NewEngine(gamification.WithSkipBonus(cfg.Engine.SkipBonus))),
		account.WithCatalog(catalog),
		account.WithTransferQueue(dispatcher),
		account.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	if err := engine.RestoreKPI(ctx); err != nil {
		return nil, fmt.Errorf("restoring kpi: %w", err)
	}

	var c coach.Coach = coach.Rules{}
	if cfg.Coach.URL != "" {
		c = coach.WithFallback(coach.NewClient(cfg.Coach.URL, cfg.Coach.Token, cfg.Coach.Timeout), coach.Rules{}, logger)
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Engine:     engine,
		Dispatcher: dispatcher,
		Coach:      c,
	}, nil
}

// Start launches the payroll workers. Dispatcher.Stop drains them.
func (a *App) Start(ctx context.Context) {
	a.Dispatcher.Start(ctx, a.Engine)
}

// Sweep expires withdrawals the payroll provider never answered.
func (a *App) Sweep(ctx context.Context) (int, error) {
	n, err := a.Engine.ExpireWithdrawals(ctx, a.Config.Engine.PayrollTimeout)
	if err != nil {
		return n, fmt.Errorf("expiring withdrawals: %w", err)
	}

	if n > 0 {
		a.Logger.InfoContext(ctx, "expired stale withdrawals", "count", n)
	}

	return n, nil
}

// Schedule registers jobs on the sweep schedule and starts the scheduler.
// The caller stops it.
func (a *App) Schedule(ctx context.Context, jobs ...func(context.Context)) (*cron.Cron, error) {
	c := cron.New()

	run := func() {
		if _, err := a.Sweep(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "sweep failed", "error", err)
		}

		for _, job := range jobs {
			job(ctx)
		}
	}

	if _, err := c.AddFunc(a.Config.Sweep.Schedule, run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", a.Config.Sweep.Schedule, err)
	}

	c.Start()

	return c, nil
}
