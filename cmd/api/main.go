package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/treevu/internal/app"
	"github.com/MrJamesThe3rd/treevu/internal/config"
	treevuHttp "github.com/MrJamesThe3rd/treevu/internal/http"
	accountHandler "github.com/MrJamesThe3rd/treevu/internal/http/account"
	ewaHandler "github.com/MrJamesThe3rd/treevu/internal/http/ewa"
	expenseHandler "github.com/MrJamesThe3rd/treevu/internal/http/expense"
	merchantHandler "github.com/MrJamesThe3rd/treevu/internal/http/merchant"
	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	reportHandler "github.com/MrJamesThe3rd/treevu/internal/http/report"
	"github.com/MrJamesThe3rd/treevu/internal/importer"
	"github.com/MrJamesThe3rd/treevu/internal/logging"
	"github.com/MrJamesThe3rd/treevu/internal/metrics"
	"github.com/MrJamesThe3rd/treevu/internal/report"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeRepo()

	a, err := app.New(ctx, cfg, logger, repo)
	if err != nil {
		return err
	}

	workers, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	a.Start(workers)

	m := metrics.New(metrics.Sources{
		KPI:            a.Engine.KPI(),
		PayrollPending: a.Dispatcher.Pending,
		IncludeRuntime: true,
	})

	events, unsubscribe := a.Engine.Bus().Subscribe(256)
	defer unsubscribe()

	go m.Consume(ctx, events)

	opts := treevuHttp.Options{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Server.Timeout,
		Metrics:        m,
	}

	var sweeps []func(context.Context)

	if cfg.Auth.JWTSecret != "" {
		opts.Auth = middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, logger)
	} else {
		logger.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	if cfg.RateLimit.RPS > 0 {
		opts.Limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
		sweeps = append(sweeps, func(context.Context) { opts.Limiter.Sweep(time.Now()) })
	}

	scheduler, err := a.Schedule(ctx, sweeps...)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	var (
		accountH  = accountHandler.NewHandler(a.Engine, a.Coach, logger)
		expenseH  = expenseHandler.NewHandler(a.Engine, importer.NewParser())
		ewaH      = ewaHandler.NewHandler(a.Engine)
		merchantH = merchantHandler.NewHandler(a.Engine)
		reportH   = reportHandler.NewHandler(report.NewService(a.Engine), a.Engine.KPI())
	)

	router := treevuHttp.New(treevuHttp.Handlers{
		Accounts: accountH,
		Expenses: expenseH,
		EWA:      ewaH,
		Merchant: merchantH,
		Reports:  reportH,
	}, opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "port", srv.Addr, "store", cfg.DB.Driver)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	a.Dispatcher.Stop()

	return nil
}
