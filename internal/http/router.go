package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/treevu/internal/http/account"
	"github.com/MrJamesThe3rd/treevu/internal/http/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/http/expense"
	"github.com/MrJamesThe3rd/treevu/internal/http/merchant"
	edge "github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	"github.com/MrJamesThe3rd/treevu/internal/http/report"
	"github.com/MrJamesThe3rd/treevu/internal/metrics"
)

type Handlers struct {
	Accounts *account.Handler
	Expenses *expense.Handler
	EWA      *ewa.Handler
	Merchant *merchant.Handler
	Reports  *report.Handler
}

// Options configures the cross-cutting middleware. Nil Auth disables token
// verification; nil Limiter and Metrics disable those layers.
type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	Timeout        time.Duration
	Auth           *edge.Authenticator
	Limiter        *edge.RateLimiter
	Metrics        *metrics.Metrics
}

func New(h Handlers, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(opts.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	if opts.Metrics != nil {
		router.Use(opts.Metrics.Instrument)
		router.Handle("/metrics", opts.Metrics.Handler())
	}

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}

		if opts.Auth != nil {
			r.Use(opts.Auth.Handler)
		}

		if opts.Limiter != nil {
			r.Use(opts.Limiter.Handler)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).Group(h.Accounts.Routes)

			r.Route("/{accountID}", func(r chi.Router) {
				r.Use(edge.RequireAccount("accountID"))

				h.Accounts.AccountRoutes(r)
				r.Route("/expenses", h.Expenses.Routes)
				r.Route("/ewa", h.EWA.Routes)
				r.Route("/redemptions", h.Merchant.RedemptionRoutes)
			})
		})

		r.Route("/offers", h.Merchant.Routes)
		r.Route("/reports", h.Reports.Routes)
		r.With(edge.RequirePrivileged).Get("/kpi", h.Reports.KPI)
	})

	return router
}
