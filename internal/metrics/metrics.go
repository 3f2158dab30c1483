// Package metrics exposes engine and HTTP activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/kpi"
)

const namespace = "treevu"

// Metrics owns a registry; nothing is registered globally so tests can
// build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	events        *prometheus.CounterVec
	expenseAmount *prometheus.CounterVec
	points        prometheus.Counter
	withdrawals   *prometheus.CounterVec
	redemptions   *prometheus.CounterVec
}

// Sources are read at scrape time. Nil fields are skipped.
type Sources struct {
	KPI            *kpi.Aggregate
	PayrollPending func() int
	IncludeRuntime bool
}

func New(src Sources) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Committed engine events by type.",
		}, []string{"type"}),
		expenseAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "expense_amount_total",
			Help:      "Sum of recorded expense amounts, split by formality.",
		}, []string{"formal"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "points_awarded_total",
			Help:      "Points awarded for expenses and skips.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ewa",
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests by resulting status.",
		}, []string{"status"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merchant",
			Name:      "redemptions_total",
			Help:      "Offer redemptions by offer.",
		}, []string{"offer"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.events,
		m.expenseAmount,
		m.points,
		m.withdrawals,
		m.redemptions,
	)

	if src.KPI != nil {
		agg := src.KPI

		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "kpi", Name: "avg_fwi",
				Help: "Average financial wellness index across accounts.",
			}, func() float64 { return agg.Snapshot().AvgFWI }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "kpi", Name: "flight_risk_score",
				Help: "Complement of the average wellness index.",
			}, func() float64 { return agg.Snapshot().FlightRiskScore }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "kpi", Name: "retention_savings",
				Help: "Retention savings credited from formal expenses.",
			}, func() float64 { return agg.Snapshot().RetentionSavings.InexactFloat64() }),
		)
	}

	if src.PayrollPending != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "payroll", Name: "queue_pending",
			Help: "Transfers waiting for a payroll worker.",
		}, func() float64 { return float64(src.PayrollPending()) }))
	}

	if src.IncludeRuntime {
		m.registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe folds one engine event into the counters.
func (m *Metrics) Observe(ev account.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case account.EventExpenseRecorded:
		if ev.Expense != nil {
			m.expenseAmount.WithLabelValues(strconv.FormatBool(ev.Expense.IsFormal)).Add(ev.Expense.Amount.InexactFloat64())
		}

		m.addPoints(ev.Points)

	case account.EventSkipRewarded:
		m.addPoints(ev.Points)

	case account.EventWithdrawalRequested, account.EventWithdrawalApproved, account.EventWithdrawalResolved:
		if ev.Withdrawal != nil {
			m.withdrawals.WithLabelValues(string(ev.Withdrawal.Status)).Inc()
		}

	case account.EventOfferRedeemed:
		if ev.Redemption != nil {
			m.redemptions.WithLabelValues(ev.Redemption.OfferID).Inc()
		}
	}
}

func (m *Metrics) addPoints(p int64) {
	if p > 0 {
		m.points.Add(float64(p))
	}
}

// Consume observes events until the channel closes or ctx is done.
func (m *Metrics) Consume(ctx context.Context, events <-chan account.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			m.Observe(ev)
		}
	}
}

// Instrument records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		method := strings.ToUpper(r.Method)

		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}
