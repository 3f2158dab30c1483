// Package payroll is the asynchronous boundary between withdrawal requests
// and the payroll provider that pays them out.
package payroll

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/ewa"
)

var ErrStopped = errors.New("dispatcher stopped")

// Gateway pays a withdrawal out. An error means the outcome is unknown; the
// request stays in processing until it is retried or expires.
type Gateway interface {
	Transfer(ctx context.Context, accountID string, r ewa.Request) (ewa.Outcome, error)
}

// Completer applies an outcome to the request it belongs to. It must be
// idempotent per request id.
type Completer interface {
	CompleteWithdrawal(ctx context.Context, accountID string, id uuid.UUID, o ewa.Outcome) (ewa.Request, bool, error)
}

type Job struct {
	AccountID string
	Request   ewa.Request
}

// Dispatcher runs transfers on a bounded pool of workers.
type Dispatcher struct {
	gateway Gateway
	workers int
	timeout time.Duration
	logger  *slog.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewDispatcher(gateway Gateway, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}

	if queueSize <= 0 {
		queueSize = workers
	}

	return &Dispatcher{
		gateway: gateway,
		workers: workers,
		timeout: timeout,
		logger:  logger,
		jobs:    make(chan Job, queueSize),
	}
}

// Enqueue hands a request to the pool without blocking. It reports false
// when the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(accountID string, r ewa.Request) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return false
	}

	select {
	case d.jobs <- Job{AccountID: accountID, Request: r}:
		return true
	default:
		return false
	}
}

// Pending is the number of queued jobs not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Start launches the workers. They exit once Stop has drained the queue.
func (d *Dispatcher) Start(ctx context.Context, c Completer) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)

		go func() {
			defer d.wg.Done()

			for job := range d.jobs {
				d.process(ctx, c, job)
			}
		}()
	}
}

// Stop refuses new jobs, lets the workers finish the queued ones and waits
// for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, c Completer, job Job) {
	log := d.logger.With("account_id", job.AccountID, "request_id", job.Request.ID)

	if ctx.Err() != nil {
		log.Warn("transfer skipped, dispatcher context done")
		return
	}

	tctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	outcome, err := d.gateway.Transfer(tctx, job.AccountID, job.Request)
	if err != nil {
		log.Warn("transfer outcome unknown", "error", err)
		return
	}

	r, applied, err := c.CompleteWithdrawal(ctx, job.AccountID, job.Request.ID, outcome)
	if err != nil {
		log.Error("failed to complete withdrawal", "error", err)
		return
	}

	if !applied {
		log.Debug("duplicate payroll outcome ignored", "status", r.Status)
		return
	}

	log.Info("withdrawal resolved", "status", r.Status, "reason", r.Reason)
}

// ReasonRejected is reported by SimulatedGateway for failed transfers.
const ReasonRejected = "payroll provider rejected the transfer"

// SimulatedGateway stands in for a payroll provider: it waits Latency and
// fails a FailureRate share of transfers.
type SimulatedGateway struct {
	Latency     time.Duration
	FailureRate float64
}

func (g SimulatedGateway) Transfer(ctx context.Context, _ string, _ ewa.Request) (ewa.Outcome, error) {
	if g.Latency > 0 {
		t := time.NewTimer(g.Latency)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ewa.Outcome{}, ctx.Err()
		case <-t.C:
		}
	}

	if g.FailureRate > 0 && rand.Float64() < g.FailureRate {
		return ewa.Outcome{Success: false, Reason: ReasonRejected}, nil
	}

	return ewa.Outcome{Success: true}, nil
}
