package payroll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/payroll"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gatewayFunc func(ctx context.Context, accountID string, r ewa.Request) (ewa.Outcome, error)

func (f gatewayFunc) Transfer(ctx context.Context, accountID string, r ewa.Request) (ewa.Outcome, error) {
	return f(ctx, accountID, r)
}

type completion struct {
	accountID string
	id        uuid.UUID
	outcome   ewa.Outcome
}

type recordingCompleter struct {
	mu    sync.Mutex
	calls []completion
	seen  map[uuid.UUID]bool
}

func (c *recordingCompleter) CompleteWithdrawal(_ context.Context, accountID string, id uuid.UUID, o ewa.Outcome) (ewa.Request, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen == nil {
		c.seen = make(map[uuid.UUID]bool)
	}

	c.calls = append(c.calls, completion{accountID: accountID, id: id, outcome: o})

	applied := !c.seen[id]
	c.seen[id] = true

	status := ewa.StatusDisbursed
	if !o.Success {
		status = ewa.StatusRejected
	}

	return ewa.Request{ID: id, Status: status}, applied, nil
}

func request() ewa.Request {
	return ewa.Request{ID: uuid.New(), Status: ewa.StatusProcessingTransfer}
}

func TestDispatcher_CompletesEveryQueuedTransfer(t *testing.T) {
	gw := gatewayFunc(func(_ context.Context, _ string, r ewa.Request) (ewa.Outcome, error) {
		return ewa.Outcome{Success: true}, nil
	})

	c := &recordingCompleter{}
	d := payroll.NewDispatcher(gw, 3, 16, time.Second, discardLogger())

	for i := 0; i < 10; i++ {
		require.True(t, d.Enqueue("emp-1", request()))
	}

	d.Start(context.Background(), c)
	d.Stop()

	assert.Len(t, c.calls, 10)

	for _, call := range c.calls {
		assert.Equal(t, "emp-1", call.accountID)
		assert.True(t, call.outcome.Success)
	}
}

func TestDispatcher_UnknownOutcomeIsNotCompleted(t *testing.T) {
	gw := gatewayFunc(func(context.Context, string, ewa.Request) (ewa.Outcome, error) {
		return ewa.Outcome{}, errors.New("connection reset")
	})

	c := &recordingCompleter{}
	d := payroll.NewDispatcher(gw, 1, 1, 0, discardLogger())

	require.True(t, d.Enqueue("emp-1", request()))

	d.Start(context.Background(), c)
	d.Stop()

	assert.Empty(t, c.calls)
}

func TestDispatcher_DuplicateDeliveryIsHarmless(t *testing.T) {
	gw := gatewayFunc(func(context.Context, string, ewa.Request) (ewa.Outcome, error) {
		return ewa.Outcome{Success: true}, nil
	})

	c := &recordingCompleter{}
	d := payroll.NewDispatcher(gw, 2, 4, 0, discardLogger())

	r := request()
	require.True(t, d.Enqueue("emp-1", r))
	require.True(t, d.Enqueue("emp-1", r))

	d.Start(context.Background(), c)
	d.Stop()

	assert.Len(t, c.calls, 2)
	assert.Len(t, c.seen, 1)
}

func TestDispatcher_EnqueueRefusals(t *testing.T) {
	gw := gatewayFunc(func(context.Context, string, ewa.Request) (ewa.Outcome, error) {
		return ewa.Outcome{Success: true}, nil
	})

	d := payroll.NewDispatcher(gw, 1, 1, 0, discardLogger())

	assert.True(t, d.Enqueue("emp-1", request()))
	assert.False(t, d.Enqueue("emp-1", request()), "queue full")
	assert.Equal(t, 1, d.Pending())

	d.Start(context.Background(), &recordingCompleter{})
	d.Stop()

	assert.False(t, d.Enqueue("emp-1", request()), "stopped")
	assert.NotPanics(t, d.Stop)
}

func TestSimulatedGateway(t *testing.T) {
	ctx := context.Background()

	ok, err := payroll.SimulatedGateway{}.Transfer(ctx, "emp-1", request())
	require.NoError(t, err)
	assert.True(t, ok.Success)

	failed, err := payroll.SimulatedGateway{FailureRate: 1}.Transfer(ctx, "emp-1", request())
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, payroll.ReasonRejected, failed.Reason)

	cctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err = payroll.SimulatedGateway{Latency: time.Hour}.Transfer(cctx, "emp-1", request())
	assert.ErrorIs(t, err, context.Canceled)
}
