package stkflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler captures scheduled callbacks so tests can fire them
// deterministically.
type manualScheduler struct {
	pending []func()
}

func (m *manualScheduler) Schedule(d time.Duration, fn func()) func() {
	m.pending = append(m.pending, fn)
	idx := len(m.pending) - 1
	return func() { m.pending[idx] = nil }
}

// fireNext runs the oldest live callback, if any.
func (m *manualScheduler) fireNext() bool {
	for i, fn := range m.pending {
		if fn != nil {
			m.pending[i] = nil
			fn()
			return true
		}
	}
	return false
}

func (m *manualScheduler) pendingCount() int {
	n := 0
	for _, fn := range m.pending {
		if fn != nil {
			n++
		}
	}
	return n
}

type scriptedClient struct {
	initiateRes *InitiateResult
	initiateErr error
	queries     []queryStep
	queryCalls  int
}

type queryStep struct {
	res *QueryResult
	err error
}

func (c *scriptedClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	return c.initiateRes, c.initiateErr
}

func (c *scriptedClient) QueryStatus(ctx context.Context, id string) (*QueryResult, error) {
	step := c.queries[len(c.queries)-1]
	if c.queryCalls < len(c.queries) {
		step = c.queries[c.queryCalls]
	}
	c.queryCalls++
	return step.res, step.err
}

func newTestController(client Client, sched Scheduler, onComplete func()) *Controller {
	return New(Config{
		Client:           client,
		Scheduler:        sched,
		OrderID:          "ord-1",
		Amount:           1500,
		AccountReference: "Premium",
		OnComplete:       onComplete,
	})
}

func TestSubmitHappyPathThroughConfirmation(t *testing.T) {
	sched := &manualScheduler{}
	completed := false
	client := &scriptedClient{
		initiateRes: &InitiateResult{
			Message:           "Success. Request accepted for processing",
			CheckoutRequestID: "ws_CO_42",
		},
		queries: []queryStep{
			{res: &QueryResult{OrderStatus: "processing"}},
			{res: &QueryResult{OrderStatus: "confirmed"}},
		},
	}
	c := newTestController(client, sched, func() { completed = true })

	require.Equal(t, StateIdle, c.State())
	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, "ws_CO_42", c.CheckoutRequestID())
	require.Equal(t, 1, sched.pendingCount())

	// First poll: still processing, so attempt counted and re-armed.
	require.True(t, sched.fireNext())
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, 1, c.Attempts())
	require.Equal(t, 1, sched.pendingCount())

	// Second poll: confirmed. The only thing left scheduled is OnComplete.
	require.True(t, sched.fireNext())
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, "Payment confirmed!", c.Message())
	require.Equal(t, 1, sched.pendingCount())
	require.True(t, sched.fireNext())
	assert.True(t, completed)
}

func TestSubmitInvalidPhoneStaysIdleAndOffline(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{}
	c := newTestController(client, sched, nil)

	err := c.Submit(context.Background(), "12")
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.NotEmpty(t, c.Message())
	assert.Equal(t, 0, sched.pendingCount())
}

func TestSubmitInitiationFailure(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{initiateErr: errors.New("M-Pesa payments are currently unavailable")}
	c := newTestController(client, sched, nil)

	err := c.Submit(context.Background(), "0712345678")
	require.Error(t, err)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, "M-Pesa payments are currently unavailable", c.Message())
	assert.Equal(t, 0, sched.pendingCount())
}

func TestPollFailureCallback(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{
		initiateRes: &InitiateResult{CheckoutRequestID: "ws_CO_42"},
		queries:     []queryStep{{res: &QueryResult{OrderStatus: "failed"}}},
	}
	c := newTestController(client, sched, nil)

	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	require.True(t, sched.fireNext())
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, "Payment was cancelled or failed", c.Message())
	assert.Equal(t, 0, sched.pendingCount())
}

func TestTransientQueryErrorKeepsPolling(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{
		initiateRes: &InitiateResult{CheckoutRequestID: "ws_CO_42"},
		queries: []queryStep{
			{err: errors.New("network flake")},
			{res: &QueryResult{OrderStatus: "confirmed"}},
		},
	}
	c := newTestController(client, sched, nil)

	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	require.True(t, sched.fireNext())
	assert.Equal(t, StateWaiting, c.State())
	require.Equal(t, 1, sched.pendingCount())

	require.True(t, sched.fireNext())
	assert.Equal(t, StateSuccess, c.State())
}

// Hitting the attempt cap stops the timer but never forces a failure:
// confirmation is user-paced and the webhook remains authoritative. A manual
// check still works afterwards.
func TestAttemptCapStopsAutoPollingOnly(t *testing.T) {
	sched := &manualScheduler{}
	unresolved := queryStep{res: &QueryResult{OrderStatus: "processing"}}
	client := &scriptedClient{
		initiateRes: &InitiateResult{CheckoutRequestID: "ws_CO_42"},
		queries:     []queryStep{unresolved},
	}
	c := newTestController(client, sched, nil)

	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	for i := 0; i < DefaultMaxAttempts; i++ {
		require.True(t, sched.fireNext(), "poll %d should have been scheduled", i+1)
	}
	assert.Equal(t, DefaultMaxAttempts, c.Attempts())
	assert.Equal(t, StateWaiting, c.State())
	assert.Equal(t, 0, sched.pendingCount())

	// Manual check past the cap still resolves the payment.
	client.queries = append(client.queries, queryStep{res: &QueryResult{OrderStatus: "confirmed"}})
	client.queryCalls = len(client.queries) - 1
	require.NoError(t, c.CheckStatus(context.Background()))
	assert.Equal(t, StateSuccess, c.State())
}

func TestRetryResetsFailedFlow(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{initiateErr: errors.New("rejected")}
	c := newTestController(client, sched, nil)

	_ = c.Submit(context.Background(), "0712345678")
	require.Equal(t, StateFailed, c.State())

	require.NoError(t, c.Retry("ord-2"))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, c.Attempts())
	assert.Empty(t, c.CheckoutRequestID())

	client.initiateErr = nil
	client.initiateRes = &InitiateResult{CheckoutRequestID: "ws_CO_43"}
	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	assert.Equal(t, StateWaiting, c.State())
}

func TestRetryOnlyFromFailed(t *testing.T) {
	c := newTestController(&scriptedClient{}, &manualScheduler{}, nil)
	assert.Error(t, c.Retry(""))
}

func TestCloseCancelsPendingPoll(t *testing.T) {
	sched := &manualScheduler{}
	client := &scriptedClient{
		initiateRes: &InitiateResult{CheckoutRequestID: "ws_CO_42"},
		queries:     []queryStep{{res: &QueryResult{OrderStatus: "processing"}}},
	}
	c := newTestController(client, sched, nil)

	require.NoError(t, c.Submit(context.Background(), "0712345678"))
	require.Equal(t, 1, sched.pendingCount())
	c.Close()
	assert.Equal(t, 0, sched.pendingCount())
	assert.False(t, sched.fireNext())
	assert.Equal(t, 0, client.queryCalls)
}

func TestCheckStatusNoopOutsideWaiting(t *testing.T) {
	client := &scriptedClient{queries: []queryStep{{res: &QueryResult{OrderStatus: "confirmed"}}}}
	c := newTestController(client, &manualScheduler{}, nil)

	require.NoError(t, c.CheckStatus(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, client.queryCalls)
}
