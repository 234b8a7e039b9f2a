// Package stkflow drives a buyer through an M-Pesa STK push payment: phone
// entry, push initiation, and a bounded wait/poll cycle against the status
// query endpoint. Transition logic is synchronous and deterministic; timing
// lives behind the Scheduler so tests can drive the clock by hand.
package stkflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duka/pkg/payment"
)

type State string

const (
	StateIdle       State = "idle"
	StateInitiating State = "initiating"
	StateWaiting    State = "waiting"
	StateChecking   State = "checking"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

const (
	// DefaultPollDelay spaces out status polls; the on-device PIN prompt
	// commonly takes several seconds to resolve.
	DefaultPollDelay = 5 * time.Second
	// DefaultMaxAttempts caps auto-polling. Hitting the cap does not fail
	// the payment — confirmation is user-paced — it just stops the timer
	// and leaves the manual check affordance.
	DefaultMaxAttempts = 12

	successDisplayDelay = 2 * time.Second
)

type InitiateRequest struct {
	Phone            string  `json:"phone"`
	Amount           float64 `json:"amount"`
	OrderID          string  `json:"orderId"`
	AccountReference string  `json:"accountReference"`
}

type InitiateResult struct {
	Message           string
	CheckoutRequestID string
	MerchantRequestID string
}

type QueryResult struct {
	OrderStatus string
	MpesaResult interface{}
}

// Client is the server surface the controller talks to. HTTPClient is the
// real implementation.
type Client interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error)
}

// Scheduler runs fn once after d. The returned cancel stops a pending run.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the production Scheduler.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type Config struct {
	Client           Client
	Scheduler        Scheduler
	OrderID          string
	Amount           float64
	AccountReference string
	PollDelay        time.Duration
	MaxAttempts      int
	// OnComplete fires once, shortly after the payment confirms (the UI
	// shows the success screen, then navigates away).
	OnComplete func()
}

// Controller is a cooperative state machine: idle → initiating → waiting →
// checking ⟲ → success | failed, with failed → idle on retry. One controller
// instance drives one order's flow.
type Controller struct {
	mu sync.Mutex

	client      Client
	scheduler   Scheduler
	pollDelay   time.Duration
	maxAttempts int
	onComplete  func()

	orderID          string
	amount           float64
	accountReference string

	state             State
	message           string
	checkoutRequestID string
	attempts          int
	cancelTimer       func()
	closed            bool
}

func New(cfg Config) *Controller {
	if cfg.Scheduler == nil {
		cfg.Scheduler = TimerScheduler{}
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Controller{
		client:           cfg.Client,
		scheduler:        cfg.Scheduler,
		pollDelay:        cfg.PollDelay,
		maxAttempts:      cfg.MaxAttempts,
		onComplete:       cfg.OnComplete,
		orderID:          cfg.OrderID,
		amount:           cfg.Amount,
		accountReference: cfg.AccountReference,
		state:            StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Controller) CheckoutRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkoutRequestID
}

// Submit validates the phone locally and, only if it is well formed, asks
// the server to fire the push. Invalid input keeps the controller in idle
// with a validation message and never touches the network.
func (c *Controller) Submit(ctx context.Context, phone string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("cannot submit while %s", c.state)
	}
	if _, err := payment.NormalizePhone(phone); err != nil {
		c.message = err.Error()
		c.mu.Unlock()
		return err
	}
	c.state = StateInitiating
	c.message = "Sending payment request to your phone..."
	req := InitiateRequest{
		Phone:            phone,
		Amount:           c.amount,
		OrderID:          c.orderID,
		AccountReference: c.accountReference,
	}
	c.mu.Unlock()

	res, err := c.client.Initiate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err != nil {
		c.state = StateFailed
		c.message = err.Error()
		return err
	}
	c.checkoutRequestID = res.CheckoutRequestID
	c.state = StateWaiting
	c.message = res.Message
	if c.message == "" {
		c.message = "Check your phone and enter your M-Pesa PIN"
	}
	c.schedulePollLocked(ctx)
	return nil
}

// CheckStatus polls the query endpoint once. The scheduler calls it
// automatically while the attempt cap allows; the UI may call it manually at
// any point while waiting.
func (c *Controller) CheckStatus(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateWaiting || c.checkoutRequestID == "" {
		c.mu.Unlock()
		return nil
	}
	c.state = StateChecking
	id := c.checkoutRequestID
	c.mu.Unlock()

	res, err := c.client.QueryStatus(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateChecking {
		return nil
	}
	if err != nil {
		// Transient: fall back to waiting and let the next cycle retry.
		c.backToWaitingLocked(ctx, "Waiting for payment confirmation...")
		return nil
	}
	switch res.OrderStatus {
	case "confirmed":
		c.state = StateSuccess
		c.message = "Payment confirmed!"
		c.cancelPendingLocked()
		if c.onComplete != nil {
			c.cancelTimer = c.scheduler.Schedule(successDisplayDelay, c.onComplete)
		}
	case "failed":
		c.state = StateFailed
		c.message = "Payment was cancelled or failed"
	default:
		c.backToWaitingLocked(ctx, "Waiting for payment confirmation...")
	}
	return nil
}

func (c *Controller) backToWaitingLocked(ctx context.Context, msg string) {
	c.state = StateWaiting
	c.message = msg
	c.attempts++
	if c.attempts < c.maxAttempts {
		c.schedulePollLocked(ctx)
	}
	// At the cap auto-polling stops; the user can still check manually.
}

// Retry moves failed → idle for a fresh attempt. The surrounding checkout
// flow must have created a new order row — session correlation is per
// attempt, so the stale order is never reused.
func (c *Controller) Retry(newOrderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFailed {
		return fmt.Errorf("cannot retry while %s", c.state)
	}
	c.cancelPendingLocked()
	c.state = StateIdle
	c.message = ""
	c.checkoutRequestID = ""
	c.attempts = 0
	if newOrderID != "" {
		c.orderID = newOrderID
	}
	return nil
}

// Close abandons the flow (e.g. the user changed payment method or
// navigated away) and cancels any pending timer. The push cannot be revoked
// once the prompt reaches the device; the order is left for the webhook to
// resolve.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelPendingLocked()
}

func (c *Controller) schedulePollLocked(ctx context.Context) {
	c.cancelPendingLocked()
	c.cancelTimer = c.scheduler.Schedule(c.pollDelay, func() {
		_ = c.CheckStatus(ctx)
	})
}

func (c *Controller) cancelPendingLocked() {
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
}
