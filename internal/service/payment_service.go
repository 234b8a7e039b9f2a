package service

import (
	"errors"
	"fmt"
	"time"

	"duka/internal/domain"
	"duka/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrOrderNotPending   = errors.New("order is not awaiting payment")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderStore is the persistence surface the payment flow needs. The GORM
// repository satisfies it; tests substitute an in-memory fake.
type OrderStore interface {
	GetByID(id string) (*models.Order, error)
	GetByExternalReference(ref string) (*models.Order, error)
	LockByID(id string, fn func(*models.Order) error) error
	LockByReference(ref string, fn func(*models.Order) error) error
}

// Notifier is a best-effort side channel. Implementations must never block
// the caller or surface failures; a lost notification is logged, not retried
// into the payment path.
type Notifier interface {
	OrderCreated(o *models.Order)
	OrderConfirmed(o *models.Order)
}

// PaymentService owns every order status write. The webhook handler, the
// initiator, and the admin review endpoints all mutate orders through here;
// the polling query path is read-only by design so a slow poll can never
// overwrite a fresher webhook-driven state.
type PaymentService struct {
	orders   OrderStore
	notifier Notifier
}

func NewPaymentService(orders OrderStore, notifier Notifier) *PaymentService {
	return &PaymentService{orders: orders, notifier: notifier}
}

// AttachSession records the provider session token against the order and
// moves it pending → processing. Called by the initiator after Daraja
// accepts the push, before the HTTP response is written, so a racing
// callback can already resolve the reference.
func (s *PaymentService) AttachSession(orderID, checkoutRequestID string) error {
	return s.orders.LockByID(orderID, func(o *models.Order) error {
		if o.Status != domain.OrderStatusPending {
			return ErrOrderNotPending
		}
		o.ExternalReference = checkoutRequestID
		o.Status = domain.OrderStatusProcessing
		return nil
	})
}

// ConfirmFromCallback applies a successful provider callback. Re-applying it
// to an already terminal order is a no-op: statuses are monotonic,
// confirmed_at is stamped exactly once, and the downstream notification
// fires at most once per order.
func (s *PaymentService) ConfirmFromCallback(checkoutRequestID, receipt, payerPhone, txDate string) error {
	var confirmed *models.Order
	err := s.orders.LockByReference(checkoutRequestID, func(o *models.Order) error {
		if domain.TerminalOrderStatus(o.Status) {
			logrus.WithFields(logrus.Fields{"order_id": o.ID, "status": o.Status}).
				Info("mpesa callback on terminal order ignored")
			return nil
		}
		now := time.Now()
		o.Status = domain.OrderStatusConfirmed
		if o.ConfirmedAt == nil {
			o.ConfirmedAt = &now
		}
		o.PaymentProof = fmt.Sprintf("M-Pesa Receipt: %s, Phone: %s, Date: %s", receipt, payerPhone, txDate)
		// Support lookups use the human-meaningful receipt number from here on.
		if receipt != "" {
			o.ExternalReference = receipt
		}
		snapshot := *o
		confirmed = &snapshot
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed != nil && s.notifier != nil {
		s.notifier.OrderConfirmed(confirmed)
	}
	return nil
}

// FailFromCallback applies a failed provider callback (cancelled prompt,
// insufficient funds, timeout on the handset). Terminal orders are left
// untouched.
func (s *PaymentService) FailFromCallback(checkoutRequestID, resultDesc string) error {
	return s.orders.LockByReference(checkoutRequestID, func(o *models.Order) error {
		if domain.TerminalOrderStatus(o.Status) {
			logrus.WithFields(logrus.Fields{"order_id": o.ID, "status": o.Status}).
				Info("mpesa failure callback on terminal order ignored")
			return nil
		}
		o.Status = domain.OrderStatusFailed
		o.ResultMessage = resultDesc
		return nil
	})
}

// ConfirmManual marks a manually reviewed order (crypto transfer, p2p
// handle) as paid. Only pending orders qualify; M-Pesa orders confirm via
// the webhook.
func (s *PaymentService) ConfirmManual(orderID, proof string) error {
	var confirmed *models.Order
	err := s.orders.LockByID(orderID, func(o *models.Order) error {
		if o.Status != domain.OrderStatusPending {
			return ErrInvalidTransition
		}
		now := time.Now()
		o.Status = domain.OrderStatusConfirmed
		o.ConfirmedAt = &now
		if proof != "" {
			o.PaymentProof = proof
		}
		snapshot := *o
		confirmed = &snapshot
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed != nil && s.notifier != nil {
		s.notifier.OrderConfirmed(confirmed)
	}
	return nil
}

// Release hands the purchased item to the buyer: confirmed → released.
func (s *PaymentService) Release(orderID, message string) error {
	// TODO: deliver a release notification to the buyer once a customer-side
	// channel (email or Telegram DM) exists; only the admin chat is wired today.
	return s.orders.LockByID(orderID, func(o *models.Order) error {
		if o.Status != domain.OrderStatusConfirmed {
			return ErrInvalidTransition
		}
		o.Status = domain.OrderStatusReleased
		o.ResultMessage = message
		return nil
	})
}

// Reject declines a confirmed order after manual review: confirmed → rejected.
func (s *PaymentService) Reject(orderID, message string) error {
	return s.orders.LockByID(orderID, func(o *models.Order) error {
		if o.Status != domain.OrderStatusConfirmed {
			return ErrInvalidTransition
		}
		o.Status = domain.OrderStatusRejected
		o.ResultMessage = message
		return nil
	})
}

// StatusByReference reads the authoritative order status for a session
// token. Read-only: the polling path never mutates.
func (s *PaymentService) StatusByReference(ref string) string {
	o, err := s.orders.GetByExternalReference(ref)
	if err != nil {
		return domain.OrderStatusUnknown
	}
	return o.Status
}
