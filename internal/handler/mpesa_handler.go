package handler

import (
	"errors"
	"net/http"
	"time"

	"duka/config"
	"duka/internal/domain"
	"duka/internal/middleware"
	"duka/internal/service"
	"duka/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const mpesaWebhookPath = "/api/v1/webhooks/mpesa"

// MpesaHandler exposes the STK push initiator and the client-facing status
// query. The query path is read-only; all status writes flow through the
// webhook (see MpesaWebhookHandler).
type MpesaHandler struct {
	cfg      *config.Config
	settings service.SettingsSource
	payments *service.PaymentService
	orders   service.OrderStore

	// newClient is swapped out in tests.
	newClient func(cfg payment.Config, callbackURL string, timeout time.Duration) (payment.Client, error)
}

func NewMpesaHandler(cfg *config.Config, settings service.SettingsSource, payments *service.PaymentService, orders service.OrderStore) *MpesaHandler {
	return &MpesaHandler{
		cfg:      cfg,
		settings: settings,
		payments: payments,
		orders:   orders,
		newClient: func(pc payment.Config, callbackURL string, timeout time.Duration) (payment.Client, error) {
			return payment.NewDaraja(pc, callbackURL, timeout)
		},
	}
}

// provider builds a Daraja client from the current settings row. Credentials
// are read per request so key rotation takes effect without a restart.
func (h *MpesaHandler) provider() (payment.Client, error) {
	s, err := h.settings.Get()
	if err != nil {
		return nil, &payment.ConfigurationError{Reason: "settings unavailable"}
	}
	if !s.MpesaEnabled {
		return nil, &payment.ConfigurationError{Reason: "disabled in site settings"}
	}
	return h.newClient(payment.Config{
		ConsumerKey:    s.MpesaConsumerKey,
		ConsumerSecret: s.MpesaConsumerSecret,
		Passkey:        s.MpesaPasskey,
		ShortCode:      s.MpesaShortCode,
		Environment:    s.MpesaEnvironment,
	}, h.cfg.Mpesa.WebhookBaseURL+mpesaWebhookPath, h.cfg.Mpesa.HTTPTimeout)
}

type initiateRequest struct {
	Phone            string  `json:"phone" binding:"required"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	OrderID          string  `json:"orderId" binding:"required"`
	AccountReference string  `json:"accountReference"`
}

// Initiate sends the STK push for a pending order. On provider acceptance the
// session token is persisted and the order moves to processing before the
// response is written; on any failure the order stays pending so the client
// can retry with corrected input.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	order, err := h.orders.GetByID(req.OrderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order not found"})
		return
	}
	if order.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not your order"})
		return
	}
	if order.Status != domain.OrderStatusPending {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "order is not awaiting payment"})
		return
	}

	client, err := h.provider()
	if err != nil {
		h.renderInitiateError(c, err)
		return
	}
	resp, err := client.STKPush(c.Request.Context(), payment.STKPushRequest{
		Phone:            req.Phone,
		Amount:           decimal.NewFromFloat(req.Amount),
		OrderID:          order.ID,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		h.renderInitiateError(c, err)
		return
	}

	// The session token must be on the row before we answer, otherwise a
	// racing callback cannot find the order.
	if err := h.payments.AttachSession(order.ID, resp.CheckoutRequestID); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("mpesa: failed to attach session")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to record payment session"})
		return
	}
	logrus.WithFields(logrus.Fields{
		"order_id":            order.ID,
		"checkout_request_id": resp.CheckoutRequestID,
	}).Info("mpesa: stk push accepted")

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           resp.CustomerMessage,
		"checkoutRequestId": resp.CheckoutRequestID,
		"merchantRequestId": resp.MerchantRequestID,
	})
}

func (h *MpesaHandler) renderInitiateError(c *gin.Context, err error) {
	var (
		validationErr *payment.ValidationError
		configErr     *payment.ConfigurationError
		authErr       *payment.AuthenticationError
		initErr       *payment.InitiationError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": validationErr.Error()})
	case errors.As(err, &configErr):
		logrus.WithError(configErr).Warn("mpesa: unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "M-Pesa payments are currently unavailable"})
	case errors.As(err, &authErr):
		// Operator detail goes to the log; the end user gets a generic line.
		logrus.WithField("status", authErr.Status).Errorf("mpesa: %s", authErr.OperatorHint())
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "could not authenticate with the payment provider"})
	case errors.As(err, &initErr):
		// Provider rejections are actionable by the payer; surface verbatim.
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": initErr.Error()})
	default:
		logrus.WithError(err).Error("mpesa: stk push failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "payment provider unreachable, try again"})
	}
}

type queryRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" binding:"required"`
}

// Query is the synchronous poll endpoint. It re-queries Daraja for
// diagnostics and reads the authoritative status from the order store; the
// store value wins even when the live query fails, since the webhook may
// already have resolved the order. Never mutates.
func (h *MpesaHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var mpesaResult *payment.STKQueryResponse
	client, err := h.provider()
	if err == nil {
		mpesaResult, err = client.STKQuery(c.Request.Context(), req.CheckoutRequestID)
	}
	if err != nil {
		logrus.WithError(err).WithField("checkout_request_id", req.CheckoutRequestID).
			Warn("mpesa: live status query failed, falling back to order store")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"mpesaResult": mpesaResult,
		"orderStatus": h.payments.StatusByReference(req.CheckoutRequestID),
	})
}
