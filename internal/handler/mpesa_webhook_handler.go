package handler

import (
	"errors"
	"net/http"
	"strconv"

	"duka/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// stkCallbackEnvelope is the Daraja result callback wire format.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaWebhookHandler receives the asynchronous Daraja result callback. It
// is the only writer of payment-driven order status. Delivery is
// at-least-once and the provider will not retry on failure acks, so the
// handler always answers the accept envelope; internal errors are logged
// and swallowed.
type MpesaWebhookHandler struct {
	payments *service.PaymentService
}

func NewMpesaWebhookHandler(payments *service.PaymentService) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{payments: payments}
}

func (h *MpesaWebhookHandler) Handle(c *gin.Context) {
	ack := gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

	var payload stkCallbackEnvelope
	if err := c.ShouldBindJSON(&payload); err != nil {
		logrus.WithError(err).Warn("mpesa callback: unparseable body")
		c.JSON(http.StatusOK, ack)
		return
	}
	cb := payload.Body.StkCallback
	log := logrus.WithFields(logrus.Fields{
		"checkout_request_id": cb.CheckoutRequestID,
		"result_code":         cb.ResultCode,
	})
	if cb.CheckoutRequestID == "" {
		log.Warn("mpesa callback: missing CheckoutRequestID")
		c.JSON(http.StatusOK, ack)
		return
	}

	var err error
	if cb.ResultCode == 0 {
		var receipt, phone, txDate string
		if cb.CallbackMetadata != nil {
			for _, item := range cb.CallbackMetadata.Item {
				switch item.Name {
				case "MpesaReceiptNumber":
					receipt = metaString(item.Value)
				case "PhoneNumber":
					phone = metaString(item.Value)
				case "TransactionDate":
					txDate = metaString(item.Value)
				}
			}
		}
		err = h.payments.ConfirmFromCallback(cb.CheckoutRequestID, receipt, phone, txDate)
	} else {
		err = h.payments.FailFromCallback(cb.CheckoutRequestID, cb.ResultDesc)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unknown correlation: nothing actionable, but an operator may want
		// to know the provider is calling back for orders we never saw.
		log.Warn("mpesa callback: no order for session token")
	case err != nil:
		log.WithError(err).Error("mpesa callback: reconciliation failed")
	default:
		log.Info("mpesa callback processed")
	}

	c.JSON(http.StatusOK, ack)
}

// metaString renders a CallbackMetadata value; Daraja sends both strings and
// numbers (phone numbers arrive as integers).
func metaString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
