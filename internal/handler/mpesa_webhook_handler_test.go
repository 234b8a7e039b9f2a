package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"duka/internal/domain"
	"duka/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookRouter(store *memOrderStore) *gin.Engine {
	svc := service.NewPaymentService(store, nil)
	h := NewMpesaWebhookHandler(svc)
	r := gin.New()
	r.POST("/api/v1/webhooks/mpesa", h.Handle)
	return r
}

func postCallback(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertAccepted(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode": 0, "ResultDesc": "Accepted"}`, w.Body.String())
}

const successCallback = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_42",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 1500.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20260827143000},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

func TestWebhookConfirmsOrder(t *testing.T) {
	o := mpesaOrder("ord-1", 7, domain.OrderStatusProcessing)
	o.ExternalReference = "ws_CO_42"
	store := newMemOrderStore(o)
	r := webhookRouter(store)

	assertAccepted(t, postCallback(t, r, successCallback))

	got, err := store.GetByID("ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, "NLJ7RT61SV", got.ExternalReference)
	assert.Contains(t, got.PaymentProof, "M-Pesa Receipt: NLJ7RT61SV")
	assert.Contains(t, got.PaymentProof, "Phone: 254712345678")
	assert.Contains(t, got.PaymentProof, "Date: 20260827143000")
	require.NotNil(t, got.ConfirmedAt)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	o := mpesaOrder("ord-1", 7, domain.OrderStatusProcessing)
	o.ExternalReference = "ws_CO_42"
	store := newMemOrderStore(o)
	r := webhookRouter(store)

	assertAccepted(t, postCallback(t, r, successCallback))
	first, _ := store.GetByID("ord-1")
	stamp := *first.ConfirmedAt

	// Redelivery still acks; the reference moved to the receipt so the
	// session token no longer resolves, and nothing changes.
	assertAccepted(t, postCallback(t, r, successCallback))
	second, _ := store.GetByID("ord-1")
	assert.Equal(t, domain.OrderStatusConfirmed, second.Status)
	assert.Equal(t, stamp, *second.ConfirmedAt)
}

func TestWebhookFailureCallback(t *testing.T) {
	o := mpesaOrder("ord-1", 7, domain.OrderStatusProcessing)
	o.ExternalReference = "ws_CO_42"
	store := newMemOrderStore(o)
	r := webhookRouter(store)

	w := postCallback(t, r, `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_42",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`)
	assertAccepted(t, w)

	got, _ := store.GetByID("ord-1")
	assert.Equal(t, domain.OrderStatusFailed, got.Status)
	assert.Equal(t, "Request cancelled by user", got.ResultMessage)
	assert.Nil(t, got.ConfirmedAt)
}

func TestWebhookAcksUnknownSessionToken(t *testing.T) {
	store := newMemOrderStore()
	r := webhookRouter(store)

	w := postCallback(t, r, `{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_ghost",
				"ResultCode": 0
			}
		}
	}`)
	assertAccepted(t, w)
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	store := newMemOrderStore()
	r := webhookRouter(store)

	assertAccepted(t, postCallback(t, r, `not json at all`))
	assertAccepted(t, postCallback(t, r, `{"Body": {"stkCallback": {"ResultCode": 0}}}`))
}
