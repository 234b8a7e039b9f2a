package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"duka/config"
	"duka/internal/domain"
	"duka/internal/models"
	"duka/internal/service"
	"duka/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memOrderStore mirrors the repository contract for handler tests.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemOrderStore(orders ...*models.Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) GetByID(id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrderStore) GetByExternalReference(ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ExternalReference == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memOrderStore) LockByID(id string, fn func(*models.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	return fn(o)
}

func (s *memOrderStore) LockByReference(ref string, fn func(*models.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ExternalReference == ref {
			return fn(o)
		}
	}
	return gorm.ErrRecordNotFound
}

type staticSettings struct {
	s   *models.SiteSettings
	err error
}

func (f *staticSettings) Get() (*models.SiteSettings, error) { return f.s, f.err }

func enabledSettings() *staticSettings {
	return &staticSettings{s: &models.SiteSettings{
		ID:                  1,
		MpesaEnabled:        true,
		MpesaConsumerKey:    "key",
		MpesaConsumerSecret: "secret",
		MpesaPasskey:        "passkey",
		MpesaShortCode:      "174379",
		MpesaEnvironment:    domain.MpesaEnvSandbox,
	}}
}

type stubProvider struct {
	pushResp  *payment.STKPushResponse
	pushErr   error
	queryResp *payment.STKQueryResponse
	queryErr  error
}

func (s *stubProvider) STKPush(ctx context.Context, req payment.STKPushRequest) (*payment.STKPushResponse, error) {
	return s.pushResp, s.pushErr
}

func (s *stubProvider) STKQuery(ctx context.Context, checkoutRequestID string) (*payment.STKQueryResponse, error) {
	return s.queryResp, s.queryErr
}

func testConfig() *config.Config {
	return &config.Config{
		Mpesa: config.MpesaConfig{
			WebhookBaseURL: "https://shop.example.com",
			HTTPTimeout:    5 * time.Second,
		},
	}
}

func mpesaRouter(h *MpesaHandler, userID uint) *gin.Engine {
	r := gin.New()
	asUser := func(c *gin.Context) { c.Set("user_id", userID) }
	r.POST("/api/v1/payments/mpesa/initiate", asUser, h.Initiate)
	r.POST("/api/v1/payments/mpesa/query", asUser, h.Query)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mpesaOrder(id string, userID uint, status string) *models.Order {
	return &models.Order{
		ID:       id,
		UserID:   userID,
		ItemName: "Premium Package",
		Amount:   decimal.NewFromInt(1500),
		Method:   domain.MethodMpesa,
		Status:   status,
	}
}

func newTestMpesaHandler(store *memOrderStore, settings service.SettingsSource, provider payment.Client, providerErr error) (*MpesaHandler, *service.PaymentService) {
	svc := service.NewPaymentService(store, nil)
	h := NewMpesaHandler(testConfig(), settings, svc, store)
	h.newClient = func(cfg payment.Config, callbackURL string, timeout time.Duration) (payment.Client, error) {
		return provider, providerErr
	}
	return h, svc
}

func TestInitiatePersistsSessionBeforeResponding(t *testing.T) {
	store := newMemOrderStore(mpesaOrder("ord-1", 7, domain.OrderStatusPending))
	provider := &stubProvider{pushResp: &payment.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_42",
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	h, _ := newTestMpesaHandler(store, enabledSettings(), provider, nil)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/initiate", gin.H{
		"phone":   "0712345678",
		"amount":  1500,
		"orderId": "ord-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "ws_CO_42", resp["checkoutRequestId"])

	o, err := store.GetByID("ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	assert.Equal(t, "ws_CO_42", o.ExternalReference)
}

func TestInitiateOwnershipAndStatusChecks(t *testing.T) {
	store := newMemOrderStore(
		mpesaOrder("ord-mine-done", 7, domain.OrderStatusConfirmed),
		mpesaOrder("ord-other", 8, domain.OrderStatusPending),
	)
	h, _ := newTestMpesaHandler(store, enabledSettings(), &stubProvider{}, nil)
	r := mpesaRouter(h, 7)

	body := gin.H{"phone": "0712345678", "amount": 100, "orderId": "ord-other"}
	assert.Equal(t, http.StatusForbidden, postJSON(t, r, "/api/v1/payments/mpesa/initiate", body).Code)

	body["orderId"] = "ord-mine-done"
	assert.Equal(t, http.StatusConflict, postJSON(t, r, "/api/v1/payments/mpesa/initiate", body).Code)

	body["orderId"] = "ord-missing"
	assert.Equal(t, http.StatusNotFound, postJSON(t, r, "/api/v1/payments/mpesa/initiate", body).Code)
}

func TestInitiateWhenMpesaDisabled(t *testing.T) {
	store := newMemOrderStore(mpesaOrder("ord-1", 7, domain.OrderStatusPending))
	settings := enabledSettings()
	settings.s.MpesaEnabled = false
	svc := service.NewPaymentService(store, nil)
	h := NewMpesaHandler(testConfig(), settings, svc, store)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/initiate", gin.H{
		"phone": "0712345678", "amount": 100, "orderId": "ord-1",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "currently unavailable")
	o, _ := store.GetByID("ord-1")
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestInitiateSurfacesProviderRejection(t *testing.T) {
	store := newMemOrderStore(mpesaOrder("ord-1", 7, domain.OrderStatusPending))
	provider := &stubProvider{pushErr: &payment.InitiationError{
		Code:        "500.001.1001",
		Description: "Unable to lock subscriber, a transaction is already in process for the current subscriber",
	}}
	h, _ := newTestMpesaHandler(store, enabledSettings(), provider, nil)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/initiate", gin.H{
		"phone": "0712345678", "amount": 100, "orderId": "ord-1",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unable to lock subscriber")
	o, _ := store.GetByID("ord-1")
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestInitiateHidesAuthDetailFromUser(t *testing.T) {
	store := newMemOrderStore(mpesaOrder("ord-1", 7, domain.OrderStatusPending))
	provider := &stubProvider{pushErr: &payment.AuthenticationError{Status: 400, Detail: "Bad Request - Invalid Credentials"}}
	h, _ := newTestMpesaHandler(store, enabledSettings(), provider, nil)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/initiate", gin.H{
		"phone": "0712345678", "amount": 100, "orderId": "ord-1",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "Invalid Credentials")
}

// The order store is authoritative for the poll endpoint: when the live
// provider query fails, the order status still comes back so the client can
// resolve a payment the webhook already settled.
func TestQueryStoreWinsWhenProviderUnreachable(t *testing.T) {
	o := mpesaOrder("ord-1", 7, domain.OrderStatusConfirmed)
	o.ExternalReference = "ws_CO_42"
	store := newMemOrderStore(o)
	provider := &stubProvider{queryErr: context.DeadlineExceeded}
	h, _ := newTestMpesaHandler(store, enabledSettings(), provider, nil)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/query", gin.H{"checkoutRequestId": "ws_CO_42"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, domain.OrderStatusConfirmed, resp["orderStatus"])
	assert.Nil(t, resp["mpesaResult"])
}

func TestQueryReturnsProviderDiagnostics(t *testing.T) {
	o := mpesaOrder("ord-1", 7, domain.OrderStatusProcessing)
	o.ExternalReference = "ws_CO_42"
	store := newMemOrderStore(o)
	provider := &stubProvider{queryResp: &payment.STKQueryResponse{
		ResponseCode: "0",
		ResultCode:   "1032",
		ResultDesc:   "Request cancelled by user",
	}}
	h, _ := newTestMpesaHandler(store, enabledSettings(), provider, nil)
	r := mpesaRouter(h, 7)

	w := postJSON(t, r, "/api/v1/payments/mpesa/query", gin.H{"checkoutRequestId": "ws_CO_42"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.OrderStatusProcessing, resp["orderStatus"])
	mpesaResult, ok := resp["mpesaResult"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1032", mpesaResult["ResultCode"])
}
