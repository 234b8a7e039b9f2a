package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	transactionType = "CustomerPayBillOnline"

	// Daraja rejects AccountReference longer than 12 characters.
	maxReferenceLen = 12
)

// Config holds the Daraja credentials read from the site settings row.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	ShortCode      string
	Environment    string // sandbox | production
}

type STKPushRequest struct {
	Phone            string // raw; normalized before sending
	Amount           decimal.Decimal
	OrderID          string
	AccountReference string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Client is the provider surface the handlers depend on; Daraja is the real
// implementation and tests substitute a stub.
type Client interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error)
}

// Daraja talks to the Safaricom M-Pesa Daraja API: OAuth token exchange,
// STK push initiation, and transaction status query.
type Daraja struct {
	cfg         Config
	callbackURL string
	httpClient  *http.Client
	now         func() time.Time
}

func NewDaraja(cfg Config, callbackURL string, timeout time.Duration) (*Daraja, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, &ConfigurationError{Reason: "missing consumer key or secret"}
	}
	if cfg.ShortCode == "" || cfg.Passkey == "" {
		return nil, &ConfigurationError{Reason: "missing short code or passkey"}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Daraja{
		cfg:         cfg,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
	}, nil
}

func (d *Daraja) baseURL() string {
	if d.cfg.Environment == "production" {
		return productionBaseURL
	}
	return sandboxBaseURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// token exchanges the consumer key pair for a short-lived bearer token.
func (d *Daraja) token(ctx context.Context) (string, error) {
	url := d.baseURL() + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(d.cfg.ConsumerKey, d.cfg.ConsumerSecret)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		authErr := &AuthenticationError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
		logrus.WithField("status", resp.StatusCode).Errorf("mpesa oauth rejected: %s", authErr.OperatorHint())
		return "", authErr
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &AuthenticationError{Status: resp.StatusCode, Detail: "empty access token"}
	}
	return out.AccessToken, nil
}

// password computes the Daraja request password: base64 of the short code,
// passkey, and a YYYYMMDDHHMMSS timestamp concatenated.
func (d *Daraja) password() (password, timestamp string) {
	timestamp = d.now().Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(d.cfg.ShortCode + d.cfg.Passkey + timestamp))
	return password, timestamp
}

// SanitizeReference reduces a caller-supplied reference to the character set
// and length Daraja accepts.
func SanitizeReference(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == maxReferenceLen {
			break
		}
	}
	if b.Len() == 0 {
		return "Payment"
	}
	return b.String()
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type darajaErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKPush sends a push-payment prompt to the payer's phone. The amount is
// rounded up to a whole KES unit; M-Pesa rejects fractional amounts. A nil
// error means Daraja accepted the request (ResponseCode "0") and the
// returned CheckoutRequestID must be persisted before control returns to the
// caller so a racing callback can resolve.
func (d *Daraja) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	token, err := d.token(ctx)
	if err != nil {
		return nil, err
	}
	password, timestamp := d.password()
	payload := stkPushPayload{
		BusinessShortCode: d.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount.Ceil().IntPart(),
		PartyA:            phone,
		PartyB:            d.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       d.callbackURL,
		AccountReference:  SanitizeReference(req.AccountReference),
		TransactionDesc:   fmt.Sprintf("Payment for order %s", req.OrderID),
	}
	body, status, err := d.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var derr darajaErrorResponse
		_ = json.Unmarshal(body, &derr)
		return nil, &InitiationError{Code: derr.ErrorCode, Description: derr.ErrorMessage}
	}
	var out STKPushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, &InitiationError{Code: out.ResponseCode, Description: out.ResponseDescription}
	}
	return &out, nil
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQuery asks Daraja for the current state of a push attempt. Callers must
// treat the result as diagnostic only; the order store is the source of
// truth once the webhook has landed.
func (d *Daraja) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := d.token(ctx)
	if err != nil {
		return nil, err
	}
	password, timestamp := d.password()
	payload := stkQueryPayload{
		BusinessShortCode: d.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
	body, status, err := d.post(ctx, token, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var derr darajaErrorResponse
		_ = json.Unmarshal(body, &derr)
		return nil, fmt.Errorf("mpesa query failed (%d): %s", status, derr.ErrorMessage)
	}
	var out STKQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *Daraja) post(ctx context.Context, token, path string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}
