package stkflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient talks to the payment endpoints of the storefront API.
type HTTPClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, authToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type initiateResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	Error             string `json:"error"`
}

type queryResponse struct {
	Success     bool        `json:"success"`
	MpesaResult interface{} `json:"mpesaResult"`
	OrderStatus string      `json:"orderStatus"`
	Error       string      `json:"error"`
}

func (h *HTTPClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	var out initiateResponse
	if err := h.post(ctx, "/api/v1/payments/mpesa/initiate", req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%s", out.Error)
		}
		return nil, fmt.Errorf("payment initiation failed")
	}
	return &InitiateResult{
		Message:           out.Message,
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
	}, nil
}

func (h *HTTPClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	body := map[string]string{"checkoutRequestId": checkoutRequestID}
	var out queryResponse
	if err := h.post(ctx, "/api/v1/payments/mpesa/query", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%s", out.Error)
		}
		return nil, fmt.Errorf("status query failed")
	}
	return &QueryResult{OrderStatus: out.OrderStatus, MpesaResult: out.MpesaResult}, nil
}

func (h *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: status %d: %w", path, resp.StatusCode, err)
	}
	return nil
}
