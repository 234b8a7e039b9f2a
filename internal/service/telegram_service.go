package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"duka/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const telegramAPIBase = "https://api.telegram.org"

// SettingsSource yields the global settings row. The settings repository
// satisfies it.
type SettingsSource interface {
	Get() (*models.SiteSettings, error)
}

// TelegramNotifier posts order events to the admin chat. Dispatch runs in a
// detached goroutine with a bounded retry; failures are logged and never
// reach the payment path.
type TelegramNotifier struct {
	settings   SettingsSource
	httpClient *http.Client
	baseURL    string
}

func NewTelegramNotifier(settings SettingsSource) *TelegramNotifier {
	return &TelegramNotifier{
		settings:   settings,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    telegramAPIBase,
	}
}

func (t *TelegramNotifier) OrderCreated(o *models.Order) {
	go t.send(fmt.Sprintf("🛒 New order %s\nItem: %s\nAmount: %s %s\nMethod: %s",
		o.ID, o.ItemName, o.Amount.StringFixed(2), currencyFor(o.Method), o.Method))
}

func (t *TelegramNotifier) OrderConfirmed(o *models.Order) {
	go t.send(fmt.Sprintf("✅ Payment confirmed for order %s\nItem: %s\nAmount: %s %s\nProof: %s",
		o.ID, o.ItemName, o.Amount.StringFixed(2), currencyFor(o.Method), o.PaymentProof))
}

func currencyFor(method string) string {
	if method == "mpesa" {
		return "KES"
	}
	return "USD"
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *TelegramNotifier) send(text string) {
	s, err := t.settings.Get()
	if err != nil {
		logrus.WithError(err).Warn("telegram: settings unavailable")
		return
	}
	if s.TelegramBotToken == "" || s.TelegramChatID == "" {
		logrus.Debug("telegram: not configured, skipping notification")
		return
	}
	body, _ := json.Marshal(sendMessageRequest{ChatID: s.TelegramChatID, Text: text})
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, s.TelegramBotToken)

	op := func() error {
		resp, err := t.httpClient.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("telegram sendMessage returned %d", resp.StatusCode)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		logrus.WithError(err).Warn("telegram notification failed")
	}
}
