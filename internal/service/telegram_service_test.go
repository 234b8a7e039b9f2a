package service

import (
	"encoding/json"
	"net/http"
	"testing"

	"duka/internal/models"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixedSettings struct {
	s   *models.SiteSettings
	err error
}

func (f *fixedSettings) Get() (*models.SiteSettings, error) { return f.s, f.err }

func notifierWithSettings(t *testing.T, s *models.SiteSettings, err error) *TelegramNotifier {
	t.Helper()
	n := NewTelegramNotifier(&fixedSettings{s: s, err: err})
	httpmock.ActivateNonDefault(n.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return n
}

func TestTelegramSendPostsToConfiguredChat(t *testing.T) {
	n := notifierWithSettings(t, &models.SiteSettings{
		TelegramBotToken: "bot-token",
		TelegramChatID:   "-100123",
	}, nil)

	var got sendMessageRequest
	httpmock.RegisterResponder(http.MethodPost, "https://api.telegram.org/botbot-token/sendMessage",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewJsonResponse(200, map[string]bool{"ok": true})
		})

	n.send("Payment confirmed for order ord-1")

	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "Payment confirmed for order ord-1", got.Text)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTelegramSendSkipsWhenUnconfigured(t *testing.T) {
	n := notifierWithSettings(t, &models.SiteSettings{}, nil)

	n.send("never delivered")

	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestTelegramSendSwallowsSettingsError(t *testing.T) {
	n := notifierWithSettings(t, nil, gorm.ErrInvalidDB)

	// Must not panic or make a request.
	n.send("never delivered")

	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestTelegramSendRetriesServerErrors(t *testing.T) {
	n := notifierWithSettings(t, &models.SiteSettings{
		TelegramBotToken: "bot-token",
		TelegramChatID:   "-100123",
	}, nil)

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, "https://api.telegram.org/botbot-token/sendMessage",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 2 {
				return httpmock.NewStringResponse(502, "bad gateway"), nil
			}
			return httpmock.NewJsonResponse(200, map[string]bool{"ok": true})
		})

	n.send("retry me")

	assert.Equal(t, 2, calls)
}

func TestCurrencyFor(t *testing.T) {
	assert.Equal(t, "KES", currencyFor("mpesa"))
	assert.Equal(t, "USD", currencyFor("cashapp"))
	assert.Equal(t, "USD", currencyFor("BTC"))
}
