package models

import "time"

// SiteSettings is the single global settings row. M-Pesa provider
// credentials live here (not in env config) so an admin can rotate keys or
// flip environments from the console.
type SiteSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SiteName string `gorm:"size:100;default:'Duka'" json:"site_name"`

	MpesaEnabled        bool   `gorm:"default:false" json:"mpesa_enabled"`
	MpesaConsumerKey    string `gorm:"size:255" json:"-"`
	MpesaConsumerSecret string `gorm:"size:255" json:"-"`
	MpesaPasskey        string `gorm:"size:255" json:"-"`
	MpesaShortCode      string `gorm:"size:20" json:"mpesa_short_code"`
	MpesaEnvironment    string `gorm:"size:20;default:'sandbox'" json:"mpesa_environment"` // sandbox | production

	TelegramBotToken string `gorm:"size:255" json:"-"`
	TelegramChatID   string `gorm:"size:64" json:"telegram_chat_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SiteSettings) TableName() string { return "site_settings" }
