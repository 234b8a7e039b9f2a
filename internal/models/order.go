package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is one purchase attempt. Rows are created by the checkout flow,
// mutated by the payment initiator and the webhook reconciler, and never
// deleted. A retried payment creates a fresh row; ExternalReference
// correlation is per attempt.
type Order struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	PackageID *uint  `gorm:"index" json:"package_id"`
	ProductID *uint  `gorm:"index" json:"product_id"`
	ItemName  string `gorm:"size:150" json:"item_name"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method string          `gorm:"size:30;not null;index" json:"method"` // mpesa, BTC, cashapp...

	Status string `gorm:"size:20;not null;index;default:'pending'" json:"status"`

	// ExternalReference correlates the asynchronous provider callback with
	// this attempt: the Daraja CheckoutRequestID for a live STK push, the
	// M-Pesa receipt number once confirmed, or a user-submitted transaction
	// hash for crypto orders.
	ExternalReference string `gorm:"size:255;index" json:"external_reference"`

	PaymentProof  string `gorm:"size:512" json:"payment_proof"`
	ResultMessage string `gorm:"size:512" json:"result_message"`

	ConfirmedAt *time.Time     `json:"confirmed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
