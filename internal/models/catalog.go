package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Slug      string         `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	SortOrder int            `gorm:"default:0" json:"sort_order"`
	IsActive  bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Packages []Package `gorm:"foreignKey:CategoryID" json:"packages,omitempty"`
}

func (Category) TableName() string { return "categories" }

// Package is a subscription offering (e.g. a streaming account for N days).
type Package struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CategoryID   uint            `gorm:"not null;index" json:"category_id"`
	Name         string          `gorm:"size:150;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	PriceUSD     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_usd"`
	DurationDays int             `gorm:"default:30" json:"duration_days"`
	Features     string          `gorm:"type:text" json:"features"` // newline-separated
	ImageURL     string          `gorm:"size:512" json:"image_url"`
	IsActive     bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`

	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Package) TableName() string { return "packages" }

// Product is a one-off digital good delivered after the order is released.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	PriceUSD    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_usd"`
	FileURL     string          `gorm:"size:512" json:"-"` // delivered on release
	ImageURL    string          `gorm:"size:512" json:"image_url"`
	IsActive    bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Product) TableName() string { return "products" }

type CryptoWallet struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CryptoType    string         `gorm:"size:20;not null;index" json:"crypto_type"` // BTC, ETH, USDT...
	Network       string         `gorm:"size:50" json:"network"`                    // e.g. TRC20
	WalletAddress string         `gorm:"size:255;not null" json:"wallet_address"`
	IsActive      bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CryptoWallet) TableName() string { return "crypto_wallets" }
