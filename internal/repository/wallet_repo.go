package repository

import (
	"duka/internal/models"

	"gorm.io/gorm"
)

// WalletRepository manages the crypto receiving addresses shown at checkout.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) List(activeOnly bool) ([]models.CryptoWallet, error) {
	q := r.db.Order("crypto_type ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.CryptoWallet
	err := q.Find(&list).Error
	return list, err
}

func (r *WalletRepository) GetByType(cryptoType string) (*models.CryptoWallet, error) {
	var w models.CryptoWallet
	if err := r.db.Where("crypto_type = ? AND is_active = ?", cryptoType, true).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Create(w *models.CryptoWallet) error { return r.db.Create(w).Error }
func (r *WalletRepository) Update(w *models.CryptoWallet) error { return r.db.Save(w).Error }

func (r *WalletRepository) Delete(id uint) error {
	return r.db.Delete(&models.CryptoWallet{}, id).Error
}
