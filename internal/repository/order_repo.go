package repository

import (
	"duka/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByExternalReference(ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("external_reference = ?", ref).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// LockByID loads the order under a row lock, applies fn, and saves — the
// webhook and a duplicate delivery racing on the same row serialize here.
func (r *OrderRepository) LockByID(id string, fn func(*models.Order) error) error {
	return r.lock("id = ?", id, fn)
}

// LockByReference is LockByID keyed on external_reference, the correlation
// key carried by provider callbacks.
func (r *OrderRepository) LockByReference(ref string, fn func(*models.Order) error) error {
	return r.lock("external_reference = ?", ref, fn)
}

func (r *OrderRepository) lock(query string, arg interface{}, fn func(*models.Order) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, arg).First(&o).Error; err != nil {
			return err
		}
		if err := fn(&o); err != nil {
			return err
		}
		return tx.Save(&o).Error
	})
}

func (r *OrderRepository) ListByUser(userID uint, limit, offset int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *OrderRepository) ListAll(status string, limit, offset int) ([]models.Order, error) {
	q := r.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.Order
	err := q.Find(&list).Error
	return list, err
}

func (r *OrderRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := r.db.Model(&models.Order{}).Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}
