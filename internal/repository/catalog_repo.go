package repository

import (
	"duka/internal/models"

	"gorm.io/gorm"
)

// CatalogRepository covers categories, packages, and products.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListCategories(activeOnly bool) ([]models.Category, error) {
	q := r.db.Order("sort_order ASC, name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.Category
	err := q.Find(&list).Error
	return list, err
}

func (r *CatalogRepository) CreateCategory(c *models.Category) error { return r.db.Create(c).Error }
func (r *CatalogRepository) UpdateCategory(c *models.Category) error { return r.db.Save(c).Error }

func (r *CatalogRepository) GetCategory(id uint) (*models.Category, error) {
	var c models.Category
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) ListPackages(categoryID uint, activeOnly bool) ([]models.Package, error) {
	q := r.db.Preload("Category").Order("price_usd ASC")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.Package
	err := q.Find(&list).Error
	return list, err
}

func (r *CatalogRepository) GetPackage(id uint) (*models.Package, error) {
	var p models.Package
	if err := r.db.Preload("Category").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) CreatePackage(p *models.Package) error { return r.db.Create(p).Error }
func (r *CatalogRepository) UpdatePackage(p *models.Package) error { return r.db.Save(p).Error }

func (r *CatalogRepository) ListProducts(activeOnly bool) ([]models.Product, error) {
	q := r.db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []models.Product
	err := q.Find(&list).Error
	return list, err
}

func (r *CatalogRepository) GetProduct(id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) CreateProduct(p *models.Product) error { return r.db.Create(p).Error }
func (r *CatalogRepository) UpdateProduct(p *models.Product) error { return r.db.Save(p).Error }
