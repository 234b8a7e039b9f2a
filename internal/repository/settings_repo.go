package repository

import (
	"duka/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository manages the single global site_settings row.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings singleton, creating the row with defaults on
// first access.
func (r *SettingsRepository) Get() (*models.SiteSettings, error) {
	var s models.SiteSettings
	if err := r.db.FirstOrCreate(&s, models.SiteSettings{ID: 1}).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Update(s *models.SiteSettings) error {
	s.ID = 1
	return r.db.Save(s).Error
}
