package database

import (
	"errors"

	"github.com/driftwatch/driftwatch/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CreateBaseline inserts a baseline. When activate is set, every other
// baseline of the same site is deactivated in the same transaction, which is
// what keeps the one-active-baseline-per-site invariant.
func CreateBaseline(baseline *models.Baseline, activate bool) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if activate {
			if err := tx.Model(&models.Baseline{}).
				Where("site_id = ?", baseline.SiteID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		baseline.IsActive = activate
		return tx.Create(baseline).Error
	})
}

// GetBaseline retrieves a baseline by ID, including its payload.
func GetBaseline(id int64) (*models.Baseline, error) {
	var baseline models.Baseline
	if err := DB.First(&baseline, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &baseline, nil
}

// ListBaselines retrieves baselines with optional filters. The payload column
// is omitted to keep listings light.
func ListBaselines(siteID string, includeInactive bool) ([]models.Baseline, error) {
	var baselines []models.Baseline
	query := DB.
		Select("id, site_id, site_url, baseline_name, baseline_description, created_by, created_by_email, is_active, created_at, updated_at").
		Order("created_at DESC")
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&baselines).Error; err != nil {
		return nil, err
	}
	return baselines, nil
}

// ActiveBaseline returns the active baseline of a site, or ErrNotFound.
func ActiveBaseline(siteID string) (*models.Baseline, error) {
	var baseline models.Baseline
	err := DB.Where("site_id = ? AND is_active = ?", siteID, true).First(&baseline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &baseline, nil
}

// SitesWithActiveBaselines returns the site ids that have an active baseline.
func SitesWithActiveBaselines() ([]string, error) {
	var siteIDs []string
	err := DB.Model(&models.Baseline{}).
		Where("is_active = ?", true).
		Distinct().
		Pluck("site_id", &siteIDs).Error
	return siteIDs, err
}

// ActivateBaseline flips a baseline active, deactivating any other baseline of
// the same site atomically. Activating an already-active baseline is a no-op.
func ActivateBaseline(id int64) (*models.Baseline, error) {
	baseline, err := GetBaseline(id)
	if err != nil {
		return nil, err
	}
	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Baseline{}).
			Where("site_id = ? AND id != ?", baseline.SiteID, id).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Baseline{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
	if err != nil {
		return nil, err
	}
	baseline.IsActive = true
	return baseline, nil
}

// DeactivateBaseline flips a baseline inactive. Idempotent.
func DeactivateBaseline(id int64) (*models.Baseline, error) {
	baseline, err := GetBaseline(id)
	if err != nil {
		return nil, err
	}
	if err := DB.Model(&models.Baseline{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}
	baseline.IsActive = false
	return baseline, nil
}

// DeleteBaseline removes a baseline by id.
func DeleteBaseline(id int64) error {
	result := DB.Delete(&models.Baseline{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveComparisonCache records the summary of a comparison run. Callers treat
// failures as non-fatal.
func SaveComparisonCache(cache *models.ComparisonCache) error {
	return DB.Create(cache).Error
}
