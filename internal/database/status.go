package database

import (
	"errors"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
	"gorm.io/gorm"
)

// CreateCollectionStatus opens a progress record for a pass.
func CreateCollectionStatus(status *models.CollectionStatus) error {
	if status.StartedAt.IsZero() {
		status.StartedAt = time.Now().UTC()
	}
	status.UpdatedAt = status.StartedAt
	if status.Status == "" {
		status.Status = "running"
	}
	return DB.Create(status).Error
}

// UpdateCollectionStatus refreshes a progress record's counters.
func UpdateCollectionStatus(jobID string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return DB.Model(&models.CollectionStatus{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
}

// GetCollectionStatus retrieves a progress record by job id.
func GetCollectionStatus(jobID string) (*models.CollectionStatus, error) {
	var status models.CollectionStatus
	if err := DB.Where("job_id = ?", jobID).First(&status).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// LatestCollectionStatus returns the most recent progress record of a tenant.
func LatestCollectionStatus(tenantID string) (*models.CollectionStatus, error) {
	var status models.CollectionStatus
	query := DB.Order("started_at DESC")
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if err := query.First(&status).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// PruneCollectionStatuses drops progress records older than the retention
// window.
func PruneCollectionStatuses(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := DB.Where("updated_at < ?", cutoff).Delete(&models.CollectionStatus{})
	return result.RowsAffected, result.Error
}
