package database

import (
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// CreateChange records one detected change in the ledger.
func CreateChange(change *models.Change) error {
	return DB.Create(change).Error
}

// ChangeFilter narrows ListChanges.
type ChangeFilter struct {
	SiteID     string
	BaselineID int64
	Since      time.Time
	Reviewed   *bool
}

// ListChanges retrieves ledger entries, newest first.
func ListChanges(f ChangeFilter) ([]models.Change, error) {
	var changes []models.Change
	query := DB.Order("detected_at DESC")

	if f.SiteID != "" {
		query = query.Where("site_id = ?", f.SiteID)
	}
	if f.BaselineID != 0 {
		query = query.Where("baseline_id = ?", f.BaselineID)
	}
	if !f.Since.IsZero() {
		query = query.Where("detected_at >= ?", f.Since)
	}
	if f.Reviewed != nil {
		query = query.Where("reviewed = ?", *f.Reviewed)
	}

	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// MarkChangesReviewed flags the given changes reviewed. Already-reviewed rows
// are left untouched, so the operation is idempotent and the returned count
// only covers rows actually flipped.
func MarkChangesReviewed(changeIDs []int64, reviewedBy string, notes string) (int64, error) {
	if len(changeIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"reviewed":    true,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
	}
	if notes != "" {
		updates["review_notes"] = notes
	}
	result := DB.Model(&models.Change{}).
		Where("id IN ? AND reviewed = ?", changeIDs, false).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// MarkChangesNotified flags a baseline's unsent changes as notified.
func MarkChangesNotified(baselineID int64) error {
	return DB.Model(&models.Change{}).
		Where("baseline_id = ? AND notification_sent = ?", baselineID, false).
		Update("notification_sent", true).Error
}
