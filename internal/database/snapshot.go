package database

import (
	"fmt"

	"github.com/driftwatch/driftwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertStructure writes a structure row for a discovered resource. On
// conflict with the (resource_id, principal_id) key only the volatile display
// fields are refreshed, which makes re-runs of the structure pass idempotent.
func UpsertStructure(entry *models.PermissionEntry) error {
	return DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resource_id"}, {Name: "principal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"resource_name", "resource_url", "parent_resource_id", "drive_id", "collected_at",
		}),
	}).Create(entry).Error
}

// ReplaceGrants swaps a resource's non-structure rows for a freshly collected
// grant set in one transaction. The structure sentinel row survives and gets
// the recomputed inheritance flag, so every row of the resource agrees on it.
// A resource is only "collected" once this commits.
func ReplaceGrants(resourceID string, sentinelPrincipalID string, hasBroken bool, grants []models.PermissionEntry) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("resource_id = ? AND principal_id != ?", resourceID, sentinelPrincipalID).
			Delete(&models.PermissionEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear grants for %s: %w", resourceID, err)
		}

		for i := range grants {
			grants[i].HasBrokenInheritance = hasBroken
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "resource_id"}, {Name: "principal_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"permission_level", "permission_type", "principal_name",
					"principal_email", "has_broken_inheritance", "collected_at",
				}),
			}).Create(&grants[i]).Error; err != nil {
				return fmt.Errorf("failed to insert grant for %s: %w", resourceID, err)
			}
		}

		return tx.Model(&models.PermissionEntry{}).
			Where("resource_id = ? AND principal_id = ?", resourceID, sentinelPrincipalID).
			Update("has_broken_inheritance", hasBroken).Error
	})
}

// SitePermissions returns every snapshot row of a site in stable key order.
func SitePermissions(siteID string) ([]models.PermissionEntry, error) {
	var entries []models.PermissionEntry
	err := DB.Where("site_id = ?", siteID).
		Order("resource_id, principal_id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListCollectableResources returns the distinct folder and file resources of
// the permission pass's working set, optionally scoped to one site.
func ListCollectableResources(siteID string) ([]models.PermissionEntry, error) {
	var resources []models.PermissionEntry
	query := DB.
		Select("DISTINCT resource_id, resource_type, resource_name, resource_url, parent_resource_id, site_id, site_url, drive_id, tenant_id").
		Where("resource_type IN ?", []models.ResourceType{models.ResourceTypeFolder, models.ResourceTypeFile}).
		Order("resource_type, resource_name")
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	if err := query.Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// SiteResourceIDs returns the ids of every resource currently known for a site.
func SiteResourceIDs(siteID string) ([]string, error) {
	var ids []string
	err := DB.Model(&models.PermissionEntry{}).
		Where("site_id = ?", siteID).
		Distinct().
		Pluck("resource_id", &ids).Error
	return ids, err
}

// HealOrphans reparents resources whose declared parent is not in the site's
// discovered set directly under the site, keeping every node reachable.
func HealOrphans(siteID string) (int64, error) {
	ids, err := SiteResourceIDs(siteID)
	if err != nil {
		return 0, err
	}
	result := DB.Model(&models.PermissionEntry{}).
		Where("site_id = ? AND parent_resource_id IS NOT NULL AND parent_resource_id NOT IN ?", siteID, ids).
		Update("parent_resource_id", nil)
	return result.RowsAffected, result.Error
}

// DeleteSiteData removes every snapshot row of a site ahead of a full
// re-collection.
func DeleteSiteData(siteID string) error {
	return DB.Where("site_id = ?", siteID).Delete(&models.PermissionEntry{}).Error
}

// CountSitePermissions returns the number of snapshot rows a site currently has.
func CountSitePermissions(siteID string) (int64, error) {
	var count int64
	err := DB.Model(&models.PermissionEntry{}).Where("site_id = ?", siteID).Count(&count).Error
	return count, err
}
