// Package diff computes the set difference between a baseline snapshot and
// the live snapshot of a site.
package diff

import (
	"github.com/driftwatch/driftwatch/internal/models"
)

// Summary is the aggregate view of one comparison.
type Summary struct {
	TotalBaseline  int `json:"total_baseline"`
	TotalCurrent   int `json:"total_current"`
	AddedCount     int `json:"added_count"`
	RemovedCount   int `json:"removed_count"`
	ModifiedCount  int `json:"modified_count"`
	UnchangedCount int `json:"unchanged_count"`
}

// HasChanges reports whether the comparison found any drift.
func (s Summary) HasChanges() bool {
	return s.AddedCount > 0 || s.RemovedCount > 0 || s.ModifiedCount > 0
}

// Modification describes one key present on both sides with a differing
// permission level or inheritance flag.
type Modification struct {
	ResourceID     string  `json:"resource_id"`
	ResourceName   string  `json:"resource_name"`
	PrincipalID    string  `json:"principal_id"`
	PrincipalName  string  `json:"principal_name"`
	PrincipalEmail *string `json:"principal_email"`

	OldPermissionLevel string `json:"old_permission_level"`
	NewPermissionLevel string `json:"new_permission_level"`
	OldInheritance     bool   `json:"old_inheritance"`
	NewInheritance     bool   `json:"new_inheritance"`
}

// InheritanceOnly reports whether the inheritance flag is the sole difference.
func (m Modification) InheritanceOnly() bool {
	return m.OldPermissionLevel == m.NewPermissionLevel && m.OldInheritance != m.NewInheritance
}

// Result carries the summary plus the itemized change lists.
type Result struct {
	Summary  Summary                  `json:"summary"`
	Added    []models.PermissionEntry `json:"added_permissions"`
	Removed  []models.PermissionEntry `json:"removed_permissions"`
	Modified []Modification           `json:"modified_permissions"`
}

// Compare partitions the union of both snapshots' (resource, principal) keys
// into added, removed, modified, and unchanged. A common key counts as
// modified when its permission level or inheritance flag differs. O(n) in the
// total row count; Compare(s, s) is always empty.
func Compare(baseline, current []models.PermissionEntry) *Result {
	baselineByKey := make(map[string]models.PermissionEntry, len(baseline))
	for _, entry := range baseline {
		baselineByKey[entry.Key()] = entry
	}
	currentByKey := make(map[string]models.PermissionEntry, len(current))
	for _, entry := range current {
		currentByKey[entry.Key()] = entry
	}

	result := &Result{}

	for key, entry := range currentByKey {
		if _, ok := baselineByKey[key]; !ok {
			result.Added = append(result.Added, entry)
		}
	}
	for key, entry := range baselineByKey {
		if _, ok := currentByKey[key]; !ok {
			result.Removed = append(result.Removed, entry)
		}
	}

	common := 0
	for key, cur := range currentByKey {
		base, ok := baselineByKey[key]
		if !ok {
			continue
		}
		common++
		if base.PermissionLevel != cur.PermissionLevel ||
			base.HasBrokenInheritance != cur.HasBrokenInheritance {
			result.Modified = append(result.Modified, Modification{
				ResourceID:         cur.ResourceID,
				ResourceName:       cur.ResourceName,
				PrincipalID:        cur.PrincipalID,
				PrincipalName:      cur.PrincipalName,
				PrincipalEmail:     cur.PrincipalEmail,
				OldPermissionLevel: base.PermissionLevel,
				NewPermissionLevel: cur.PermissionLevel,
				OldInheritance:     base.HasBrokenInheritance,
				NewInheritance:     cur.HasBrokenInheritance,
			})
		}
	}

	result.Summary = Summary{
		TotalBaseline:  len(baseline),
		TotalCurrent:   len(current),
		AddedCount:     len(result.Added),
		RemovedCount:   len(result.Removed),
		ModifiedCount:  len(result.Modified),
		UnchangedCount: common - len(result.Modified),
	}
	return result
}
