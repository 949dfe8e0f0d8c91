package diff

import (
	"testing"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(resourceID, principalID, level string, broken bool) models.PermissionEntry {
	return models.PermissionEntry{
		ResourceID:           resourceID,
		ResourceName:         "res " + resourceID,
		PrincipalID:          principalID,
		PrincipalName:        "principal " + principalID,
		PermissionLevel:      level,
		HasBrokenInheritance: broken,
	}
}

func TestCompareIdentical(t *testing.T) {
	snapshot := []models.PermissionEntry{
		entry("r1", "p1", "read", false),
		entry("r2", "p2", "write", true),
	}

	result := Compare(snapshot, snapshot)
	assert.False(t, result.Summary.HasChanges())
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Modified)
	assert.Equal(t, 2, result.Summary.UnchangedCount)
}

func TestCompareAddedAndRemoved(t *testing.T) {
	baseline := []models.PermissionEntry{
		entry("r1", "p1", "read", false),
		entry("r1", "p2", "read", false),
	}
	current := []models.PermissionEntry{
		entry("r1", "p1", "read", false),
		entry("r2", "p3", "write", false),
	}

	result := Compare(baseline, current)
	require.Len(t, result.Added, 1)
	assert.Equal(t, "r2|p3", result.Added[0].Key())
	require.Len(t, result.Removed, 1)
	assert.Equal(t, "r1|p2", result.Removed[0].Key())
	assert.Equal(t, 1, result.Summary.UnchangedCount)
}

func TestCompareModifiedLevel(t *testing.T) {
	baseline := []models.PermissionEntry{entry("r1", "p1", "read", false)}
	current := []models.PermissionEntry{entry("r1", "p1", "write", false)}

	result := Compare(baseline, current)
	require.Len(t, result.Modified, 1)
	m := result.Modified[0]
	assert.Equal(t, "read", m.OldPermissionLevel)
	assert.Equal(t, "write", m.NewPermissionLevel)
	assert.False(t, m.InheritanceOnly())
	assert.Equal(t, 0, result.Summary.UnchangedCount)
}

func TestCompareInheritanceFlip(t *testing.T) {
	// P1 on R1 keeps its level but R1's inheritance breaks, while P2 gains
	// access to R2.
	baseline := []models.PermissionEntry{entry("r1", "p1", "read", false)}
	current := []models.PermissionEntry{
		entry("r1", "p1", "read", true),
		entry("r2", "p2", "write", false),
	}

	result := Compare(baseline, current)
	require.Len(t, result.Modified, 1)
	m := result.Modified[0]
	assert.True(t, m.InheritanceOnly())
	assert.False(t, m.OldInheritance)
	assert.True(t, m.NewInheritance)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "r2|p2", result.Added[0].Key())
	assert.Empty(t, result.Removed)
}

func TestComparePartition(t *testing.T) {
	// Every current key lands in exactly one bucket.
	baseline := []models.PermissionEntry{
		entry("r1", "p1", "read", false),
		entry("r1", "p2", "write", false),
		entry("r2", "p1", "read", false),
	}
	current := []models.PermissionEntry{
		entry("r1", "p1", "read", false),  // unchanged
		entry("r1", "p2", "owner", false), // modified
		entry("r3", "p3", "read", false),  // added
	}

	result := Compare(baseline, current)
	s := result.Summary
	assert.Equal(t, 3, s.TotalBaseline)
	assert.Equal(t, 3, s.TotalCurrent)
	assert.Equal(t, s.TotalCurrent, s.AddedCount+s.ModifiedCount+s.UnchangedCount)
	assert.Equal(t, s.TotalBaseline, s.RemovedCount+s.ModifiedCount+s.UnchangedCount)
}

func TestCompareEmptySides(t *testing.T) {
	only := []models.PermissionEntry{entry("r1", "p1", "read", false)}

	result := Compare(nil, only)
	assert.Equal(t, 1, result.Summary.AddedCount)
	assert.Equal(t, 0, result.Summary.RemovedCount)

	result = Compare(only, nil)
	assert.Equal(t, 0, result.Summary.AddedCount)
	assert.Equal(t, 1, result.Summary.RemovedCount)

	result = Compare(nil, nil)
	assert.False(t, result.Summary.HasChanges())
}
