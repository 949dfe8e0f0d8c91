package database

import (
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structureEntry(siteID, resourceID string, resourceType models.ResourceType, parent *string) models.PermissionEntry {
	return models.PermissionEntry{
		TenantID:         "tenant1",
		ResourceType:     resourceType,
		ResourceID:       resourceID,
		ResourceName:     "name " + resourceID,
		ParentResourceID: parent,
		SiteID:           siteID,
		DriveID:          "drive1",
		PrincipalType:    models.PrincipalTypeResource,
		PrincipalID:      models.StructurePrincipalID(resourceType, resourceID),
		PrincipalName:    "name " + resourceID,
		PermissionType:   models.PermissionTypeStructure,
		PermissionLevel:  "N/A",
		CollectedAt:      time.Now().UTC(),
	}
}

func TestUpsertStructureIdempotent(t *testing.T) {
	openTestDB(t)

	e := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
	require.NoError(t, UpsertStructure(&e))

	// Re-discovery with a new name must update, not duplicate.
	e2 := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
	e2.ResourceName = "renamed"
	require.NoError(t, UpsertStructure(&e2))

	count, err := CountSitePermissions("site1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries, err := SitePermissions("site1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].ResourceName)
}

func TestReplaceGrants(t *testing.T) {
	openTestDB(t)

	e := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
	require.NoError(t, UpsertStructure(&e))
	sentinel := e.PrincipalID

	grant := func(principalID, level string) models.PermissionEntry {
		g := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
		g.PrincipalType = models.PrincipalTypeUser
		g.PrincipalID = principalID
		g.PrincipalName = principalID
		g.PermissionType = models.PermissionTypeDirect
		g.PermissionLevel = level
		return g
	}

	require.NoError(t, ReplaceGrants("folder1", sentinel, false, []models.PermissionEntry{
		grant("alice", "read"),
		grant("bob", "write"),
	}))

	entries, err := SitePermissions("site1")
	require.NoError(t, err)
	assert.Len(t, entries, 3) // sentinel + 2 grants

	// Re-collection drops bob, keeps alice at a new level, breaks inheritance.
	require.NoError(t, ReplaceGrants("folder1", sentinel, true, []models.PermissionEntry{
		grant("alice", "owner"),
	}))

	entries, err = SitePermissions("site1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.True(t, entry.HasBrokenInheritance, entry.PrincipalID)
		if entry.PrincipalID == "alice" {
			assert.Equal(t, "owner", entry.PermissionLevel)
		}
	}
}

func TestListCollectableResources(t *testing.T) {
	openTestDB(t)

	site := structureEntry("site1", "site1", models.ResourceTypeSite, nil)
	folder := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
	file := structureEntry("site1", "file1", models.ResourceTypeFile, strptr("folder1"))
	other := structureEntry("site2", "folder2", models.ResourceTypeFolder, nil)
	for _, e := range []*models.PermissionEntry{&site, &folder, &file, &other} {
		require.NoError(t, UpsertStructure(e))
	}

	all, err := ListCollectableResources("")
	require.NoError(t, err)
	assert.Len(t, all, 3) // sites are never collected directly

	scoped, err := ListCollectableResources("site1")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
}

func TestHealOrphans(t *testing.T) {
	openTestDB(t)

	folder := structureEntry("site1", "folder1", models.ResourceTypeFolder, nil)
	child := structureEntry("site1", "file1", models.ResourceTypeFile, strptr("folder1"))
	orphan := structureEntry("site1", "file2", models.ResourceTypeFile, strptr("ghost"))
	for _, e := range []*models.PermissionEntry{&folder, &child, &orphan} {
		require.NoError(t, UpsertStructure(e))
	}

	healed, err := HealOrphans("site1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), healed)

	entries, err := SitePermissions("site1")
	require.NoError(t, err)
	for _, entry := range entries {
		switch entry.ResourceID {
		case "file1":
			require.NotNil(t, entry.ParentResourceID)
		case "file2":
			assert.Nil(t, entry.ParentResourceID)
		}
	}
}

func strptr(s string) *string { return &s }
