package detect

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) *Service {
	t.Helper()
	require.NoError(t, database.Open(filepath.Join(t.TempDir(), "test.db")))
	log := zap.NewNop()
	return NewService(baseline.NewManager(log), nil, log)
}

func seed(t *testing.T, siteID, resourceID, principalID, level string, broken bool) {
	t.Helper()
	entry := models.PermissionEntry{
		TenantID:             "tenant1",
		ResourceType:         models.ResourceTypeFolder,
		ResourceID:           resourceID,
		ResourceName:         "res " + resourceID,
		SiteID:               siteID,
		PrincipalType:        models.PrincipalTypeUser,
		PrincipalID:          principalID,
		PrincipalName:        "principal " + principalID,
		PermissionLevel:      level,
		PermissionType:       models.PermissionTypeDirect,
		HasBrokenInheritance: broken,
		CollectedAt:          time.Now().UTC(),
	}
	require.NoError(t, database.UpsertStructure(&entry))
}

func setFlags(t *testing.T, siteID, resourceID, principalID, level string, broken bool) {
	t.Helper()
	require.NoError(t, database.DB.Model(&models.PermissionEntry{}).
		Where("site_id = ? AND resource_id = ? AND principal_id = ?", siteID, resourceID, principalID).
		Updates(map[string]any{"permission_level": level, "has_broken_inheritance": broken}).Error)
}

func createActiveBaseline(t *testing.T, svc *Service, siteID string) int64 {
	t.Helper()
	log := zap.NewNop()
	b, err := baseline.NewManager(log).Create(baseline.CreateOptions{
		SiteID:   siteID,
		Name:     "test",
		Activate: true,
	})
	require.NoError(t, err)
	return b.ID
}

func TestDetectSiteNoBaseline(t *testing.T) {
	svc := setup(t)

	result, err := svc.DetectSite("site1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoBaseline, result.Outcome)
}

func TestDetectSiteNoChanges(t *testing.T) {
	svc := setup(t)
	seed(t, "site1", "r1", "alice", "read", false)
	createActiveBaseline(t, svc, "site1")

	result, err := svc.DetectSite("site1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChanges, result.Outcome)
	assert.Zero(t, result.ChangesLogged)

	changes, err := database.ListChanges(database.ChangeFilter{SiteID: "site1"})
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDetectSiteRecordsChanges(t *testing.T) {
	svc := setup(t)
	seed(t, "site1", "r1", "alice", "read", false)
	seed(t, "site1", "r1", "bob", "read", false)
	baselineID := createActiveBaseline(t, svc, "site1")

	// bob loses access, mallory gains it, alice is escalated.
	require.NoError(t, database.DB.
		Where("site_id = ? AND principal_id = ?", "site1", "bob").
		Delete(&models.PermissionEntry{}).Error)
	seed(t, "site1", "r1", "mallory", "owner", false)
	setFlags(t, "site1", "r1", "alice", "write", false)

	result, err := svc.DetectSite("site1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChangesDetected, result.Outcome)
	assert.Equal(t, 3, result.ChangesLogged)

	changes, err := database.ListChanges(database.ChangeFilter{BaselineID: baselineID})
	require.NoError(t, err)
	require.Len(t, changes, 3)

	byType := map[models.ChangeType]models.Change{}
	for _, ch := range changes {
		byType[ch.ChangeType] = ch
	}

	added := byType[models.ChangeTypeAdded]
	assert.Equal(t, "mallory", added.PrincipalID)
	assert.Nil(t, added.OldPermission)
	require.NotNil(t, added.NewPermission)

	removed := byType[models.ChangeTypeRemoved]
	assert.Equal(t, "bob", removed.PrincipalID)
	assert.Nil(t, removed.NewPermission)

	modified := byType[models.ChangeTypeModified]
	assert.Equal(t, "alice", modified.PrincipalID)
	var oldSnap, newSnap models.PermissionSnapshot
	require.NoError(t, json.Unmarshal([]byte(*modified.OldPermission), &oldSnap))
	require.NoError(t, json.Unmarshal([]byte(*modified.NewPermission), &newSnap))
	assert.Equal(t, "read", oldSnap.PermissionLevel)
	assert.Equal(t, "write", newSnap.PermissionLevel)
}

func TestDetectSiteInheritanceRefinement(t *testing.T) {
	svc := setup(t)
	seed(t, "site1", "r1", "alice", "read", false)
	seed(t, "site1", "r2", "bob", "read", true)
	createActiveBaseline(t, svc, "site1")

	// r1 breaks inheritance, r2 restores it; neither level changes.
	setFlags(t, "site1", "r1", "alice", "read", true)
	setFlags(t, "site1", "r2", "bob", "read", false)

	result, err := svc.DetectSite("site1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChangesLogged)

	changes, err := database.ListChanges(database.ChangeFilter{SiteID: "site1"})
	require.NoError(t, err)
	types := map[models.ChangeType]int{}
	for _, ch := range changes {
		types[ch.ChangeType]++
	}
	assert.Equal(t, 1, types[models.ChangeTypeInheritanceBroken])
	assert.Equal(t, 1, types[models.ChangeTypeInheritanceRestored])
	assert.Zero(t, types[models.ChangeTypeModified])
}

func TestDetectAllSkipsFailingSites(t *testing.T) {
	svc := setup(t)
	seed(t, "site1", "r1", "alice", "read", false)
	createActiveBaseline(t, svc, "site1")

	// A baseline with an unparseable payload makes site2 fail.
	bad := &models.Baseline{SiteID: "site2", BaselineName: "bad", BaselineData: "not json"}
	require.NoError(t, database.CreateBaseline(bad, true))

	results, err := svc.DetectAll()
	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "site1", results[0].SiteID)
}

func TestMarkReviewedIdempotent(t *testing.T) {
	svc := setup(t)
	seed(t, "site1", "r1", "alice", "read", false)
	createActiveBaseline(t, svc, "site1")
	seed(t, "site1", "r1", "mallory", "owner", false)

	_, err := svc.DetectSite("site1")
	require.NoError(t, err)

	changes, err := database.ListChanges(database.ChangeFilter{SiteID: "site1"})
	require.NoError(t, err)
	require.Len(t, changes, 1)

	flipped, err := svc.MarkReviewed([]int64{changes[0].ID}, "auditor", "ok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	flipped, err = svc.MarkReviewed([]int64{changes[0].ID}, "auditor", "again")
	require.NoError(t, err)
	assert.Zero(t, flipped)
}
