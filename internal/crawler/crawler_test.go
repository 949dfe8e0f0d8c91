package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI serves a small content hierarchy:
//
//	site1 (drive d1)
//	  root: folderA, file1.txt
//	  folderA: file2.txt
//
// file2.txt carries a direct grant; everything else inherits.
type fakeAPI struct {
	mux *http.ServeMux

	// Handlers run on server goroutines; the call counter needs the lock.
	mu              sync.Mutex
	permissionCalls map[string]int
}

func (f *fakeAPI) calls(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permissionCalls[itemID]
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{mux: http.NewServeMux(), permissionCalls: map[string]int{}}
	server := httptest.NewServer(f.mux)
	t.Cleanup(server.Close)

	f.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`)
	})

	f.list("/v1.0/sites", []graph.Site{
		{ID: "site1", DisplayName: "Team Site", WebURL: "https://example.com/site1"},
	})
	f.mux.HandleFunc("/v1.0/sites/site1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(graph.Site{ID: "site1", DisplayName: "Team Site", WebURL: "https://example.com/site1"})
	})
	f.list("/v1.0/sites/site1/drives", []graph.Drive{{ID: "d1", Name: "Documents"}})

	folder := &graph.FolderFacet{ChildCount: 1}
	f.list("/v1.0/drives/d1/root/children", []graph.DriveItem{
		{ID: "folderA", Name: "folderA", WebURL: "https://example.com/folderA", Folder: folder},
		{ID: "file1", Name: "file1.txt", WebURL: "https://example.com/file1"},
	})
	f.list("/v1.0/drives/d1/items/folderA/children", []graph.DriveItem{
		{ID: "file2", Name: "file2.txt", WebURL: "https://example.com/file2"},
	})

	inherited := graph.Permission{
		ID:            "inh",
		Roles:         []string{"read"},
		InheritedFrom: &graph.ItemRef{ID: "site1"},
		GrantedTo: &graph.IdentitySet{
			Group: &graph.Identity{ID: "g1", DisplayName: "Team Members"},
		},
	}
	direct := graph.Permission{
		ID:    "dir",
		Roles: []string{"write"},
		GrantedTo: &graph.IdentitySet{
			User: &graph.Identity{ID: "user-ext-1", DisplayName: "Eve", Email: "eve@example.com"},
		},
	}
	f.permissions("folderA", []graph.Permission{inherited})
	f.permissions("file1", []graph.Permission{inherited})
	f.permissions("file2", []graph.Permission{inherited, direct})

	return f, server
}

func (f *fakeAPI) list(path string, value any) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": value})
	})
}

func (f *fakeAPI) permissions(itemID string, perms []graph.Permission) {
	f.mux.HandleFunc("/v1.0/drives/d1/items/"+itemID+"/permissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.permissionCalls[itemID]++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"value": perms})
	})
}

func newTestCrawler(t *testing.T, server *httptest.Server) *Crawler {
	t.Helper()
	require.NoError(t, database.Open(filepath.Join(t.TempDir(), "test.db")))

	log := zap.NewNop()
	client := graph.NewClient(context.Background(), graph.Config{
		TenantID:     "tenant1",
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      server.URL + "/v1.0",
		TokenURL:     server.URL + "/token",
	}, log)

	cfg := DefaultConfig("tenant1")
	cfg.BatchDelay = time.Millisecond
	return New(client, cfg, log)
}

func TestCrawlStructure(t *testing.T) {
	_, server := newFakeAPI(t)
	c := newTestCrawler(t, server)

	result, err := c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SitesFound)
	assert.Equal(t, 1, result.FoldersFound)
	assert.Equal(t, 2, result.FilesFound)
	assert.Zero(t, result.Errors)

	entries, err := database.SitePermissions("site1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	byResource := map[string]models.PermissionEntry{}
	for _, e := range entries {
		byResource[e.ResourceID] = e
	}
	assert.Equal(t, models.ResourceTypeSite, byResource["site1"].ResourceType)
	assert.Equal(t, models.ResourceTypeFolder, byResource["folderA"].ResourceType)
	assert.Equal(t, models.ResourceTypeFile, byResource["file2"].ResourceType)
	assert.Equal(t, "d1", byResource["file1"].DriveID)

	// Root-level items have no parent, nested items point at their folder.
	assert.Nil(t, byResource["folderA"].ParentResourceID)
	require.NotNil(t, byResource["file2"].ParentResourceID)
	assert.Equal(t, "folderA", *byResource["file2"].ParentResourceID)

	// The progress record completed.
	status, err := database.GetCollectionStatus(result.JobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, "structure", status.Phase)
}

func TestCrawlStructureIdempotent(t *testing.T) {
	_, server := newFakeAPI(t)
	c := newTestCrawler(t, server)

	_, err := c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)
	_, err = c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)

	count, err := database.CountSitePermissions("site1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestCollectPermissions(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newTestCrawler(t, server)

	_, err := c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)

	result, err := c.CollectPermissions(context.Background(), "site1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total) // folderA, file1, file2
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.UniqueFound) // only file2 has a direct grant
	assert.Zero(t, result.Errors)
	assert.Equal(t, 1, api.calls("file2"))

	entries, err := database.SitePermissions("site1")
	require.NoError(t, err)

	var file2Grants []models.PermissionEntry
	for _, e := range entries {
		if e.ResourceID == "file2" && e.PrincipalType != models.PrincipalTypeResource {
			file2Grants = append(file2Grants, e)
		}
	}
	require.Len(t, file2Grants, 2)
	for _, g := range file2Grants {
		// file2 has a direct grant, so its inheritance is broken.
		assert.True(t, g.HasBrokenInheritance)
	}

	// folderA only inherits: flag stays clear.
	for _, e := range entries {
		if e.ResourceID == "folderA" {
			assert.False(t, e.HasBrokenInheritance)
		}
	}

	status, err := database.GetCollectionStatus(result.JobID)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, 1, status.UniqueFound)
}

func TestCollectPermissionsSkipsMissingData(t *testing.T) {
	_, server := newFakeAPI(t)
	c := newTestCrawler(t, server)
	_, err := c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)

	// Give file1 an id the API has never heard of; its permission listing
	// 404s, which means no data rather than an error.
	require.NoError(t, database.DB.Model(&models.PermissionEntry{}).
		Where("resource_id = ?", "file1").
		Update("resource_id", "ghost").Error)

	result, err := c.CollectPermissions(context.Background(), "site1")
	require.NoError(t, err)
	assert.Zero(t, result.Errors)
	assert.Equal(t, 1, result.Skipped)
}

func TestCollectPermissionsAuthFailureFailsPass(t *testing.T) {
	_, server := newFakeAPI(t)
	c := newTestCrawler(t, server)
	_, err := c.CrawlStructure(context.Background(), "")
	require.NoError(t, err)

	// A collector whose token endpoint rejects the credentials. Every call
	// would fail the same way, so the pass must abort instead of grinding
	// through the batches as per-resource errors.
	badMux := http.NewServeMux()
	badMux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	badServer := httptest.NewServer(badMux)
	t.Cleanup(badServer.Close)

	log := zap.NewNop()
	client := graph.NewClient(context.Background(), graph.Config{
		TenantID:     "tenant1",
		ClientID:     "client",
		ClientSecret: "wrong",
		BaseURL:      badServer.URL + "/v1.0",
		TokenURL:     badServer.URL + "/token",
	}, log)
	cfg := DefaultConfig("tenant1")
	cfg.BatchDelay = time.Millisecond
	bad := New(client, cfg, log)

	result, err := bad.CollectPermissions(context.Background(), "site1")
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrAuth)
	assert.Zero(t, result.Processed)

	status, dbErr := database.GetCollectionStatus(result.JobID)
	require.NoError(t, dbErr)
	assert.Equal(t, "error", status.Status)
	assert.NotEmpty(t, status.Message)
}
