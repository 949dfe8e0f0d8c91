// Package crawler walks the tenant's content hierarchy in two passes: a
// structure pass that discovers every site, folder, and file, and a
// permission pass that collects and classifies the grants on each discovered
// resource.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config bounds a crawl pass.
type Config struct {
	// BatchSize is the number of resources processed concurrently.
	BatchSize int
	// BatchDelay is the pause between batches, the primary throttle.
	BatchDelay time.Duration
	// MaxDepth caps hierarchy descent; deeper items are not visited.
	MaxDepth int
	// Timeout bounds one whole pass.
	Timeout time.Duration

	TenantID string
}

// DefaultConfig returns the crawl limits tuned against upstream throttling.
func DefaultConfig(tenantID string) Config {
	return Config{
		BatchSize:  5,
		BatchDelay: time.Second,
		MaxDepth:   10,
		Timeout:    time.Hour,
		TenantID:   tenantID,
	}
}

// Crawler runs structure and permission passes against one tenant.
type Crawler struct {
	client *graph.Client
	cfg    Config
	log    *zap.Logger

	// apiRetry handles throttling: 3 attempts, 5s then 10s waits.
	apiRetry retry.Policy
}

func New(client *graph.Client, cfg Config, log *zap.Logger) *Crawler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}
	return &Crawler{
		client: client,
		cfg:    cfg,
		log:    log.Named("crawler"),
		apiRetry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   5 * time.Second,
			Retryable:   func(err error) bool { return errors.Is(err, graph.ErrThrottled) },
		},
	}
}

// StructureResult summarizes one structure pass.
type StructureResult struct {
	JobID         string
	SitesFound    int
	FoldersFound  int
	FilesFound    int
	OrphansHealed int64
	Errors        int
}

// workItem is one pending hierarchy node of the explicit traversal worklist.
type workItem struct {
	itemID   string // "" means the drive root
	parentID *string
	depth    int
}

// CrawlStructure walks every site (or just siteID when non-empty) and upserts
// a structure row per discovered resource. Folders are processed in concurrent
// batches off an explicit worklist instead of recursion, so depth and pacing
// stay enforceable.
func (c *Crawler) CrawlStructure(ctx context.Context, siteID string) (*StructureResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jobID := uuid.NewString()
	status := &models.CollectionStatus{
		JobID:     jobID,
		TenantID:  c.cfg.TenantID,
		Phase:     "structure",
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	if err := database.CreateCollectionStatus(status); err != nil {
		return nil, fmt.Errorf("recording crawl status: %w", err)
	}

	result := &StructureResult{JobID: jobID}
	runErr := c.crawlStructure(ctx, siteID, result)

	final := map[string]any{
		"status":       "completed",
		"total":        result.SitesFound,
		"processed":    result.SitesFound,
		"unique_found": result.FoldersFound + result.FilesFound,
		"errors":       result.Errors,
	}
	if runErr != nil {
		final["status"] = "error"
		final["message"] = runErr.Error()
	}
	if err := database.UpdateCollectionStatus(jobID, final); err != nil {
		c.log.Warn("status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return result, runErr
}

func (c *Crawler) crawlStructure(ctx context.Context, siteID string, result *StructureResult) error {
	var sites []graph.Site
	if siteID != "" {
		site, err := c.getSite(ctx, siteID)
		if err != nil {
			return fmt.Errorf("loading site %s: %w", siteID, err)
		}
		sites = []graph.Site{*site}
	} else {
		var err error
		sites, err = c.listSites(ctx)
		if err != nil {
			return fmt.Errorf("listing sites: %w", err)
		}
	}
	result.SitesFound = len(sites)
	c.log.Info("structure pass started", zap.Int("sites", len(sites)))

	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.crawlSite(ctx, site, result); err != nil {
			c.log.Error("site crawl failed", zap.String("site", site.Label()), zap.Error(err))
			result.Errors++
			continue
		}
		healed, err := database.HealOrphans(site.ID)
		if err != nil {
			c.log.Warn("orphan healing failed", zap.String("site", site.Label()), zap.Error(err))
		}
		result.OrphansHealed += healed
	}
	return nil
}

func (c *Crawler) crawlSite(ctx context.Context, site graph.Site, result *StructureResult) error {
	now := time.Now().UTC()
	sentinel := &models.PermissionEntry{
		TenantID:        c.cfg.TenantID,
		ResourceType:    models.ResourceTypeSite,
		ResourceID:      site.ID,
		ResourceName:    site.Label(),
		ResourceURL:     site.WebURL,
		SiteID:          site.ID,
		SiteURL:         site.WebURL,
		PrincipalType:   models.PrincipalTypeResource,
		PrincipalID:     models.StructurePrincipalID(models.ResourceTypeSite, site.ID),
		PrincipalName:   site.Label(),
		PermissionType:  models.PermissionTypeStructure,
		PermissionLevel: "N/A",
		CollectedAt:     now,
	}
	if err := database.UpsertStructure(sentinel); err != nil {
		return fmt.Errorf("recording site: %w", err)
	}

	drives, err := c.listDrives(ctx, site.ID)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("listing drives: %w", err)
	}

	for _, drive := range drives {
		if err := c.crawlDrive(ctx, site, drive, result); err != nil {
			return err
		}
	}
	return nil
}

// crawlDrive drains the drive's folder worklist in batches of cfg.BatchSize,
// pausing cfg.BatchDelay between batches.
func (c *Crawler) crawlDrive(ctx context.Context, site graph.Site, drive graph.Drive, result *StructureResult) error {
	worklist := []workItem{{itemID: "", parentID: nil, depth: 0}}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := worklist
		if len(batch) > c.cfg.BatchSize {
			batch = batch[:c.cfg.BatchSize]
		}
		worklist = worklist[len(batch):]

		// Listings run concurrently; the single-writer store is fed from
		// this goroutine only.
		type listing struct {
			item     workItem
			children []graph.DriveItem
			err      error
		}
		listings := make([]listing, len(batch))
		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(i int, item workItem) {
				defer wg.Done()
				children, err := c.listFolder(ctx, drive.ID, item.itemID)
				listings[i] = listing{item: item, children: children, err: err}
			}(i, item)
		}
		wg.Wait()

		for _, l := range listings {
			if l.err != nil {
				c.log.Warn("folder listing failed",
					zap.String("drive", drive.Name), zap.String("item", l.item.itemID), zap.Error(l.err))
				result.Errors++
				continue
			}
			next, folders, files, err := c.recordChildren(site, drive, l.item, l.children)
			if err != nil {
				return err
			}
			worklist = append(worklist, next...)
			result.FoldersFound += folders
			result.FilesFound += files
		}

		if len(worklist) > 0 {
			select {
			case <-time.After(c.cfg.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// listFolder lists one folder's children, treating a missing folder as empty.
func (c *Crawler) listFolder(ctx context.Context, driveID, itemID string) ([]graph.DriveItem, error) {
	children, err := c.listChildren(ctx, driveID, itemID)
	if err != nil && errors.Is(err, graph.ErrNotFound) {
		return nil, nil
	}
	return children, err
}

// recordChildren upserts a structure row per child and returns the subfolders
// still within the depth limit, plus folder and file counts.
func (c *Crawler) recordChildren(site graph.Site, drive graph.Drive, item workItem, children []graph.DriveItem) ([]workItem, int, int, error) {
	now := time.Now().UTC()
	var next []workItem
	folders, files := 0, 0
	for _, child := range children {
		resourceType := models.ResourceTypeFile
		if child.IsFolder() {
			resourceType = models.ResourceTypeFolder
		}
		entry := &models.PermissionEntry{
			TenantID:         c.cfg.TenantID,
			ResourceType:     resourceType,
			ResourceID:       child.ID,
			ResourceName:     child.Name,
			ResourceURL:      child.WebURL,
			ParentResourceID: item.parentID,
			SiteID:           site.ID,
			SiteURL:          site.WebURL,
			DriveID:          drive.ID,
			PrincipalType:    models.PrincipalTypeResource,
			PrincipalID:      models.StructurePrincipalID(resourceType, child.ID),
			PrincipalName:    child.Name,
			PermissionType:   models.PermissionTypeStructure,
			PermissionLevel:  "N/A",
			CollectedAt:      now,
		}
		if err := database.UpsertStructure(entry); err != nil {
			return next, folders, files, fmt.Errorf("recording %s: %w", child.Name, err)
		}
		if child.IsFolder() {
			folders++
		} else {
			files++
		}

		if child.IsFolder() && item.depth+1 < c.cfg.MaxDepth {
			id := child.ID
			next = append(next, workItem{itemID: child.ID, parentID: &id, depth: item.depth + 1})
		}
	}
	return next, folders, files, nil
}

// Throttle-aware wrappers around the API surface.

func (c *Crawler) listSites(ctx context.Context) (sites []graph.Site, err error) {
	err = c.apiRetry.Do(ctx, func() error {
		sites, err = c.client.ListSites(ctx)
		return err
	})
	return sites, err
}

func (c *Crawler) getSite(ctx context.Context, siteID string) (site *graph.Site, err error) {
	err = c.apiRetry.Do(ctx, func() error {
		site, err = c.client.GetSite(ctx, siteID)
		return err
	})
	return site, err
}

func (c *Crawler) listDrives(ctx context.Context, siteID string) (drives []graph.Drive, err error) {
	err = c.apiRetry.Do(ctx, func() error {
		drives, err = c.client.ListDrives(ctx, siteID)
		return err
	})
	return drives, err
}

func (c *Crawler) listChildren(ctx context.Context, driveID, folderID string) (items []graph.DriveItem, err error) {
	err = c.apiRetry.Do(ctx, func() error {
		items, err = c.client.ListChildren(ctx, driveID, folderID)
		return err
	})
	return items, err
}

func (c *Crawler) listPermissions(ctx context.Context, driveID, itemID string) (perms []graph.Permission, err error) {
	err = c.apiRetry.Do(ctx, func() error {
		perms, err = c.client.ListPermissions(ctx, driveID, itemID)
		return err
	})
	return perms, err
}
