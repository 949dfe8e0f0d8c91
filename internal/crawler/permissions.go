package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/classify"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/graph"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PermissionResult summarizes one permission pass. UniqueFound counts the
// resources carrying unique (non-inherited) grants.
type PermissionResult struct {
	JobID       string
	Total       int
	Processed   int
	UniqueFound int
	Skipped     int
	Errors      int
}

// CollectPermissions runs the permission pass over every previously discovered
// folder and file (optionally scoped to one site): list each resource's raw
// grants, classify them, and atomically replace the resource's grant rows.
// Progress is written to a pollable status record per batch.
func (c *Crawler) CollectPermissions(ctx context.Context, siteID string) (*PermissionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resources, err := database.ListCollectableResources(siteID)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	jobID := uuid.NewString()
	status := &models.CollectionStatus{
		JobID:     jobID,
		TenantID:  c.cfg.TenantID,
		Phase:     "permissions",
		Total:     len(resources),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	if err := database.CreateCollectionStatus(status); err != nil {
		return nil, fmt.Errorf("recording collection status: %w", err)
	}

	result := &PermissionResult{JobID: jobID, Total: len(resources)}
	c.log.Info("permission pass started",
		zap.String("job_id", jobID), zap.Int("resources", len(resources)), zap.String("site", siteID))

	runErr := c.collectPermissions(ctx, jobID, resources, result)

	final := map[string]any{
		"status":       "completed",
		"processed":    result.Processed,
		"unique_found": result.UniqueFound,
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

func (c *Crawler) collectPermissions(ctx context.Context, jobID string, resources []models.PermissionEntry, result *PermissionResult) error {
	for start := 0; start < len(resources); start += c.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + c.cfg.BatchSize
		if end > len(resources) {
			end = len(resources)
		}
		batch := resources[start:end]

		// Grant fetches run concurrently; persistence happens here, in batch
		// order, since the store has a single writer.
		type fetched struct {
			grants    []models.PermissionEntry
			hasBroken bool
			hasData   bool
			err       error
		}
		results := make([]fetched, len(batch))
		var wg sync.WaitGroup
		for i, res := range batch {
			wg.Add(1)
			go func(i int, res models.PermissionEntry) {
				defer wg.Done()
				grants, hasBroken, hasData, err := c.fetchGrants(ctx, res)
				results[i] = fetched{grants: grants, hasBroken: hasBroken, hasData: hasData, err: err}
			}(i, res)
		}
		wg.Wait()

		for i, res := range batch {
			r := results[i]
			if r.err != nil {
				// A token failure poisons every remaining call; fail the
				// whole pass instead of burning through the batches.
				if errors.Is(r.err, graph.ErrAuth) {
					return fmt.Errorf("collecting permissions for %s: %w", res.ResourceName, r.err)
				}
				c.log.Warn("permission collection failed",
					zap.String("resource", res.ResourceName), zap.Error(r.err))
				result.Errors++
				continue
			}
			if !r.hasData {
				result.Skipped++
				continue
			}
			if r.hasBroken {
				result.UniqueFound++
			}
			sentinel := models.StructurePrincipalID(res.ResourceType, res.ResourceID)
			if err := database.ReplaceGrants(res.ResourceID, sentinel, r.hasBroken, r.grants); err != nil {
				c.log.Warn("grant persistence failed",
					zap.String("resource", res.ResourceName), zap.Error(err))
				result.Errors++
			}
		}
		result.Processed += len(batch)

		if err := database.UpdateCollectionStatus(jobID, map[string]any{
			"processed":    result.Processed,
			"unique_found": result.UniqueFound,
			"errors":       result.Errors,
		}); err != nil {
			c.log.Warn("status update failed", zap.String("job_id", jobID), zap.Error(err))
		}

		if end < len(resources) {
			select {
			case <-time.After(c.cfg.BatchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// fetchGrants fetches and classifies one resource's grants. hasData false
// without error means the resource had no permission data, which is normal
// for some item types and never counted as a failure.
func (c *Crawler) fetchGrants(ctx context.Context, res models.PermissionEntry) (grants []models.PermissionEntry, hasBroken, hasData bool, err error) {
	if res.DriveID == "" {
		return nil, false, false, nil
	}

	perms, err := c.listPermissions(ctx, res.DriveID, res.ResourceID)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, false, false, nil
		}
		return nil, false, false, err
	}

	hasBroken = classify.HasBrokenInheritance(perms)
	now := time.Now().UTC()

	for _, p := range perms {
		g, ok := classify.FromPermission(p, res.ResourceName)
		if !ok {
			continue
		}
		grants = append(grants, models.PermissionEntry{
			TenantID:         c.cfg.TenantID,
			ResourceType:     res.ResourceType,
			ResourceID:       res.ResourceID,
			ResourceName:     res.ResourceName,
			ResourceURL:      res.ResourceURL,
			ParentResourceID: res.ParentResourceID,
			SiteID:           res.SiteID,
			SiteURL:          res.SiteURL,
			DriveID:          res.DriveID,
			PrincipalType:    g.PrincipalType,
			PrincipalID:      g.PrincipalID,
			PrincipalName:    g.PrincipalName,
			PrincipalEmail:   g.PrincipalEmail,
			IsHuman:          g.IsHuman,
			PermissionLevel:  g.PermissionLevel,
			PermissionType:   g.PermissionType,
			CollectedAt:      now,
		})
	}

	return grants, hasBroken, true, nil
}
