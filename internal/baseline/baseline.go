// Package baseline captures and manages named snapshots of a site's
// permission state.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/diff"
	"github.com/driftwatch/driftwatch/internal/models"
	"go.uber.org/zap"
)

// ErrNoPermissionData is returned when a baseline is requested for a site
// with no collected snapshot rows.
var ErrNoPermissionData = errors.New("no permission data collected for site")

// Manager creates, inspects, and compares baselines.
type Manager struct {
	log *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{log: log}
}

// CreateOptions names and attributes a new baseline.
type CreateOptions struct {
	SiteID      string
	Name        string
	Description string
	CreatedBy   string
	Activate    bool
}

// Create copies the site's current snapshot rows into an immutable baseline
// payload. With Activate set, any previously active baseline for the site is
// deactivated in the same transaction.
func (m *Manager) Create(opts CreateOptions) (*models.Baseline, error) {
	entries, err := database.SitePermissions(opts.SiteID)
	if err != nil {
		return nil, fmt.Errorf("loading site permissions: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoPermissionData
	}

	siteURL := ""
	for _, e := range entries {
		if e.SiteURL != "" {
			siteURL = e.SiteURL
			break
		}
	}

	payload := models.BaselinePayload{
		Timestamp:        time.Now().UTC(),
		SiteID:           opts.SiteID,
		SiteURL:          siteURL,
		TotalPermissions: len(entries),
		Permissions:      entries,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing baseline payload: %w", err)
	}

	b := &models.Baseline{
		SiteID:              opts.SiteID,
		SiteURL:             siteURL,
		BaselineName:        opts.Name,
		BaselineDescription: opts.Description,
		BaselineData:        string(data),
		CreatedBy:           opts.CreatedBy,
		IsActive:            opts.Activate,
	}
	if err := database.CreateBaseline(b, opts.Activate); err != nil {
		return nil, fmt.Errorf("saving baseline: %w", err)
	}

	m.log.Info("baseline created",
		zap.Int64("baseline_id", b.ID),
		zap.String("site_id", opts.SiteID),
		zap.Int("permissions", len(entries)),
		zap.Bool("active", opts.Activate))
	return b, nil
}

// Payload deserializes a baseline's stored snapshot.
func Payload(b *models.Baseline) (*models.BaselinePayload, error) {
	var payload models.BaselinePayload
	if err := json.Unmarshal([]byte(b.BaselineData), &payload); err != nil {
		return nil, fmt.Errorf("parsing baseline %d payload: %w", b.ID, err)
	}
	return &payload, nil
}

// Statistics summarizes a baseline from its stored payload alone. It never
// consults the live snapshot.
type Statistics struct {
	BaselineID        int64          `json:"baseline_id"`
	SiteID            string         `json:"site_id"`
	CapturedAt        time.Time      `json:"captured_at"`
	TotalPermissions  int            `json:"total_permissions"`
	UniqueResources   int            `json:"unique_resources"`
	UniquePrincipals  int            `json:"unique_principals"`
	UserCount         int            `json:"user_count"`
	GroupCount        int            `json:"group_count"`
	BrokenInheritance int            `json:"broken_inheritance_resources"`
	PermissionLevels  map[string]int `json:"permission_levels"`
}

// Stats computes the summary statistics of one baseline.
func (m *Manager) Stats(baselineID int64) (*Statistics, error) {
	b, err := database.GetBaseline(baselineID)
	if err != nil {
		return nil, err
	}
	payload, err := Payload(b)
	if err != nil {
		return nil, err
	}

	resources := map[string]struct{}{}
	principals := map[string]struct{}{}
	users := map[string]struct{}{}
	groups := map[string]struct{}{}
	broken := map[string]struct{}{}
	levels := map[string]int{}
	for _, e := range payload.Permissions {
		resources[e.ResourceID] = struct{}{}
		principals[e.PrincipalID] = struct{}{}
		switch e.PrincipalType {
		case models.PrincipalTypeUser:
			users[e.PrincipalID] = struct{}{}
		case models.PrincipalTypeGroup:
			groups[e.PrincipalID] = struct{}{}
		}
		if e.HasBrokenInheritance {
			broken[e.ResourceID] = struct{}{}
		}
		if e.PermissionLevel != "" {
			levels[e.PermissionLevel]++
		}
	}

	return &Statistics{
		BaselineID:        b.ID,
		SiteID:            b.SiteID,
		CapturedAt:        payload.Timestamp,
		TotalPermissions:  payload.TotalPermissions,
		UniqueResources:   len(resources),
		UniquePrincipals:  len(principals),
		UserCount:         len(users),
		GroupCount:        len(groups),
		BrokenInheritance: len(broken),
		PermissionLevels:  levels,
	}, nil
}

// Compare diffs a baseline's stored payload against the site's live snapshot.
// The summary is cached best-effort; a cache write failure only logs.
func (m *Manager) Compare(baselineID int64) (*diff.Result, error) {
	b, err := database.GetBaseline(baselineID)
	if err != nil {
		return nil, err
	}
	payload, err := Payload(b)
	if err != nil {
		return nil, err
	}
	current, err := database.SitePermissions(b.SiteID)
	if err != nil {
		return nil, fmt.Errorf("loading current permissions: %w", err)
	}

	result := diff.Compare(payload.Permissions, current)

	summaryJSON, _ := json.Marshal(result.Summary)
	cache := &models.ComparisonCache{
		BaselineID:     b.ID,
		SiteID:         b.SiteID,
		TotalBaseline:  result.Summary.TotalBaseline,
		TotalCurrent:   result.Summary.TotalCurrent,
		AddedCount:     result.Summary.AddedCount,
		RemovedCount:   result.Summary.RemovedCount,
		ModifiedCount:  result.Summary.ModifiedCount,
		UnchangedCount: result.Summary.UnchangedCount,
		Summary:        string(summaryJSON),
		ComparedAt:     time.Now().UTC(),
	}
	if err := database.SaveComparisonCache(cache); err != nil {
		m.log.Warn("comparison cache write failed", zap.Int64("baseline_id", b.ID), zap.Error(err))
	}

	return result, nil
}

// Activate makes the baseline the site's single active one.
func (m *Manager) Activate(baselineID int64) (*models.Baseline, error) {
	b, err := database.ActivateBaseline(baselineID)
	if err != nil {
		return nil, err
	}
	m.log.Info("baseline activated", zap.Int64("baseline_id", b.ID), zap.String("site_id", b.SiteID))
	return b, nil
}

// Deactivate clears the baseline's active flag, leaving the site unmonitored.
func (m *Manager) Deactivate(baselineID int64) (*models.Baseline, error) {
	b, err := database.DeactivateBaseline(baselineID)
	if err != nil {
		return nil, err
	}
	m.log.Info("baseline deactivated", zap.Int64("baseline_id", b.ID), zap.String("site_id", b.SiteID))
	return b, nil
}

// Delete removes a baseline permanently.
func (m *Manager) Delete(baselineID int64) error {
	if err := database.DeleteBaseline(baselineID); err != nil {
		return err
	}
	m.log.Info("baseline deleted", zap.Int64("baseline_id", baselineID))
	return nil
}
