// Package detect compares live snapshots against active baselines and records
// what drifted in the change ledger.
package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/baseline"
	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/diff"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/notify"
	"go.uber.org/zap"
)

// Outcome labels what a detection run found for one site.
type Outcome string

const (
	OutcomeNoBaseline      Outcome = "no_baseline"
	OutcomeNoChanges       Outcome = "no_changes"
	OutcomeChangesDetected Outcome = "changes_detected"
)

// SiteResult is the result of detecting one site.
type SiteResult struct {
	SiteID        string       `json:"site_id"`
	BaselineID    int64        `json:"baseline_id,omitempty"`
	Outcome       Outcome      `json:"outcome"`
	Summary       diff.Summary `json:"summary"`
	ChangesLogged int          `json:"changes_logged"`
	Notified      int          `json:"notified"`
}

// Service runs change detection. The notifier is optional; without one,
// changes are recorded but nobody is told.
type Service struct {
	baselines *baseline.Manager
	notifier  *notify.Service
	log       *zap.Logger
}

func NewService(baselines *baseline.Manager, notifier *notify.Service, log *zap.Logger) *Service {
	return &Service{baselines: baselines, notifier: notifier, log: log.Named("detect")}
}

// DetectSite compares one site's live snapshot against its active baseline
// and appends a ledger entry per detected change. Re-running against an
// unchanged snapshot records nothing.
func (s *Service) DetectSite(siteID string) (*SiteResult, error) {
	result := &SiteResult{SiteID: siteID}

	active, err := database.ActiveBaseline(siteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			result.Outcome = OutcomeNoBaseline
			return result, nil
		}
		return nil, fmt.Errorf("loading active baseline: %w", err)
	}
	result.BaselineID = active.ID

	diffResult, err := s.baselines.Compare(active.ID)
	if err != nil {
		return nil, err
	}
	result.Summary = diffResult.Summary

	if !diffResult.Summary.HasChanges() {
		result.Outcome = OutcomeNoChanges
		return result, nil
	}
	result.Outcome = OutcomeChangesDetected

	changes := buildChanges(active, diffResult)
	for i := range changes {
		if err := database.CreateChange(&changes[i]); err != nil {
			return result, fmt.Errorf("recording change: %w", err)
		}
		result.ChangesLogged++
	}

	s.log.Info("changes detected",
		zap.String("site_id", siteID),
		zap.Int64("baseline_id", active.ID),
		zap.Int("added", diffResult.Summary.AddedCount),
		zap.Int("removed", diffResult.Summary.RemovedCount),
		zap.Int("modified", diffResult.Summary.ModifiedCount))

	if s.notifier != nil {
		queued, err := s.notifier.NotifyChanges(siteID, active.ID, changes)
		if err != nil {
			s.log.Warn("notification queueing failed", zap.String("site_id", siteID), zap.Error(err))
		} else {
			result.Notified = queued
			if queued > 0 {
				if err := database.MarkChangesNotified(active.ID); err != nil {
					s.log.Warn("marking changes notified failed", zap.Error(err))
				}
			}
		}
	}
	return result, nil
}

// DetectAll runs detection over every site with an active baseline. A failing
// site is reported and skipped; the run continues.
func (s *Service) DetectAll() ([]SiteResult, error) {
	sites, err := database.SitesWithActiveBaselines()
	if err != nil {
		return nil, fmt.Errorf("listing monitored sites: %w", err)
	}

	var results []SiteResult
	var failures int
	for _, siteID := range sites {
		r, err := s.DetectSite(siteID)
		if err != nil {
			s.log.Error("detection failed", zap.String("site_id", siteID), zap.Error(err))
			failures++
			continue
		}
		results = append(results, *r)
	}
	if failures > 0 {
		return results, fmt.Errorf("detection failed for %d of %d site(s)", failures, len(sites))
	}
	return results, nil
}

// MarkReviewed flags ledger entries as reviewed and returns how many actually
// flipped.
func (s *Service) MarkReviewed(changeIDs []int64, reviewedBy, notes string) (int64, error) {
	return database.MarkChangesReviewed(changeIDs, reviewedBy, notes)
}

// buildChanges turns a diff result into ledger rows. A modification whose
// inheritance flag flipped is refined into inheritance_broken or
// inheritance_restored; the plain modified type only covers level changes.
func buildChanges(b *models.Baseline, d *diff.Result) []models.Change {
	now := time.Now().UTC()
	changes := make([]models.Change, 0, len(d.Added)+len(d.Removed)+len(d.Modified))

	for _, e := range d.Added {
		changes = append(changes, models.Change{
			BaselineID:     b.ID,
			SiteID:         b.SiteID,
			ChangeType:     models.ChangeTypeAdded,
			ResourceID:     e.ResourceID,
			ResourceName:   e.ResourceName,
			ResourceType:   e.ResourceType,
			PrincipalID:    e.PrincipalID,
			PrincipalName:  e.PrincipalName,
			PrincipalEmail: e.PrincipalEmail,
			PrincipalType:  e.PrincipalType,
			NewPermission:  snapshotJSON(e.PermissionLevel, e.HasBrokenInheritance),
			DetectedAt:     now,
		})
	}
	for _, e := range d.Removed {
		changes = append(changes, models.Change{
			BaselineID:     b.ID,
			SiteID:         b.SiteID,
			ChangeType:     models.ChangeTypeRemoved,
			ResourceID:     e.ResourceID,
			ResourceName:   e.ResourceName,
			ResourceType:   e.ResourceType,
			PrincipalID:    e.PrincipalID,
			PrincipalName:  e.PrincipalName,
			PrincipalEmail: e.PrincipalEmail,
			PrincipalType:  e.PrincipalType,
			OldPermission:  snapshotJSON(e.PermissionLevel, e.HasBrokenInheritance),
			DetectedAt:     now,
		})
	}
	for _, m := range d.Modified {
		changeType := models.ChangeTypeModified
		if m.OldInheritance != m.NewInheritance {
			if m.NewInheritance {
				changeType = models.ChangeTypeInheritanceBroken
			} else {
				changeType = models.ChangeTypeInheritanceRestored
			}
		}
		changes = append(changes, models.Change{
			BaselineID:     b.ID,
			SiteID:         b.SiteID,
			ChangeType:     changeType,
			ResourceID:     m.ResourceID,
			ResourceName:   m.ResourceName,
			PrincipalID:    m.PrincipalID,
			PrincipalName:  m.PrincipalName,
			PrincipalEmail: m.PrincipalEmail,
			OldPermission:  snapshotJSON(m.OldPermissionLevel, m.OldInheritance),
			NewPermission:  snapshotJSON(m.NewPermissionLevel, m.NewInheritance),
			DetectedAt:     now,
		})
	}
	return changes
}

func snapshotJSON(level string, broken bool) *string {
	data, _ := json.Marshal(models.PermissionSnapshot{
		PermissionLevel:      level,
		HasBrokenInheritance: broken,
	})
	s := string(data)
	return &s
}
