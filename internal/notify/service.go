package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/database"
	"github.com/driftwatch/driftwatch/internal/models"
	"go.uber.org/zap"
)

// TypePermissionChange is the subscription type covering change detections.
const TypePermissionChange = "permission_change"

const defaultPriority = 5

// Service queues and delivers notifications.
type Service struct {
	sender Sender
	log    *zap.Logger
}

func NewService(sender Sender, log *zap.Logger) *Service {
	return &Service{sender: sender, log: log.Named("notify")}
}

// NotifyChanges renders one change email per matching recipient and enqueues
// it. Recipients subscribed with daily frequency are skipped here; the digest
// covers them. Returns the number of queued jobs.
func (s *Service) NotifyChanges(siteID string, baselineID int64, changes []models.Change) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	recipients, err := database.RecipientsForSite(siteID)
	if err != nil {
		return 0, fmt.Errorf("loading recipients: %w", err)
	}

	subject, textBody, htmlBody, err := renderChangeEmail(siteID, changes)
	if err != nil {
		return 0, fmt.Errorf("rendering notification: %w", err)
	}

	summary := changeSummary(changes)
	queued := 0
	for _, r := range recipients {
		if !subscribedTo(r, TypePermissionChange) {
			continue
		}
		if r.Frequency != "immediate" {
			continue
		}
		job := &models.NotificationJob{
			NotificationType:  TypePermissionChange,
			RecipientEmail:    r.RecipientEmail,
			RecipientName:     r.RecipientName,
			Subject:           subject,
			Body:              textBody,
			HTMLBody:          htmlBody,
			Priority:          defaultPriority,
			ChangeSummary:     &summary,
			RelatedBaselineID: &baselineID,
			RelatedSiteID:     &siteID,
			MaxRetries:        3,
		}
		if err := database.EnqueueNotification(job); err != nil {
			return queued, fmt.Errorf("queueing for %s: %w", r.RecipientEmail, err)
		}
		queued++
	}

	s.log.Info("change notifications queued",
		zap.String("site_id", siteID), zap.Int("changes", len(changes)), zap.Int("queued", queued))
	return queued, nil
}

// ProcessQueue delivers up to limit due jobs. Failures advance the job's
// retry state; they do not stop the run.
func (s *Service) ProcessQueue(ctx context.Context, limit int) (sent, failed int, err error) {
	jobs, err := database.DueNotifications(limit)
	if err != nil {
		return 0, 0, fmt.Errorf("selecting due notifications: %w", err)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}

		if err := database.MarkNotificationSending(job.ID); err != nil {
			s.log.Warn("claiming job failed", zap.Int64("job_id", job.ID), zap.Error(err))
			continue
		}

		sendErr := s.sender.Send(ctx, job.RecipientEmail, job.Subject, job.Body, job.HTMLBody)
		if sendErr != nil {
			failed++
			s.log.Warn("delivery failed",
				zap.Int64("job_id", job.ID),
				zap.String("recipient", job.RecipientEmail),
				zap.Int("attempt", job.RetryCount+1),
				zap.Error(sendErr))
			if err := database.MarkNotificationFailed(job.ID, sendErr); err != nil {
				s.log.Error("recording failure failed", zap.Int64("job_id", job.ID), zap.Error(err))
			}
			continue
		}

		sent++
		if err := database.MarkNotificationSent(job.ID); err != nil {
			s.log.Error("recording delivery failed", zap.Int64("job_id", job.ID), zap.Error(err))
		}
	}
	return sent, failed, nil
}

// SendDigests queues one daily digest per daily-frequency recipient covering
// the changes detected since the given time.
func (s *Service) SendDigests(since time.Time) (int, error) {
	now := time.Now().UTC()
	changes, err := database.ListChanges(database.ChangeFilter{Since: since})
	if err != nil {
		return 0, fmt.Errorf("loading changes: %w", err)
	}
	if len(changes) == 0 {
		return 0, nil
	}

	recipients, err := database.ListRecipients(true)
	if err != nil {
		return 0, fmt.Errorf("loading recipients: %w", err)
	}

	subject, body, err := renderDigest(since, now, changes)
	if err != nil {
		return 0, fmt.Errorf("rendering digest: %w", err)
	}

	queued := 0
	for _, r := range recipients {
		if r.Frequency != "daily" || !subscribedTo(r, TypePermissionChange) {
			continue
		}
		job := &models.NotificationJob{
			NotificationType: "daily_digest",
			RecipientEmail:   r.RecipientEmail,
			RecipientName:    r.RecipientName,
			Subject:          subject,
			Body:             body,
			Priority:         defaultPriority + 2,
			MaxRetries:       3,
		}
		if err := database.EnqueueNotification(job); err != nil {
			return queued, fmt.Errorf("queueing digest for %s: %w", r.RecipientEmail, err)
		}
		queued++
	}
	return queued, nil
}

// subscribedTo checks the recipient's stored type list. An empty list means
// everything.
func subscribedTo(r models.Recipient, notificationType string) bool {
	if strings.TrimSpace(r.NotificationTypes) == "" {
		return true
	}
	var types []string
	if err := json.Unmarshal([]byte(r.NotificationTypes), &types); err != nil {
		return true
	}
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == notificationType {
			return true
		}
	}
	return false
}

func changeSummary(changes []models.Change) string {
	counts := map[models.ChangeType]int{}
	for _, ch := range changes {
		counts[ch.ChangeType]++
	}
	data, _ := json.Marshal(counts)
	return string(data)
}
