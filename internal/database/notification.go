package database

import (
	"errors"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// retryDelay is how far out a failed delivery is rescheduled.
const retryDelay = 5 * time.Minute

// EnqueueNotification inserts a job in pending state.
func EnqueueNotification(job *models.NotificationJob) error {
	if job.Status == "" {
		job.Status = models.NotificationPending
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = time.Now().UTC()
	}
	return DB.Create(job).Error
}

// DueNotifications selects pending jobs whose schedule has arrived, highest
// priority first, oldest first within a priority, up to limit.
func DueNotifications(limit int) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	err := DB.
		Where("status = ? AND scheduled_for <= ?", models.NotificationPending, time.Now().UTC()).
		Order("priority ASC, created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkNotificationSending moves a job into the sending state.
func MarkNotificationSending(id int64) error {
	return DB.Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Update("status", models.NotificationSending).Error
}

// MarkNotificationSent finishes a job.
func MarkNotificationSent(id int64) error {
	now := time.Now().UTC()
	return DB.Model(&models.NotificationJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  models.NotificationSent,
			"sent_at": now,
		}).Error
}

// MarkNotificationFailed advances the retry state machine after a delivery
// failure: back to pending with a bumped retry count and a pushed-out
// schedule while attempts remain, terminal failed once they are exhausted.
func MarkNotificationFailed(id int64, sendErr error) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		var job models.NotificationJob
		if err := tx.First(&job, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		job.RetryCount++
		msg := sendErr.Error()
		job.ErrorMessage = &msg
		if job.RetryCount >= job.MaxRetries {
			job.Status = models.NotificationFailed
		} else {
			job.Status = models.NotificationPending
			job.ScheduledFor = time.Now().UTC().Add(retryDelay)
		}

		return tx.Model(&models.NotificationJob{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":        job.Status,
				"retry_count":   job.RetryCount,
				"error_message": job.ErrorMessage,
				"scheduled_for": job.ScheduledFor,
			}).Error
	})
}

// ListNotifications returns queue entries, optionally filtered by status,
// newest first.
func ListNotifications(status models.NotificationStatus, since time.Time) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	query := DB.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpsertRecipient adds or refreshes a subscription, reactivating it if it had
// been removed.
func UpsertRecipient(recipient *models.Recipient) error {
	recipient.IsActive = true
	return DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "site_id"}, {Name: "recipient_email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"recipient_name", "notification_types", "frequency", "is_active", "updated_at",
		}),
	}).Create(recipient).Error
}

// DeactivateRecipient soft-removes a subscription.
func DeactivateRecipient(email string, siteID *string) error {
	query := DB.Model(&models.Recipient{}).Where("recipient_email = ?", email)
	if siteID != nil {
		query = query.Where("site_id = ?", *siteID)
	} else {
		query = query.Where("site_id IS NULL")
	}
	return query.Update("is_active", false).Error
}

// ListRecipients returns subscriptions, optionally only active ones.
func ListRecipients(activeOnly bool) ([]models.Recipient, error) {
	var recipients []models.Recipient
	query := DB.Order("recipient_email")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

// RecipientsForSite returns the active subscriptions covering a site: scoped
// to it or global (nil site).
func RecipientsForSite(siteID string) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := DB.
		Where("is_active = ? AND (site_id = ? OR site_id IS NULL)", true, siteID).
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}
