package models

import (
	"time"
)

// ResourceType classifies a node in the content hierarchy
type ResourceType string

const (
	ResourceTypeSite   ResourceType = "site"
	ResourceTypeFolder ResourceType = "folder"
	ResourceTypeFile   ResourceType = "file"
)

// PrincipalType classifies the grantee of a permission
type PrincipalType string

const (
	PrincipalTypeUser        PrincipalType = "user"
	PrincipalTypeGroup       PrincipalType = "group"
	PrincipalTypeApplication PrincipalType = "application"
	// PrincipalTypeResource marks the sentinel row that records a resource's
	// existence independent of any real grant.
	PrincipalTypeResource PrincipalType = "resource"
)

// PermissionType describes how a grant arrived on a resource
type PermissionType string

const (
	PermissionTypeStructure PermissionType = "structure"
	PermissionTypeDirect    PermissionType = "direct"
	PermissionTypeInherited PermissionType = "inherited"
	PermissionTypeShared    PermissionType = "shared"
)

// PermissionEntry is one (resource, principal) row of the permission snapshot.
// The (resource_id, principal_id) pair is the upsert key: re-collection refreshes
// volatile display fields instead of duplicating rows.
type PermissionEntry struct {
	ID                   int64          `json:"id" gorm:"primaryKey"`
	TenantID             string         `json:"tenant_id" gorm:"index"`
	ResourceType         ResourceType   `json:"resource_type" gorm:"not null"`
	ResourceID           string         `json:"resource_id" gorm:"not null;uniqueIndex:idx_resource_principal,priority:1"`
	ResourceName         string         `json:"resource_name"`
	ResourceURL          string         `json:"resource_url"`
	ParentResourceID     *string        `json:"parent_resource_id" gorm:"index"` // nil = top-level under its site
	SiteID               string         `json:"site_id" gorm:"index;not null"`
	SiteURL              string         `json:"site_url"`
	DriveID              string         `json:"drive_id"`
	PrincipalType        PrincipalType  `json:"principal_type" gorm:"not null"`
	PrincipalID          string         `json:"principal_id" gorm:"not null;uniqueIndex:idx_resource_principal,priority:2"`
	PrincipalName        string         `json:"principal_name"`
	PrincipalEmail       *string        `json:"principal_email"`
	IsHuman              bool           `json:"is_human"`
	PermissionLevel      string         `json:"permission_level"`
	PermissionType       PermissionType `json:"permission_type" gorm:"not null"`
	HasBrokenInheritance bool           `json:"has_broken_inheritance"`
	CollectedAt          time.Time      `json:"collected_at"`
}

func (PermissionEntry) TableName() string { return "resources_permissions" }

// Key returns the composite snapshot key used by the diff engine.
func (p PermissionEntry) Key() string {
	return p.ResourceID + "|" + p.PrincipalID
}

// StructurePrincipalID builds the sentinel principal id that records a
// resource's existence ("<type>_<resource_id>").
func StructurePrincipalID(resourceType ResourceType, resourceID string) string {
	return string(resourceType) + "_" + resourceID
}

// Baseline is an immutable named copy of a site's snapshot rows at capture time.
// At most one baseline per site is active.
type Baseline struct {
	ID                  int64     `json:"id" gorm:"primaryKey"`
	SiteID              string    `json:"site_id" gorm:"index;not null"`
	SiteURL             string    `json:"site_url"`
	BaselineName        string    `json:"baseline_name" gorm:"not null"`
	BaselineDescription string    `json:"baseline_description"`
	BaselineData        string    `json:"baseline_data,omitempty" gorm:"type:text"` // serialized BaselinePayload
	CreatedBy           string    `json:"created_by"`
	CreatedByEmail      string    `json:"created_by_email"`
	IsActive            bool      `json:"is_active" gorm:"index;default:false"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Baseline) TableName() string { return "baselines" }

// BaselinePayload is the JSON document stored in Baseline.BaselineData.
type BaselinePayload struct {
	Timestamp        time.Time         `json:"timestamp"`
	SiteID           string            `json:"site_id"`
	SiteURL          string            `json:"site_url"`
	TotalPermissions int               `json:"total_permissions"`
	Permissions      []PermissionEntry `json:"permissions"`
}

// ChangeType labels one entry of the change ledger
type ChangeType string

const (
	ChangeTypeAdded               ChangeType = "added"
	ChangeTypeRemoved             ChangeType = "removed"
	ChangeTypeModified            ChangeType = "modified"
	ChangeTypeInheritanceBroken   ChangeType = "inheritance_broken"
	ChangeTypeInheritanceRestored ChangeType = "inheritance_restored"
)

// Change is one reviewable entry of the change ledger. Only the Reviewed* and
// NotificationSent fields mutate after creation.
type Change struct {
	ID               int64         `json:"id" gorm:"primaryKey"`
	BaselineID       int64         `json:"baseline_id" gorm:"index;not null"`
	SiteID           string        `json:"site_id" gorm:"index;not null"`
	ChangeType       ChangeType    `json:"change_type" gorm:"not null"`
	ResourceID       string        `json:"resource_id"`
	ResourceName     string        `json:"resource_name"`
	ResourceType     ResourceType  `json:"resource_type"`
	PrincipalID      string        `json:"principal_id"`
	PrincipalName    string        `json:"principal_name"`
	PrincipalEmail   *string       `json:"principal_email"`
	PrincipalType    PrincipalType `json:"principal_type"`
	OldPermission    *string       `json:"old_permission" gorm:"type:text"` // JSON PermissionSnapshot
	NewPermission    *string       `json:"new_permission" gorm:"type:text"`
	DetectedAt       time.Time     `json:"detected_at" gorm:"index;autoCreateTime"`
	Reviewed         bool          `json:"reviewed" gorm:"default:false"`
	ReviewedBy       *string       `json:"reviewed_by"`
	ReviewedAt       *time.Time    `json:"reviewed_at"`
	ReviewNotes      *string       `json:"review_notes"`
	NotificationSent bool          `json:"notification_sent" gorm:"default:false"`
}

func (Change) TableName() string { return "permission_changes" }

// PermissionSnapshot is the structured old/new payload stored on modified changes.
type PermissionSnapshot struct {
	PermissionLevel      string `json:"permission_level"`
	HasBrokenInheritance bool   `json:"has_broken_inheritance"`
}

// NotificationStatus is the delivery state of a queued notification
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationJob is one outbound message in the retrying delivery queue.
type NotificationJob struct {
	ID                int64              `json:"id" gorm:"primaryKey"`
	NotificationType  string             `json:"notification_type" gorm:"not null"`
	RecipientEmail    string             `json:"recipient_email" gorm:"not null"`
	RecipientName     string             `json:"recipient_name"`
	Subject           string             `json:"subject"`
	Body              string             `json:"body" gorm:"type:text"`
	HTMLBody          string             `json:"html_body" gorm:"type:text"`
	Priority          int                `json:"priority" gorm:"default:5"` // 1 = highest
	ChangeSummary     *string            `json:"change_summary" gorm:"type:text"`
	RelatedBaselineID *int64             `json:"related_baseline_id"`
	RelatedSiteID     *string            `json:"related_site_id"`
	Status            NotificationStatus `json:"status" gorm:"index;default:pending"`
	RetryCount        int                `json:"retry_count" gorm:"default:0"`
	MaxRetries        int                `json:"max_retries" gorm:"default:3"`
	ScheduledFor      time.Time          `json:"scheduled_for" gorm:"index"`
	SentAt            *time.Time         `json:"sent_at"`
	ErrorMessage      *string            `json:"error_message"`
	CreatedAt         time.Time          `json:"created_at"`
}

func (NotificationJob) TableName() string { return "notification_queue" }

// Recipient subscribes an email address to notifications, optionally scoped to
// one site (nil SiteID = all sites).
type Recipient struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	SiteID            *string   `json:"site_id" gorm:"uniqueIndex:idx_recipient_site,priority:1"`
	RecipientEmail    string    `json:"recipient_email" gorm:"not null;uniqueIndex:idx_recipient_site,priority:2"`
	RecipientName     string    `json:"recipient_name"`
	NotificationTypes string    `json:"notification_types" gorm:"type:text"` // JSON array of type names
	Frequency         string    `json:"frequency" gorm:"default:immediate"`  // immediate or daily
	IsActive          bool      `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Recipient) TableName() string { return "notification_recipients" }

// CollectionStatus is the pollable progress record of one crawl or permission
// pass, keyed by a job id rather than shared process memory.
type CollectionStatus struct {
	JobID       string    `json:"job_id" gorm:"primaryKey"`
	TenantID    string    `json:"tenant_id" gorm:"index"`
	Phase       string    `json:"phase"` // structure or permissions
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	UniqueFound int       `json:"unique_found"`
	Errors      int       `json:"errors"`
	Status      string    `json:"status"` // running, completed, error
	Message     string    `json:"message"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CollectionStatus) TableName() string { return "collection_status" }

// ComparisonCache stores the summary of a baseline comparison. Writes are
// best-effort; a cache failure never fails the comparison itself.
type ComparisonCache struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	BaselineID     int64     `json:"baseline_id" gorm:"index;not null"`
	SiteID         string    `json:"site_id"`
	TotalBaseline  int       `json:"total_baseline"`
	TotalCurrent   int       `json:"total_current"`
	AddedCount     int       `json:"added_count"`
	RemovedCount   int       `json:"removed_count"`
	ModifiedCount  int       `json:"modified_count"`
	UnchangedCount int       `json:"unchanged_count"`
	Summary        string    `json:"summary" gorm:"type:text"`
	ComparedAt     time.Time `json:"compared_at"`
}

func (ComparisonCache) TableName() string { return "comparison_cache" }
