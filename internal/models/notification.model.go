package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationTaskClaimed      NotificationType = "task_claimed"
	NotificationTaskReleased     NotificationType = "task_released"
	NotificationTaskCompleted    NotificationType = "task_completed"
	NotificationTaskCancelled    NotificationType = "task_cancelled"
	NotificationTaskApproved     NotificationType = "task_approved"
	NotificationTaskPending      NotificationType = "task_pending"
	NotificationProposalCreated  NotificationType = "proposal_created"
	NotificationProposalPriced   NotificationType = "proposal_priced"
	NotificationProposalResolved NotificationType = "proposal_resolved"
	NotificationAppointment      NotificationType = "appointment"

	// Automated alert types emitted by sweep jobs. These are deduplicated by
	// (ReferenceID, Type) inside a type-specific window so repeated sweeps
	// never produce a second copy: once ever for delay/reminder/survey, once
	// per calendar day for the digest.
	NotificationTaskDelayed   NotificationType = "task_delayed"
	NotificationTaskReminder  NotificationType = "task_reminder"
	NotificationDailyDigest   NotificationType = "daily_digest"
	NotificationSurvey        NotificationType = "survey"
)

// IsAutomatedAlert reports whether t is subject to the sweep dedup policy.
func (t NotificationType) IsAutomatedAlert() bool {
	switch t {
	case NotificationTaskDelayed, NotificationTaskReminder, NotificationSurvey, NotificationDailyDigest:
		return true
	}
	return false
}

// DedupSince returns the start of the window within which an alert of this
// type is created at most once per reference. The zero time means once ever.
func (t NotificationType) DedupSince(now time.Time) time.Time {
	if t == NotificationDailyDigest {
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	}
	return time.Time{}
}

// Notification is an event record visible to exactly one user. Rows are only
// ever mutated by read-state transitions and the push dispatcher's delivered
// flag; everything else is insert-only.
type Notification struct {
	BaseUUIDModel
	OrgID       uuid.UUID          `gorm:"type:uuid;index;not null"  json:"orgId"`
	UserID      uuid.UUID          `gorm:"type:uuid;index;not null"  json:"userId"`
	ActorID     *uuid.UUID         `gorm:"type:uuid"                 json:"actorId,omitempty"`
	Title       string             `gorm:"type:text;not null"        json:"title"`
	Message     string             `gorm:"type:text"                 json:"message"`
	Type        NotificationType   `gorm:"type:text;index"           json:"type"`
	ReferenceID *uuid.UUID         `gorm:"type:uuid;index"           json:"referenceId,omitempty"`
	IsRead      bool               `gorm:"type:bool;default:false;index" json:"isRead"`
	Delivered   bool               `gorm:"type:bool;default:false"   json:"delivered"`
	Urgent      bool               `gorm:"type:bool;default:false"   json:"urgent"`
	Metadata    datatypes.JSONMap  `                                 json:"metadata,omitempty"`
}
