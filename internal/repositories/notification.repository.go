package repositories

import (
	"context"
	"time"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, notification *Notification) error

	// CreateBatch inserts all rows as one statement; the batch succeeds or
	// fails as a unit.
	CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*Notification) error

	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkAllRead(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	MarkDelivered(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	// ExistsByReferenceAndType backs the sweep dedup policy: automated alerts
	// are keyed (reference_id, type) and created at most once per window.
	// The zero since means the whole history counts.
	ExistsByReferenceAndType(ctx context.Context, tx *gorm.DB, referenceID uuid.UUID, notificationType NotificationType, since time.Time) (bool, error)
}

type notificationRepository struct{}

func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

func (r *notificationRepository) Create(
	ctx context.Context,
	tx *gorm.DB,
	notification *Notification,
) error {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(notification).Error; err != nil {
		return log.Err(
			"failed to create notification",
			err,
			"userID", notification.UserID,
			"type", notification.Type,
		)
	}

	return nil
}

func (r *notificationRepository) CreateBatch(
	ctx context.Context,
	tx *gorm.DB,
	notifications []*Notification,
) error {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("CreateBatch")

	if len(notifications) == 0 {
		return nil
	}

	if err := tx.WithContext(ctx).Create(&notifications).Error; err != nil {
		return log.Err("failed to create notification batch", err, "count", len(notifications))
	}

	return nil
}

func (r *notificationRepository) ListByUser(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	limit int,
) ([]*Notification, error) {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("ListByUser")

	var notifications []*Notification
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, log.Err("failed to list notifications", err, "userID", userID)
	}

	return notifications, nil
}

func (r *notificationRepository) CountUnread(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) (int64, error) {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("CountUnread")

	var count int64
	if err := tx.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Count(&count).Error; err != nil {
		return 0, log.Err("failed to count unread notifications", err, "userID", userID)
	}

	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("MarkRead")

	if err := tx.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error; err != nil {
		return log.Err("failed to mark notification read", err, "notificationID", id)
	}

	return nil
}

func (r *notificationRepository) MarkAllRead(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("MarkAllRead")

	if err := tx.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = false", userID).
		Update("is_read", true).Error; err != nil {
		return log.Err("failed to mark all notifications read", err, "userID", userID)
	}

	return nil
}

func (r *notificationRepository) MarkDelivered(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("MarkDelivered")

	if err := tx.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", id).
		Update("delivered", true).Error; err != nil {
		return log.Err("failed to mark notification delivered", err, "notificationID", id)
	}

	return nil
}

func (r *notificationRepository) ExistsByReferenceAndType(
	ctx context.Context,
	tx *gorm.DB,
	referenceID uuid.UUID,
	notificationType NotificationType,
	since time.Time,
) (bool, error) {
	log := logger.NewWithContext(ctx, "notificationRepository").Function("ExistsByReferenceAndType")

	query := tx.WithContext(ctx).
		Model(&Notification{}).
		Where("reference_id = ? AND type = ?", referenceID, notificationType)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, log.Err(
			"failed to check notification existence",
			err,
			"referenceID", referenceID,
			"type", notificationType,
		)
	}

	return count > 0, nil
}
