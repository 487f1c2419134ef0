package repositories

import (
	"context"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PushSubscriptionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, subscription *PushSubscription) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*PushSubscription, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByEndpoint(ctx context.Context, tx *gorm.DB, endpoint string) error
}

type pushSubscriptionRepository struct{}

func NewPushSubscriptionRepository() PushSubscriptionRepository {
	return &pushSubscriptionRepository{}
}

func (r *pushSubscriptionRepository) Create(
	ctx context.Context,
	tx *gorm.DB,
	subscription *PushSubscription,
) error {
	log := logger.NewWithContext(ctx, "pushSubscriptionRepository").Function("Create")

	// Re-registering an endpoint is a no-op rather than an error; browsers
	// resubmit the same subscription on every page load.
	if err := tx.WithContext(ctx).
		Where(PushSubscription{Endpoint: subscription.Endpoint}).
		FirstOrCreate(subscription).Error; err != nil {
		return log.Err("failed to create push subscription", err, "userID", subscription.UserID)
	}

	return nil
}

func (r *pushSubscriptionRepository) ListByUser(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) ([]*PushSubscription, error) {
	log := logger.NewWithContext(ctx, "pushSubscriptionRepository").Function("ListByUser")

	var subscriptions []*PushSubscription
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&subscriptions).Error; err != nil {
		return nil, log.Err("failed to list push subscriptions", err, "userID", userID)
	}

	return subscriptions, nil
}

func (r *pushSubscriptionRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	log := logger.NewWithContext(ctx, "pushSubscriptionRepository").Function("Delete")

	if err := tx.WithContext(ctx).
		Unscoped().
		Delete(&PushSubscription{}, "id = ?", id).Error; err != nil {
		return log.Err("failed to delete push subscription", err, "subscriptionID", id)
	}

	return nil
}

func (r *pushSubscriptionRepository) DeleteByEndpoint(
	ctx context.Context,
	tx *gorm.DB,
	endpoint string,
) error {
	log := logger.NewWithContext(ctx, "pushSubscriptionRepository").Function("DeleteByEndpoint")

	if err := tx.WithContext(ctx).
		Unscoped().
		Where("endpoint = ?", endpoint).
		Delete(&PushSubscription{}).Error; err != nil {
		return log.Err("failed to delete push subscription by endpoint", err)
	}

	return nil
}
