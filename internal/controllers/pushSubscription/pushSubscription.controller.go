package pushSubscriptionController

import (
	"context"

	"pitstop/internal/apperrors"
	"pitstop/internal/database"
	"pitstop/internal/logger"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
)

type RegisterSubscriptionRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dhKey"`
	AuthKey   string `json:"authKey"`
}

type PushSubscriptionControllerInterface interface {
	// Register stores a device endpoint for the user. Re-registering the
	// same endpoint is idempotent.
	Register(ctx context.Context, userID uuid.UUID, req RegisterSubscriptionRequest) (*PushSubscription, error)
	Unregister(ctx context.Context, userID uuid.UUID, endpoint string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*PushSubscription, error)
}

type PushSubscriptionController struct {
	subscriptionRepo repositories.PushSubscriptionRepository
	db               database.DB
}

func New(repos repositories.Repository, db database.DB) PushSubscriptionControllerInterface {
	return &PushSubscriptionController{
		subscriptionRepo: repos.PushSubscription,
		db:               db,
	}
}

func (c *PushSubscriptionController) Register(
	ctx context.Context,
	userID uuid.UUID,
	req RegisterSubscriptionRequest,
) (*PushSubscription, error) {
	log := logger.NewWithContext(ctx, "pushSubscriptionController").Function("Register")

	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "endpoint and encryption keys are required")
	}

	subscription := &PushSubscription{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
	}

	if err := c.subscriptionRepo.Create(ctx, c.db.SQL, subscription); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to register push subscription", "error", err)
	}

	return subscription, nil
}

func (c *PushSubscriptionController) Unregister(
	ctx context.Context,
	userID uuid.UUID,
	endpoint string,
) error {
	log := logger.NewWithContext(ctx, "pushSubscriptionController").Function("Unregister")

	if endpoint == "" {
		return log.ErrorWithType(apperrors.ErrValidation, "endpoint is required")
	}

	if err := c.subscriptionRepo.DeleteByEndpoint(ctx, c.db.SQL, endpoint); err != nil {
		return log.ErrorWithType(apperrors.ErrUpdate, "failed to remove push subscription", "error", err)
	}

	return nil
}

func (c *PushSubscriptionController) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*PushSubscription, error) {
	log := logger.NewWithContext(ctx, "pushSubscriptionController").Function("ListByUser")

	subscriptions, err := c.subscriptionRepo.ListByUser(ctx, c.db.SQL, userID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list push subscriptions", "error", err)
	}

	return subscriptions, nil
}
