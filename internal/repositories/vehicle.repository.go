package repositories

import (
	"context"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, vehicle *Vehicle) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Vehicle, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*Vehicle, error)
}

type vehicleRepository struct{}

func NewVehicleRepository() VehicleRepository {
	return &vehicleRepository{}
}

func (r *vehicleRepository) Create(ctx context.Context, tx *gorm.DB, vehicle *Vehicle) error {
	log := logger.NewWithContext(ctx, "vehicleRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(vehicle).Error; err != nil {
		return log.Err("failed to create vehicle", err, "ownerID", vehicle.OwnerID)
	}

	return nil
}

func (r *vehicleRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Vehicle, error) {
	log := logger.NewWithContext(ctx, "vehicleRepository").Function("GetByID")

	var vehicle Vehicle
	if err := tx.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get vehicle", err, "vehicleID", id)
	}

	return &vehicle, nil
}

func (r *vehicleRepository) ListByOwner(
	ctx context.Context,
	tx *gorm.DB,
	ownerID uuid.UUID,
) ([]*Vehicle, error) {
	log := logger.NewWithContext(ctx, "vehicleRepository").Function("ListByOwner")

	var vehicles []*Vehicle
	if err := tx.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&vehicles).Error; err != nil {
		return nil, log.Err("failed to list vehicles", err, "ownerID", ownerID)
	}

	return vehicles, nil
}
