package repositories

import (
	"context"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrganizationRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Organization, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*Organization, error)
}

type organizationRepository struct{}

func NewOrganizationRepository() OrganizationRepository {
	return &organizationRepository{}
}

func (r *organizationRepository) GetByID(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*Organization, error) {
	log := logger.NewWithContext(ctx, "organizationRepository").Function("GetByID")

	var org Organization
	if err := tx.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get organization", err, "orgID", id)
	}

	return &org, nil
}

func (r *organizationRepository) ListActive(
	ctx context.Context,
	tx *gorm.DB,
) ([]*Organization, error) {
	log := logger.NewWithContext(ctx, "organizationRepository").Function("ListActive")

	var orgs []*Organization
	if err := tx.WithContext(ctx).
		Where("is_active = true").
		Find(&orgs).Error; err != nil {
		return nil, log.Err("failed to list active organizations", err)
	}

	return orgs, nil
}
