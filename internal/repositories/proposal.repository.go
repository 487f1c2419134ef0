package repositories

import (
	"context"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProposalRepository interface {
	Create(ctx context.Context, tx *gorm.DB, proposal *Proposal) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Proposal, error)
	ListByTask(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) ([]*Proposal, error)

	// Transition applies the status change only while the row still holds
	// expected, returning affected rows. price is attached when non-nil
	// (manager approval).
	Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, expected, next ProposalStatus, price *decimal.Decimal) (int64, error)

	CountOpenByTask(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (int64, error)
}

type proposalRepository struct{}

func NewProposalRepository() ProposalRepository {
	return &proposalRepository{}
}

func (r *proposalRepository) Create(ctx context.Context, tx *gorm.DB, proposal *Proposal) error {
	log := logger.NewWithContext(ctx, "proposalRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(proposal).Error; err != nil {
		return log.Err("failed to create proposal", err, "taskID", proposal.TaskID)
	}

	return nil
}

func (r *proposalRepository) GetByID(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalRepository").Function("GetByID")

	var proposal Proposal
	if err := tx.WithContext(ctx).First(&proposal, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get proposal", err, "proposalID", id)
	}

	return &proposal, nil
}

func (r *proposalRepository) ListByTask(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
) ([]*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalRepository").Function("ListByTask")

	var proposals []*Proposal
	if err := tx.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&proposals).Error; err != nil {
		return nil, log.Err("failed to list proposals", err, "taskID", taskID)
	}

	return proposals, nil
}

func (r *proposalRepository) Transition(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	expected, next ProposalStatus,
	price *decimal.Decimal,
) (int64, error) {
	log := logger.NewWithContext(ctx, "proposalRepository").Function("Transition")

	patch := map[string]any{"status": next}
	if price != nil {
		patch["price"] = *price
	}

	result := tx.WithContext(ctx).
		Model(&Proposal{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(patch)
	if result.Error != nil {
		return 0, log.Err(
			"failed to transition proposal",
			result.Error,
			"proposalID", id,
			"from", expected,
			"to", next,
		)
	}

	return result.RowsAffected, nil
}

func (r *proposalRepository) CountOpenByTask(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
) (int64, error) {
	log := logger.NewWithContext(ctx, "proposalRepository").Function("CountOpenByTask")

	var count int64
	if err := tx.WithContext(ctx).
		Model(&Proposal{}).
		Where("task_id = ? AND status IN ?", taskID, []ProposalStatus{
			ProposalPendingManager,
			ProposalPendingCustomer,
		}).
		Count(&count).Error; err != nil {
		return 0, log.Err("failed to count open proposals", err, "taskID", taskID)
	}

	return count, nil
}
