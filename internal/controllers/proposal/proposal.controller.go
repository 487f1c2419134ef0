package proposalController

import (
	"context"
	"fmt"

	"pitstop/config"
	"pitstop/internal/apperrors"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/database"
	"pitstop/internal/logger"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateProposalRequest struct {
	TaskID      uuid.UUID `json:"taskId"`
	Description string    `json:"description"`
}

type ProposalControllerInterface interface {
	// CreateProposal opens a two-stage approval for extra work discovered
	// mid-task. The owning task must be IN_PROGRESS.
	CreateProposal(ctx context.Context, actor *User, req CreateProposalRequest) (*Proposal, error)

	// ApproveProposal is the manager stage: attaches a price and forwards
	// the proposal to the customer. A negative price never reaches the store.
	ApproveProposal(ctx context.Context, actor *User, proposalID uuid.UUID, price decimal.Decimal) (*Proposal, error)

	// CustomerApproveProposal is the customer stage, terminal APPROVED.
	CustomerApproveProposal(ctx context.Context, actor *User, proposalID uuid.UUID) (*Proposal, error)

	// RejectProposal is terminal from either pending stage.
	RejectProposal(ctx context.Context, actor *User, proposalID uuid.UUID) (*Proposal, error)

	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*Proposal, error)
}

type ProposalController struct {
	proposalRepo repositories.ProposalRepository
	taskRepo     repositories.TaskRepository
	userRepo     repositories.UserRepository
	vehicleRepo  repositories.VehicleRepository
	db           database.DB
	notification notificationController.NotificationControllerInterface
	config       config.Config
}

func New(
	repos repositories.Repository,
	db database.DB,
	notification notificationController.NotificationControllerInterface,
	config config.Config,
) ProposalControllerInterface {
	return &ProposalController{
		proposalRepo: repos.Proposal,
		taskRepo:     repos.Task,
		userRepo:     repos.User,
		vehicleRepo:  repos.Vehicle,
		db:           db,
		notification: notification,
		config:       config,
	}
}

func (c *ProposalController) CreateProposal(
	ctx context.Context,
	actor *User,
	req CreateProposalRequest,
) (*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalController").Function("CreateProposal")

	if req.Description == "" {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "description is required")
	}

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, req.TaskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", req.TaskID)
	}

	if task.Status != TaskInProgress {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"proposals can only be opened on in-progress tasks",
			"taskID", task.ID,
			"status", task.Status,
		)
	}

	proposal := &Proposal{
		TaskID:      task.ID,
		OrgID:       task.OrgID,
		Description: req.Description,
		Status:      ProposalPendingManager,
		CreatedBy:   actor.ID,
	}

	if err := c.proposalRepo.Create(ctx, c.db.SQL, proposal); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to create proposal", "error", err)
	}

	c.notifyManagers(ctx, actor, proposal, log)

	return proposal, nil
}

func (c *ProposalController) ApproveProposal(
	ctx context.Context,
	actor *User,
	proposalID uuid.UUID,
	price decimal.Decimal,
) (*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalController").Function("ApproveProposal")

	if !actor.IsManager() {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "only managers can price a proposal")
	}
	if price.IsNegative() {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "price cannot be negative", "price", price)
	}

	proposal, err := c.proposalRepo.GetByID(ctx, c.db.SQL, proposalID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "proposal not found", "proposalID", proposalID)
	}

	rows, err := c.proposalRepo.Transition(ctx, c.db.SQL, proposalID, ProposalPendingManager, ProposalPendingCustomer, &price)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "proposal update failed", "proposalID", proposalID, "error", err)
	}
	if rows == 0 {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"proposal is not awaiting manager approval",
			"proposalID", proposalID,
			"status", proposal.Status,
		)
	}

	proposal.Status = ProposalPendingCustomer
	proposal.Price = &price

	c.notifyCustomer(ctx, actor, proposal, log)

	return proposal, nil
}

func (c *ProposalController) CustomerApproveProposal(
	ctx context.Context,
	actor *User,
	proposalID uuid.UUID,
) (*Proposal, error) {
	return c.resolve(ctx, actor, proposalID, ProposalApproved)
}

func (c *ProposalController) RejectProposal(
	ctx context.Context,
	actor *User,
	proposalID uuid.UUID,
) (*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalController").Function("RejectProposal")

	proposal, err := c.proposalRepo.GetByID(ctx, c.db.SQL, proposalID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "proposal not found", "proposalID", proposalID)
	}

	if proposal.Status.IsTerminal() {
		return nil, log.ErrorWithType(apperrors.ErrInvalidTransition, "proposal already resolved", "status", proposal.Status)
	}

	rows, err := c.proposalRepo.Transition(ctx, c.db.SQL, proposalID, proposal.Status, ProposalRejected, nil)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "proposal update failed", "proposalID", proposalID, "error", err)
	}
	if rows == 0 {
		return nil, log.ErrorWithType(apperrors.ErrConflict, "proposal changed state concurrently", "proposalID", proposalID)
	}

	proposal.Status = ProposalRejected

	c.notifyResolution(ctx, actor, proposal, log)

	return proposal, nil
}

func (c *ProposalController) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalController").Function("ListByTask")

	proposals, err := c.proposalRepo.ListByTask(ctx, c.db.SQL, taskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list proposals", "taskID", taskID, "error", err)
	}

	return proposals, nil
}

func (c *ProposalController) resolve(
	ctx context.Context,
	actor *User,
	proposalID uuid.UUID,
	terminal ProposalStatus,
) (*Proposal, error) {
	log := logger.NewWithContext(ctx, "proposalController").Function("resolve")

	proposal, err := c.proposalRepo.GetByID(ctx, c.db.SQL, proposalID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "proposal not found", "proposalID", proposalID)
	}

	rows, err := c.proposalRepo.Transition(ctx, c.db.SQL, proposalID, ProposalPendingCustomer, terminal, nil)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "proposal update failed", "proposalID", proposalID, "error", err)
	}
	if rows == 0 {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"proposal is not awaiting customer approval",
			"proposalID", proposalID,
			"status", proposal.Status,
		)
	}

	proposal.Status = terminal

	c.notifyResolution(ctx, actor, proposal, log)

	return proposal, nil
}

func (c *ProposalController) notifyManagers(
	ctx context.Context,
	actor *User,
	proposal *Proposal,
	log logger.Logger,
) {
	managers, err := c.userRepo.ListManagers(ctx, c.db.SQL, proposal.OrgID)
	if err != nil {
		log.Warn("failed to list managers", "orgID", proposal.OrgID, "error", err)
		return
	}

	managerIDs := make([]uuid.UUID, 0, len(managers))
	for _, manager := range managers {
		managerIDs = append(managerIDs, manager.ID)
	}

	actorID := actor.ID
	referenceID := proposal.TaskID
	if _, err := c.notification.NotifyMultiple(ctx, notificationController.NotificationInput{
		OrgID:       proposal.OrgID,
		ActorID:     &actorID,
		Title:       fmt.Sprintf("%s הציע עבודה נוספת", actor.FullName),
		Message:     proposal.Description,
		Type:        NotificationProposalCreated,
		ReferenceID: &referenceID,
	}, managerIDs); err != nil {
		log.Warn("failed to notify managers", "proposalID", proposal.ID, "error", err)
	}
}

// notifyCustomer routes the priced proposal to the vehicle owner when the
// task carries a vehicle reference. Tasks without one have no customer to
// ask; the manager decision stands alone.
func (c *ProposalController) notifyCustomer(
	ctx context.Context,
	actor *User,
	proposal *Proposal,
	log logger.Logger,
) {
	customerID, ok := c.customerForProposal(ctx, proposal)
	if !ok {
		return
	}

	actorID := actor.ID
	referenceID := proposal.TaskID
	if _, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
		OrgID:       proposal.OrgID,
		UserID:      customerID,
		ActorID:     &actorID,
		Title:       "הצעת מחיר לעבודה נוספת ממתינה לאישורך",
		Message:     proposal.Description,
		Type:        NotificationProposalPriced,
		ReferenceID: &referenceID,
		Urgent:      true,
	}); err != nil {
		log.Warn("failed to notify customer", "proposalID", proposal.ID, "error", err)
	}
}

func (c *ProposalController) notifyResolution(
	ctx context.Context,
	actor *User,
	proposal *Proposal,
	log logger.Logger,
) {
	title := "הצעת העבודה הנוספת נדחתה"
	if proposal.Status == ProposalApproved {
		title = "הצעת העבודה הנוספת אושרה"
	}

	actorID := actor.ID
	referenceID := proposal.TaskID
	if _, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
		OrgID:       proposal.OrgID,
		UserID:      proposal.CreatedBy,
		ActorID:     &actorID,
		Title:       title,
		Message:     proposal.Description,
		Type:        NotificationProposalResolved,
		ReferenceID: &referenceID,
	}); err != nil {
		log.Warn("failed to notify proposal owner", "proposalID", proposal.ID, "error", err)
	}
}

func (c *ProposalController) customerForProposal(
	ctx context.Context,
	proposal *Proposal,
) (uuid.UUID, bool) {
	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, proposal.TaskID)
	if err != nil || task.VehicleID == nil {
		return uuid.Nil, false
	}

	vehicle, err := c.vehicleRepo.GetByID(ctx, c.db.SQL, *task.VehicleID)
	if err != nil {
		return uuid.Nil, false
	}

	return vehicle.OwnerID, true
}
