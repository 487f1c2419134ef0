package taskController

import (
	"context"
	"fmt"
	"time"

	"pitstop/config"
	"pitstop/internal/apperrors"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/database"
	"pitstop/internal/logger"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"
	"pitstop/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateTaskRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Priority     TaskPriority    `json:"priority"`
	VehicleID    *uuid.UUID      `json:"vehicleId"`
	Price        decimal.Decimal `json:"price"`
	AllottedTime int             `json:"allottedTime"`
	Source       TaskSource      `json:"source"`
	Metadata     TaskMetadata    `json:"metadata"`
}

type ApproveTaskRequest struct {
	SendToTeamNow bool       `json:"sendToTeamNow"`
	ReminderAt    *time.Time `json:"reminderAt"`
}

type TaskControllerInterface interface {
	CreateTask(ctx context.Context, actor *User, req CreateTaskRequest) (*Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	ListTasks(ctx context.Context, orgID uuid.UUID, status *TaskStatus) ([]*Task, error)

	// ClaimTask moves a WAITING task to IN_PROGRESS for the calling staff
	// member. The status guard on the row update is the mutual exclusion
	// mechanism; a lost race returns ErrConflict.
	ClaimTask(ctx context.Context, actor *User, taskID uuid.UUID) (*Task, error)

	// ReleaseTask returns an IN_PROGRESS task to the pool. Allowed for the
	// assigned staff or any manager.
	ReleaseTask(ctx context.Context, actor *User, taskID uuid.UUID) (*Task, error)

	// UpdateTaskStatus applies a lifecycle transition. COMPLETED is refused
	// while the task still has unresolved proposals.
	UpdateTaskStatus(ctx context.Context, actor *User, taskID uuid.UUID, next TaskStatus) (*Task, error)

	// ApproveTask promotes a WAITING_FOR_APPROVAL task either straight into
	// the pool or onto a reminder schedule picked up later by the sweep.
	ApproveTask(ctx context.Context, actor *User, taskID uuid.UUID, req ApproveTaskRequest) (*Task, error)

	DeleteTask(ctx context.Context, actor *User, taskID uuid.UUID) error
}

// transactionExecutor is the slice of the transaction service the
// controller needs; satisfied by *services.TransactionService.
type transactionExecutor interface {
	Execute(ctx context.Context, fn func(context.Context, *gorm.DB) error) error
}

type TaskController struct {
	taskRepo     repositories.TaskRepository
	proposalRepo repositories.ProposalRepository
	userRepo     repositories.UserRepository
	db           database.DB
	transaction  transactionExecutor
	notification notificationController.NotificationControllerInterface
	config       config.Config
}

func New(
	repos repositories.Repository,
	db database.DB,
	service services.Service,
	notification notificationController.NotificationControllerInterface,
	config config.Config,
) TaskControllerInterface {
	return &TaskController{
		taskRepo:     repos.Task,
		proposalRepo: repos.Proposal,
		userRepo:     repos.User,
		db:           db,
		transaction:  service.Transaction,
		notification: notification,
		config:       config,
	}
}

func (c *TaskController) CreateTask(
	ctx context.Context,
	actor *User,
	req CreateTaskRequest,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("CreateTask")

	if req.Title == "" {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "title is required")
	}
	if req.Price.IsNegative() {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "price cannot be negative", "price", req.Price)
	}

	source := req.Source
	if source == "" {
		source = SourceManual
	}
	metadata := req.Metadata
	metadata.Source = source

	// Check-in submissions wait for a manager to accept them before
	// entering the pool.
	status := TaskWaiting
	if source == SourceCheckIn {
		status = TaskWaitingForApproval
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	task := &Task{
		OrgID:        actor.OrgID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       status,
		Priority:     priority,
		VehicleID:    req.VehicleID,
		Price:        req.Price,
		AllottedTime: req.AllottedTime,
		Metadata:     NewTaskMetadata(metadata),
		CreatedBy:    actor.ID,
	}

	if err := c.taskRepo.Create(ctx, c.db.SQL, task); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to create task", "error", err)
	}

	if status == TaskWaitingForApproval {
		c.notifyManagers(ctx, actor, task, NotificationTaskPending, log)
	}

	return task, nil
}

func (c *TaskController) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("GetTask")

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, id)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", id)
	}

	return task, nil
}

func (c *TaskController) ListTasks(
	ctx context.Context,
	orgID uuid.UUID,
	status *TaskStatus,
) ([]*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("ListTasks")

	tasks, err := c.taskRepo.ListByOrg(ctx, c.db.SQL, orgID, status)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list tasks", "error", err)
	}

	return tasks, nil
}

func (c *TaskController) ClaimTask(
	ctx context.Context,
	actor *User,
	taskID uuid.UUID,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("ClaimTask")

	err := c.transaction.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		rows, err := c.taskRepo.ClaimWaiting(ctx, tx, taskID, time.Now())
		if err != nil {
			return log.ErrorWithType(apperrors.ErrUpdate, "claim update failed", "taskID", taskID, "error", err)
		}
		if rows == 0 {
			if _, lookupErr := c.taskRepo.GetByID(ctx, tx, taskID); lookupErr != nil {
				return log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", taskID)
			}
			return log.ErrorWithType(apperrors.ErrConflict, "task already claimed", "taskID", taskID)
		}

		return c.taskRepo.AddAssignment(ctx, tx, taskID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, taskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found after claim", "taskID", taskID)
	}

	c.notifyManagers(ctx, actor, task, NotificationTaskClaimed, log)

	return task, nil
}

func (c *TaskController) ReleaseTask(
	ctx context.Context,
	actor *User,
	taskID uuid.UUID,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("ReleaseTask")

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, taskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", taskID)
	}

	if task.Status != TaskInProgress {
		return nil, log.ErrorWithType(apperrors.ErrInvalidTransition, "only in-progress tasks can be released", "status", task.Status)
	}
	if !task.IsAssignedTo(actor.ID) && !actor.IsManager() {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "caller is not assigned to this task", "taskID", taskID)
	}

	err = c.transaction.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		rows, err := c.taskRepo.SetStatus(ctx, tx, taskID, TaskInProgress, map[string]any{
			"status":     TaskWaiting,
			"started_at": nil,
		})
		if err != nil {
			return log.ErrorWithType(apperrors.ErrUpdate, "release update failed", "taskID", taskID, "error", err)
		}
		if rows == 0 {
			return log.ErrorWithType(apperrors.ErrConflict, "task changed state during release", "taskID", taskID)
		}

		return c.taskRepo.ClearAssignments(ctx, tx, taskID)
	})
	if err != nil {
		return nil, err
	}

	task.Status = TaskWaiting
	task.StartedAt = nil
	task.Assignments = nil

	c.notifyManagers(ctx, actor, task, NotificationTaskReleased, log)

	return task, nil
}

func (c *TaskController) UpdateTaskStatus(
	ctx context.Context,
	actor *User,
	taskID uuid.UUID,
	next TaskStatus,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("UpdateTaskStatus")

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, taskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", taskID)
	}

	if !task.Status.CanTransitionTo(next) {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"transition not allowed",
			"from", task.Status,
			"to", next,
		)
	}

	if next == TaskCompleted {
		open, err := c.proposalRepo.CountOpenByTask(ctx, c.db.SQL, taskID)
		if err != nil {
			return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to check open proposals", "error", err)
		}
		if open > 0 {
			return nil, log.ErrorWithType(
				apperrors.ErrConflict,
				"task has unresolved proposals",
				"taskID", taskID,
				"openProposals", open,
			)
		}
	}

	patch := map[string]any{"status": next}
	now := time.Now()
	if next == TaskCompleted {
		patch["completed_at"] = now
	}

	rows, err := c.taskRepo.SetStatus(ctx, c.db.SQL, taskID, task.Status, patch)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "status update failed", "taskID", taskID, "error", err)
	}
	if rows == 0 {
		return nil, log.ErrorWithType(apperrors.ErrConflict, "task changed state concurrently", "taskID", taskID)
	}

	task.Status = next
	if next == TaskCompleted {
		task.CompletedAt = &now
	}

	switch next {
	case TaskCompleted:
		c.notifyManagers(ctx, actor, task, NotificationTaskCompleted, log)
	case TaskCancelled:
		c.notifyManagers(ctx, actor, task, NotificationTaskCancelled, log)
	}

	return task, nil
}

func (c *TaskController) ApproveTask(
	ctx context.Context,
	actor *User,
	taskID uuid.UUID,
	req ApproveTaskRequest,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskController").Function("ApproveTask")

	if !actor.IsManager() {
		return nil, log.ErrorWithType(apperrors.ErrValidation, "only managers can approve tasks")
	}

	task, err := c.taskRepo.GetByID(ctx, c.db.SQL, taskID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", taskID)
	}

	if task.Status != TaskWaitingForApproval {
		return nil, log.ErrorWithType(apperrors.ErrInvalidTransition, "task is not awaiting approval", "status", task.Status)
	}

	if req.SendToTeamNow {
		rows, err := c.taskRepo.SetStatus(ctx, c.db.SQL, taskID, TaskWaitingForApproval, map[string]any{
			"status":      TaskWaiting,
			"reminder_at": nil,
		})
		if err != nil {
			return nil, log.ErrorWithType(apperrors.ErrUpdate, "approval update failed", "taskID", taskID, "error", err)
		}
		if rows == 0 {
			return nil, log.ErrorWithType(apperrors.ErrConflict, "task changed state concurrently", "taskID", taskID)
		}
		task.Status = TaskWaiting
		task.ReminderAt = nil
	} else {
		if req.ReminderAt == nil {
			return nil, log.ErrorWithType(apperrors.ErrValidation, "reminder time is required when not sending to team now")
		}
		rows, err := c.taskRepo.SetStatus(ctx, c.db.SQL, taskID, TaskWaitingForApproval, map[string]any{
			"reminder_at": *req.ReminderAt,
		})
		if err != nil {
			return nil, log.ErrorWithType(apperrors.ErrUpdate, "reminder update failed", "taskID", taskID, "error", err)
		}
		if rows == 0 {
			return nil, log.ErrorWithType(apperrors.ErrConflict, "task changed state concurrently", "taskID", taskID)
		}
		task.ReminderAt = req.ReminderAt
	}

	c.notifyUser(ctx, actor, task.CreatedBy, task, NotificationTaskApproved, "הטיפול אושר", log)

	return task, nil
}

func (c *TaskController) DeleteTask(
	ctx context.Context,
	actor *User,
	taskID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "taskController").Function("DeleteTask")

	if !actor.IsManager() {
		return log.ErrorWithType(apperrors.ErrValidation, "only managers can delete tasks")
	}

	if _, err := c.taskRepo.GetByID(ctx, c.db.SQL, taskID); err != nil {
		return log.ErrorWithType(apperrors.ErrNotFound, "task not found", "taskID", taskID)
	}

	if err := c.taskRepo.Delete(ctx, c.db.SQL, taskID); err != nil {
		return log.ErrorWithType(apperrors.ErrUpdate, "failed to delete task", "taskID", taskID, "error", err)
	}

	// Notifications referencing the task keep their reference_id; readers
	// treat a missing referent as "entity gone".
	return nil
}

// notifyManagers fans out a lifecycle event to the org's managers. Failures
// are logged and do not block the mutation that already happened.
func (c *TaskController) notifyManagers(
	ctx context.Context,
	actor *User,
	task *Task,
	notificationType NotificationType,
	log logger.Logger,
) {
	managers, err := c.userRepo.ListManagers(ctx, c.db.SQL, task.OrgID)
	if err != nil {
		log.Warn("failed to list managers for notification", "orgID", task.OrgID, "error", err)
		return
	}

	managerIDs := make([]uuid.UUID, 0, len(managers))
	for _, manager := range managers {
		managerIDs = append(managerIDs, manager.ID)
	}

	actorID := actor.ID
	referenceID := task.ID
	if _, err := c.notification.NotifyMultiple(ctx, notificationController.NotificationInput{
		OrgID:       task.OrgID,
		ActorID:     &actorID,
		Title:       titleFor(notificationType, actor, task),
		Message:     task.Title,
		Type:        notificationType,
		ReferenceID: &referenceID,
		Urgent:      task.Priority == PriorityUrgent,
	}, managerIDs); err != nil {
		log.Warn("failed to notify managers", "taskID", task.ID, "error", err)
	}
}

func (c *TaskController) notifyUser(
	ctx context.Context,
	actor *User,
	recipientID uuid.UUID,
	task *Task,
	notificationType NotificationType,
	title string,
	log logger.Logger,
) {
	actorID := actor.ID
	referenceID := task.ID
	if _, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
		OrgID:       task.OrgID,
		UserID:      recipientID,
		ActorID:     &actorID,
		Title:       title,
		Message:     task.Title,
		Type:        notificationType,
		ReferenceID: &referenceID,
		Urgent:      task.Priority == PriorityUrgent,
	}); err != nil {
		log.Warn("failed to notify user", "taskID", task.ID, "recipientID", recipientID, "error", err)
	}
}

func titleFor(notificationType NotificationType, actor *User, task *Task) string {
	switch notificationType {
	case NotificationTaskClaimed:
		return fmt.Sprintf("%s לקח טיפול", actor.FullName)
	case NotificationTaskReleased:
		return fmt.Sprintf("%s החזיר טיפול למאגר", actor.FullName)
	case NotificationTaskCompleted:
		return fmt.Sprintf("הטיפול \"%s\" הושלם", task.Title)
	case NotificationTaskCancelled:
		return fmt.Sprintf("הטיפול \"%s\" בוטל", task.Title)
	case NotificationTaskPending:
		return "קליטה חדשה ממתינה לאישור"
	default:
		return task.Title
	}
}
