package repositories

import (
	"context"
	"time"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(ctx context.Context, tx *gorm.DB, task *Task) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Task, error)
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status *TaskStatus) ([]*Task, error)
	Update(ctx context.Context, tx *gorm.DB, task *Task) error

	// ClaimWaiting is the claim mutual-exclusion primitive: a conditional
	// update that only applies while the row is still WAITING. Zero affected
	// rows means another actor won the race.
	ClaimWaiting(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, startedAt time.Time) (int64, error)

	// SetStatus applies patch only while the row's status still equals
	// expected, returning affected rows.
	SetStatus(ctx context.Context, tx *gorm.DB, taskID uuid.UUID, expected TaskStatus, patch map[string]any) (int64, error)

	AddAssignment(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) error
	ClearAssignments(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error

	ListInProgressSince(ctx context.Context, tx *gorm.DB, startedBefore time.Time) ([]*Task, error)
	ListDueReminders(ctx context.Context, tx *gorm.DB, now time.Time) ([]*Task, error)
	ListCompletedBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*Task, error)
}

type taskRepository struct{}

func NewTaskRepository() TaskRepository {
	return &taskRepository{}
}

func (r *taskRepository) Create(ctx context.Context, tx *gorm.DB, task *Task) error {
	log := logger.NewWithContext(ctx, "taskRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(task).Error; err != nil {
		return log.Err("failed to create task", err, "title", task.Title, "orgID", task.OrgID)
	}

	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Task, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("GetByID")

	var task Task
	if err := tx.WithContext(ctx).
		Preload("Assignments").
		First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get task", err, "taskID", id)
	}

	return &task, nil
}

func (r *taskRepository) ListByOrg(
	ctx context.Context,
	tx *gorm.DB,
	orgID uuid.UUID,
	status *TaskStatus,
) ([]*Task, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ListByOrg")

	query := tx.WithContext(ctx).
		Preload("Assignments").
		Where("org_id = ?", orgID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var tasks []*Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, log.Err("failed to list tasks", err, "orgID", orgID)
	}

	return tasks, nil
}

func (r *taskRepository) Update(ctx context.Context, tx *gorm.DB, task *Task) error {
	log := logger.NewWithContext(ctx, "taskRepository").Function("Update")

	if err := tx.WithContext(ctx).Save(task).Error; err != nil {
		return log.Err("failed to update task", err, "taskID", task.ID)
	}

	return nil
}

func (r *taskRepository) ClaimWaiting(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
	startedAt time.Time,
) (int64, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ClaimWaiting")

	result := tx.WithContext(ctx).
		Model(&Task{}).
		Where("id = ? AND status = ?", taskID, TaskWaiting).
		Updates(map[string]any{
			"status":     TaskInProgress,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return 0, log.Err("failed to claim task", result.Error, "taskID", taskID)
	}

	return result.RowsAffected, nil
}

func (r *taskRepository) SetStatus(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
	expected TaskStatus,
	patch map[string]any,
) (int64, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("SetStatus")

	result := tx.WithContext(ctx).
		Model(&Task{}).
		Where("id = ? AND status = ?", taskID, expected).
		Updates(patch)
	if result.Error != nil {
		return 0, log.Err("failed to set task status", result.Error, "taskID", taskID)
	}

	return result.RowsAffected, nil
}

func (r *taskRepository) AddAssignment(
	ctx context.Context,
	tx *gorm.DB,
	taskID, userID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "taskRepository").Function("AddAssignment")

	assignment := TaskAssignment{TaskID: taskID, UserID: userID}
	if err := tx.WithContext(ctx).Create(&assignment).Error; err != nil {
		return log.Err("failed to add assignment", err, "taskID", taskID, "userID", userID)
	}

	return nil
}

func (r *taskRepository) ClearAssignments(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ClearAssignments")

	if err := tx.WithContext(ctx).
		Unscoped().
		Where("task_id = ?", taskID).
		Delete(&TaskAssignment{}).Error; err != nil {
		return log.Err("failed to clear assignments", err, "taskID", taskID)
	}

	return nil
}

func (r *taskRepository) Delete(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error {
	log := logger.NewWithContext(ctx, "taskRepository").Function("Delete")

	if err := tx.WithContext(ctx).
		Unscoped().
		Where("task_id = ?", taskID).
		Delete(&TaskAssignment{}).Error; err != nil {
		return log.Err("failed to delete task assignments", err, "taskID", taskID)
	}

	result := tx.WithContext(ctx).Unscoped().Delete(&Task{}, "id = ?", taskID)
	if result.Error != nil {
		return log.Err("failed to delete task", result.Error, "taskID", taskID)
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *taskRepository) ListInProgressSince(
	ctx context.Context,
	tx *gorm.DB,
	startedBefore time.Time,
) ([]*Task, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ListInProgressSince")

	var tasks []*Task
	if err := tx.WithContext(ctx).
		Preload("Assignments").
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", TaskInProgress, startedBefore).
		Find(&tasks).Error; err != nil {
		return nil, log.Err("failed to list delayed tasks", err)
	}

	return tasks, nil
}

func (r *taskRepository) ListDueReminders(
	ctx context.Context,
	tx *gorm.DB,
	now time.Time,
) ([]*Task, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ListDueReminders")

	var tasks []*Task
	if err := tx.WithContext(ctx).
		Where("status = ? AND reminder_at IS NOT NULL AND reminder_at <= ?", TaskWaitingForApproval, now).
		Find(&tasks).Error; err != nil {
		return nil, log.Err("failed to list due reminders", err)
	}

	return tasks, nil
}

func (r *taskRepository) ListCompletedBetween(
	ctx context.Context,
	tx *gorm.DB,
	from, to time.Time,
) ([]*Task, error) {
	log := logger.NewWithContext(ctx, "taskRepository").Function("ListCompletedBetween")

	var tasks []*Task
	if err := tx.WithContext(ctx).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", TaskCompleted, from, to).
		Find(&tasks).Error; err != nil {
		return nil, log.Err("failed to list completed tasks", err)
	}

	return tasks, nil
}
