package taskController

import (
	"context"
	"testing"
	"time"

	"pitstop/internal/apperrors"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/database"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTaskRepo struct {
	repositories.TaskRepository
	tasks       map[uuid.UUID]*Task
	assignments map[uuid.UUID][]uuid.UUID
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks:       make(map[uuid.UUID]*Task),
		assignments: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeTaskRepo) put(task *Task) *Task {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	f.tasks[task.ID] = task
	return task
}

func (f *fakeTaskRepo) Create(ctx context.Context, tx *gorm.DB, task *Task) error {
	f.put(task)
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *task
	copied.Assignments = nil
	for _, userID := range f.assignments[id] {
		copied.Assignments = append(copied.Assignments, TaskAssignment{TaskID: id, UserID: userID})
	}
	return &copied, nil
}

func (f *fakeTaskRepo) ClaimWaiting(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
	startedAt time.Time,
) (int64, error) {
	task, ok := f.tasks[taskID]
	if !ok || task.Status != TaskWaiting {
		return 0, nil
	}
	task.Status = TaskInProgress
	task.StartedAt = &startedAt
	return 1, nil
}

func (f *fakeTaskRepo) SetStatus(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
	expected TaskStatus,
	patch map[string]any,
) (int64, error) {
	task, ok := f.tasks[taskID]
	if !ok || task.Status != expected {
		return 0, nil
	}
	if status, ok := patch["status"]; ok {
		task.Status = status.(TaskStatus)
	}
	return 1, nil
}

func (f *fakeTaskRepo) AddAssignment(ctx context.Context, tx *gorm.DB, taskID, userID uuid.UUID) error {
	f.assignments[taskID] = append(f.assignments[taskID], userID)
	return nil
}

func (f *fakeTaskRepo) ClearAssignments(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) error {
	delete(f.assignments, taskID)
	return nil
}

type fakeProposalRepo struct {
	repositories.ProposalRepository
	openByTask map[uuid.UUID]int64
}

func (f *fakeProposalRepo) CountOpenByTask(ctx context.Context, tx *gorm.DB, taskID uuid.UUID) (int64, error) {
	return f.openByTask[taskID], nil
}

type fakeUserRepo struct {
	repositories.UserRepository
	managers []*User
}

func (f *fakeUserRepo) ListManagers(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*User, error) {
	return f.managers, nil
}

type fakeNotifier struct {
	notificationController.NotificationControllerInterface
	sent []notificationController.NotificationInput
}

func (f *fakeNotifier) SendSystemNotification(
	ctx context.Context,
	input notificationController.NotificationInput,
) (*Notification, error) {
	f.sent = append(f.sent, input)
	return &Notification{}, nil
}

func (f *fakeNotifier) NotifyMultiple(
	ctx context.Context,
	input notificationController.NotificationInput,
	userIDs []uuid.UUID,
) ([]*Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	f.sent = append(f.sent, input)
	return make([]*Notification, len(userIDs)), nil
}

// passthroughExecutor runs the function directly; the fakes below provide
// the row-level guard semantics a real transaction would.
type passthroughExecutor struct{}

func (passthroughExecutor) Execute(ctx context.Context, fn func(context.Context, *gorm.DB) error) error {
	return fn(ctx, nil)
}

func newTestController() (*TaskController, *fakeTaskRepo, *fakeProposalRepo, *fakeNotifier) {
	taskRepo := newFakeTaskRepo()
	proposalRepo := &fakeProposalRepo{openByTask: make(map[uuid.UUID]int64)}
	notifier := &fakeNotifier{}

	controller := &TaskController{
		taskRepo:     taskRepo,
		proposalRepo: proposalRepo,
		userRepo:     &fakeUserRepo{managers: []*User{{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}, Role: RoleManager}}},
		db:           database.DB{},
		transaction:  passthroughExecutor{},
		notification: notifier,
	}

	return controller, taskRepo, proposalRepo, notifier
}

func staffUser() *User {
	return &User{
		BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
		OrgID:         uuid.New(),
		FullName:      "יוסי כהן",
		Role:          RoleStaff,
	}
}

func managerUser() *User {
	user := staffUser()
	user.Role = RoleManager
	return user
}

func TestClaimTask(t *testing.T) {
	t.Run("claims a waiting task", func(t *testing.T) {
		controller, taskRepo, _, notifier := newTestController()
		staff := staffUser()
		task := taskRepo.put(&Task{OrgID: staff.OrgID, Title: "החלפת שמן", Status: TaskWaiting})

		claimed, err := controller.ClaimTask(context.Background(), staff, task.ID)

		require.NoError(t, err)
		assert.Equal(t, TaskInProgress, claimed.Status)
		assert.Equal(t, []uuid.UUID{staff.ID}, claimed.AssignedTo())
		assert.NotEmpty(t, notifier.sent)
	})

	t.Run("second claim loses the race", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		staffA := staffUser()
		staffB := staffUser()
		task := taskRepo.put(&Task{OrgID: staffA.OrgID, Title: "בדיקת בלמים", Status: TaskWaiting})

		_, err := controller.ClaimTask(context.Background(), staffA, task.ID)
		require.NoError(t, err)

		_, err = controller.ClaimTask(context.Background(), staffB, task.ID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		// The winner's claim is untouched.
		after, err := taskRepo.GetByID(context.Background(), nil, task.ID)
		require.NoError(t, err)
		assert.Equal(t, TaskInProgress, after.Status)
		assert.Equal(t, []uuid.UUID{staffA.ID}, after.AssignedTo())
	})

	t.Run("unknown task", func(t *testing.T) {
		controller, _, _, _ := newTestController()

		_, err := controller.ClaimTask(context.Background(), staffUser(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReleaseTask(t *testing.T) {
	t.Run("assigned staff releases back to pool", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		staff := staffUser()
		task := taskRepo.put(&Task{OrgID: staff.OrgID, Status: TaskWaiting})

		_, err := controller.ClaimTask(context.Background(), staff, task.ID)
		require.NoError(t, err)

		released, err := controller.ReleaseTask(context.Background(), staff, task.ID)
		require.NoError(t, err)
		assert.Equal(t, TaskWaiting, released.Status)
		assert.Empty(t, released.AssignedTo())
	})

	t.Run("unassigned staff cannot release", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		staff := staffUser()
		other := staffUser()
		task := taskRepo.put(&Task{OrgID: staff.OrgID, Status: TaskWaiting})

		_, err := controller.ClaimTask(context.Background(), staff, task.ID)
		require.NoError(t, err)

		_, err = controller.ReleaseTask(context.Background(), other, task.ID)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("manager may release any task", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		staff := staffUser()
		task := taskRepo.put(&Task{OrgID: staff.OrgID, Status: TaskWaiting})

		_, err := controller.ClaimTask(context.Background(), staff, task.ID)
		require.NoError(t, err)

		_, err = controller.ReleaseTask(context.Background(), managerUser(), task.ID)
		assert.NoError(t, err)
	})

	t.Run("waiting task cannot be released", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		staff := staffUser()
		task := taskRepo.put(&Task{OrgID: staff.OrgID, Status: TaskWaiting})

		_, err := controller.ReleaseTask(context.Background(), staff, task.ID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	t.Run("disallowed transition", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaiting})

		_, err := controller.UpdateTaskStatus(context.Background(), staffUser(), task.ID, TaskCompleted)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("completion blocked by open proposals", func(t *testing.T) {
		controller, taskRepo, proposalRepo, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskInProgress})
		proposalRepo.openByTask[task.ID] = 2

		_, err := controller.UpdateTaskStatus(context.Background(), staffUser(), task.ID, TaskCompleted)
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		after, err := taskRepo.GetByID(context.Background(), nil, task.ID)
		require.NoError(t, err)
		assert.Equal(t, TaskInProgress, after.Status)
	})

	t.Run("completion allowed once proposals resolve", func(t *testing.T) {
		controller, taskRepo, _, notifier := newTestController()
		task := taskRepo.put(&Task{Status: TaskInProgress})

		updated, err := controller.UpdateTaskStatus(context.Background(), staffUser(), task.ID, TaskCompleted)
		require.NoError(t, err)
		assert.Equal(t, TaskCompleted, updated.Status)
		assert.NotNil(t, updated.CompletedAt)
		assert.NotEmpty(t, notifier.sent)
	})

	t.Run("cancel from pool", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaiting})

		updated, err := controller.UpdateTaskStatus(context.Background(), managerUser(), task.ID, TaskCancelled)
		require.NoError(t, err)
		assert.Equal(t, TaskCancelled, updated.Status)
	})
}

func TestApproveTask(t *testing.T) {
	t.Run("manager sends to team now", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaitingForApproval})

		approved, err := controller.ApproveTask(context.Background(), managerUser(), task.ID, ApproveTaskRequest{
			SendToTeamNow: true,
		})

		require.NoError(t, err)
		assert.Equal(t, TaskWaiting, approved.Status)
	})

	t.Run("manager schedules a reminder", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaitingForApproval})
		reminderAt := time.Now().Add(24 * time.Hour)

		approved, err := controller.ApproveTask(context.Background(), managerUser(), task.ID, ApproveTaskRequest{
			ReminderAt: &reminderAt,
		})

		require.NoError(t, err)
		assert.Equal(t, TaskWaitingForApproval, approved.Status, "task stays pending until the sweep")
		require.NotNil(t, approved.ReminderAt)
		assert.WithinDuration(t, reminderAt, *approved.ReminderAt, time.Second)
	})

	t.Run("reminder time required when deferring", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaitingForApproval})

		_, err := controller.ApproveTask(context.Background(), managerUser(), task.ID, ApproveTaskRequest{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("staff cannot approve", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaitingForApproval})

		_, err := controller.ApproveTask(context.Background(), staffUser(), task.ID, ApproveTaskRequest{
			SendToTeamNow: true,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("only approval-pending tasks qualify", func(t *testing.T) {
		controller, taskRepo, _, _ := newTestController()
		task := taskRepo.put(&Task{Status: TaskWaiting})

		_, err := controller.ApproveTask(context.Background(), managerUser(), task.ID, ApproveTaskRequest{
			SendToTeamNow: true,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

func TestCreateTask(t *testing.T) {
	t.Run("manual task enters the pool", func(t *testing.T) {
		controller, _, _, _ := newTestController()

		task, err := controller.CreateTask(context.Background(), managerUser(), CreateTaskRequest{
			Title: "טיפול 10,000",
		})

		require.NoError(t, err)
		assert.Equal(t, TaskWaiting, task.Status)
		assert.Equal(t, SourceManual, task.Metadata.Data().Source)
	})

	t.Run("check-in waits for approval", func(t *testing.T) {
		controller, _, _, notifier := newTestController()

		task, err := controller.CreateTask(context.Background(), staffUser(), CreateTaskRequest{
			Title:  "רעש מהמנוע",
			Source: SourceCheckIn,
		})

		require.NoError(t, err)
		assert.Equal(t, TaskWaitingForApproval, task.Status)
		assert.NotEmpty(t, notifier.sent, "managers are told about the pending check-in")
	})

	t.Run("title required", func(t *testing.T) {
		controller, _, _, _ := newTestController()

		_, err := controller.CreateTask(context.Background(), managerUser(), CreateTaskRequest{})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}
