package sweepController

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pitstop/config"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/database"
	"pitstop/internal/events"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// The sweeps run against the real notification controller so the
// (reference, type) dedup behaves exactly as it does in production.
type fakeNotificationRepo struct {
	repositories.NotificationRepository
	stored []*Notification
}

func (f *fakeNotificationRepo) Create(ctx context.Context, tx *gorm.DB, notification *Notification) error {
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	f.stored = append(f.stored, notification)
	return nil
}

func (f *fakeNotificationRepo) CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*Notification) error {
	for _, notification := range notifications {
		notification.ID = uuid.New()
		notification.CreatedAt = time.Now()
		f.stored = append(f.stored, notification)
	}
	return nil
}

func (f *fakeNotificationRepo) ExistsByReferenceAndType(
	ctx context.Context,
	tx *gorm.DB,
	referenceID uuid.UUID,
	notificationType NotificationType,
	since time.Time,
) (bool, error) {
	for _, notification := range f.stored {
		if notification.ReferenceID != nil && *notification.ReferenceID == referenceID &&
			notification.Type == notificationType && !notification.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type fakeBus struct{}

func (fakeBus) PublishNotificationCreated(notification *Notification) error { return nil }
func (fakeBus) Subscribe(channel events.Channel, handler events.EventHandler) error {
	return nil
}

type fakeTaskRepo struct {
	repositories.TaskRepository
	inProgress []*Task
	reminders  []*Task
	completed  []*Task
}

func (f *fakeTaskRepo) ListInProgressSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*Task, error) {
	return f.inProgress, nil
}

func (f *fakeTaskRepo) ListDueReminders(ctx context.Context, tx *gorm.DB, now time.Time) ([]*Task, error) {
	return f.reminders, nil
}

func (f *fakeTaskRepo) ListCompletedBetween(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*Task, error) {
	return f.completed, nil
}

func (f *fakeTaskRepo) SetStatus(
	ctx context.Context,
	tx *gorm.DB,
	taskID uuid.UUID,
	expected TaskStatus,
	patch map[string]any,
) (int64, error) {
	for _, task := range f.reminders {
		if task.ID == taskID && task.Status == expected {
			task.Status = patch["status"].(TaskStatus)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeOrgRepo struct {
	repositories.OrganizationRepository
	orgs []*Organization
}

func (f *fakeOrgRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*Organization, error) {
	return f.orgs, nil
}

type fakeAppointmentRepo struct {
	repositories.AppointmentRepository
	pendingByOrg map[uuid.UUID][]*Appointment
	failingOrgs  map[uuid.UUID]bool
}

func (f *fakeAppointmentRepo) ListByOrg(
	ctx context.Context,
	tx *gorm.DB,
	orgID uuid.UUID,
	status *AppointmentStatus,
) ([]*Appointment, error) {
	if f.failingOrgs[orgID] {
		return nil, fmt.Errorf("listing appointments for org %s: connection reset", orgID)
	}
	return f.pendingByOrg[orgID], nil
}

type fakeUserRepo struct {
	repositories.UserRepository
	managersByOrg map[uuid.UUID][]*User
}

func (f *fakeUserRepo) ListManagers(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*User, error) {
	return f.managersByOrg[orgID], nil
}

type fakeVehicleRepo struct {
	repositories.VehicleRepository
	vehicles map[uuid.UUID]*Vehicle
}

func (f *fakeVehicleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Vehicle, error) {
	vehicle, ok := f.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return vehicle, nil
}

type sweepFixture struct {
	controller       *SweepController
	taskRepo         *fakeTaskRepo
	orgRepo          *fakeOrgRepo
	appointmentRepo  *fakeAppointmentRepo
	userRepo         *fakeUserRepo
	vehicleRepo      *fakeVehicleRepo
	notificationRepo *fakeNotificationRepo
}

func newFixture() *sweepFixture {
	taskRepo := &fakeTaskRepo{}
	orgRepo := &fakeOrgRepo{}
	appointmentRepo := &fakeAppointmentRepo{
		pendingByOrg: make(map[uuid.UUID][]*Appointment),
		failingOrgs:  make(map[uuid.UUID]bool),
	}
	userRepo := &fakeUserRepo{managersByOrg: make(map[uuid.UUID][]*User)}
	vehicleRepo := &fakeVehicleRepo{vehicles: make(map[uuid.UUID]*Vehicle)}
	notificationRepo := &fakeNotificationRepo{}

	db := database.DB{}
	notification := notificationController.New(
		repositories.Repository{Notification: notificationRepo},
		db,
		fakeBus{},
		config.Config{},
	)

	controller := &SweepController{
		taskRepo:        taskRepo,
		appointmentRepo: appointmentRepo,
		orgRepo:         orgRepo,
		userRepo:        userRepo,
		vehicleRepo:     vehicleRepo,
		db:              db,
		notification:    notification,
	}

	return &sweepFixture{
		controller:       controller,
		taskRepo:         taskRepo,
		orgRepo:          orgRepo,
		appointmentRepo:  appointmentRepo,
		userRepo:         userRepo,
		vehicleRepo:      vehicleRepo,
		notificationRepo: notificationRepo,
	}
}

func (f *sweepFixture) addManager(orgID uuid.UUID) *User {
	manager := &User{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}, OrgID: orgID, Role: RoleManager}
	f.userRepo.managersByOrg[orgID] = append(f.userRepo.managersByOrg[orgID], manager)
	return manager
}

func TestDelayedTaskCheck(t *testing.T) {
	t.Run("repeat runs alert each stalled task once", func(t *testing.T) {
		fixture := newFixture()
		staffID := uuid.New()
		fixture.taskRepo.inProgress = []*Task{{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			OrgID:         uuid.New(),
			Title:         "החלפת מצמד",
			Status:        TaskInProgress,
			Assignments:   []TaskAssignment{{UserID: staffID}},
		}}

		first, err := fixture.controller.DelayedTaskCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, first.NotificationsSent)

		second, err := fixture.controller.DelayedTaskCheck(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.NotificationsSent)
		assert.Equal(t, 1, second.Scanned)

		require.Len(t, fixture.notificationRepo.stored, 1)
		stored := fixture.notificationRepo.stored[0]
		assert.Equal(t, "שים לב: טיפול מתעכב", stored.Title)
		assert.Equal(t, staffID, stored.UserID)
		assert.True(t, stored.Urgent)
	})

	t.Run("unassigned tasks are skipped", func(t *testing.T) {
		fixture := newFixture()
		fixture.taskRepo.inProgress = []*Task{{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			Status:        TaskInProgress,
		}}

		summary, err := fixture.controller.DelayedTaskCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Scanned)
		assert.Zero(t, summary.NotificationsSent)
		assert.Empty(t, fixture.notificationRepo.stored)
	})
}

func TestScheduledReminderCheck(t *testing.T) {
	t.Run("promotes due tasks and reminds a manager", func(t *testing.T) {
		fixture := newFixture()
		orgID := uuid.New()
		manager := fixture.addManager(orgID)
		reminderAt := time.Now().Add(-time.Minute)
		task := &Task{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			OrgID:         orgID,
			Title:         "טיפול מתוזמן",
			Status:        TaskWaitingForApproval,
			ReminderAt:    &reminderAt,
		}
		fixture.taskRepo.reminders = []*Task{task}

		summary, err := fixture.controller.ScheduledReminderCheck(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, summary.NotificationsSent)
		assert.Equal(t, TaskWaiting, task.Status)
		require.Len(t, fixture.notificationRepo.stored, 1)
		assert.Equal(t, manager.ID, fixture.notificationRepo.stored[0].UserID)
	})

	t.Run("already-moved tasks are left alone", func(t *testing.T) {
		fixture := newFixture()
		orgID := uuid.New()
		fixture.addManager(orgID)
		task := &Task{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			OrgID:         orgID,
			Status:        TaskWaiting,
		}
		fixture.taskRepo.reminders = []*Task{task}

		summary, err := fixture.controller.ScheduledReminderCheck(context.Background())

		require.NoError(t, err)
		assert.Zero(t, summary.NotificationsSent)
		assert.Empty(t, fixture.notificationRepo.stored)
	})
}

func TestDailyAppointmentDigest(t *testing.T) {
	t.Run("one failing organization does not block the rest", func(t *testing.T) {
		fixture := newFixture()

		badOrg := &Organization{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}}
		goodOrg := &Organization{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}}
		fixture.orgRepo.orgs = []*Organization{badOrg, goodOrg}

		fixture.appointmentRepo.failingOrgs[badOrg.ID] = true
		fixture.appointmentRepo.pendingByOrg[goodOrg.ID] = []*Appointment{
			{Status: AppointmentPending},
			{Status: AppointmentPending},
		}
		fixture.addManager(goodOrg.ID)
		fixture.addManager(goodOrg.ID)

		summary, err := fixture.controller.DailyAppointmentDigest(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, summary.Scanned)
		assert.Equal(t, 1, summary.Errors)
		assert.Equal(t, 2, summary.NotificationsSent, "one digest per manager of the healthy org")

		for _, stored := range fixture.notificationRepo.stored {
			assert.Equal(t, goodOrg.ID, stored.OrgID)
			assert.Contains(t, stored.Title, "2")
		}
	})

	t.Run("same-day rerun sends nothing", func(t *testing.T) {
		fixture := newFixture()
		org := &Organization{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}}
		fixture.orgRepo.orgs = []*Organization{org}
		fixture.appointmentRepo.pendingByOrg[org.ID] = []*Appointment{{Status: AppointmentPending}}
		fixture.addManager(org.ID)

		first, err := fixture.controller.DailyAppointmentDigest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, first.NotificationsSent)

		second, err := fixture.controller.DailyAppointmentDigest(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.NotificationsSent)
		assert.Len(t, fixture.notificationRepo.stored, 1)

		// Yesterday's digest does not hold back today's.
		fixture.notificationRepo.stored[0].CreatedAt = time.Now().Add(-24 * time.Hour)

		third, err := fixture.controller.DailyAppointmentDigest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, third.NotificationsSent)
	})

	t.Run("quiet organizations get no digest", func(t *testing.T) {
		fixture := newFixture()
		org := &Organization{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}}
		fixture.orgRepo.orgs = []*Organization{org}
		fixture.addManager(org.ID)

		summary, err := fixture.controller.DailyAppointmentDigest(context.Background())

		require.NoError(t, err)
		assert.Zero(t, summary.NotificationsSent)
		assert.Empty(t, fixture.notificationRepo.stored)
	})
}

func TestPostCompletionSurveyCheck(t *testing.T) {
	t.Run("asks the vehicle owner once", func(t *testing.T) {
		fixture := newFixture()
		ownerID := uuid.New()
		vehicleID := uuid.New()
		fixture.vehicleRepo.vehicles[vehicleID] = &Vehicle{
			BaseUUIDModel: BaseUUIDModel{ID: vehicleID},
			OwnerID:       ownerID,
		}
		completedAt := time.Now().Add(-135 * time.Minute)
		fixture.taskRepo.completed = []*Task{{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			OrgID:         uuid.New(),
			Title:         "טיפול 20,000",
			Status:        TaskCompleted,
			VehicleID:     &vehicleID,
			CompletedAt:   &completedAt,
		}}

		first, err := fixture.controller.PostCompletionSurveyCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, first.NotificationsSent)

		second, err := fixture.controller.PostCompletionSurveyCheck(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.NotificationsSent)

		require.Len(t, fixture.notificationRepo.stored, 1)
		assert.Equal(t, ownerID, fixture.notificationRepo.stored[0].UserID)
		assert.Equal(t, NotificationSurvey, fixture.notificationRepo.stored[0].Type)
	})

	t.Run("tasks without a vehicle are skipped", func(t *testing.T) {
		fixture := newFixture()
		fixture.taskRepo.completed = []*Task{{
			BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
			Status:        TaskCompleted,
		}}

		summary, err := fixture.controller.PostCompletionSurveyCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Scanned)
		assert.Zero(t, summary.NotificationsSent)
	})
}
