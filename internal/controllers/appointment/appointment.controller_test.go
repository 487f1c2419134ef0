package appointmentController

import (
	"context"
	"strings"
	"testing"

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

type fakeAppointmentRepo struct {
	repositories.AppointmentRepository
	appointments  map[uuid.UUID]*Appointment
	forceLinkMiss bool
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (f *fakeAppointmentRepo) put(appointment *Appointment) *Appointment {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	f.appointments[appointment.ID] = appointment
	return appointment
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, tx *gorm.DB, appointment *Appointment) error {
	f.put(appointment)
	return nil
}

func (f *fakeAppointmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Appointment, error) {
	appointment, ok := f.appointments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *appointment
	return &copied, nil
}

func (f *fakeAppointmentRepo) SetStatus(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	status AppointmentStatus,
) error {
	appointment, ok := f.appointments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	appointment.Status = status
	return nil
}

func (f *fakeAppointmentRepo) LinkTask(
	ctx context.Context,
	tx *gorm.DB,
	appointmentID uuid.UUID,
	taskID uuid.UUID,
) (int64, error) {
	appointment, ok := f.appointments[appointmentID]
	if f.forceLinkMiss || !ok || appointment.TaskID != nil {
		return 0, nil
	}
	appointment.TaskID = &taskID
	return 1, nil
}

type fakeTaskRepo struct {
	repositories.TaskRepository
	tasks []*Task
}

func (f *fakeTaskRepo) Create(ctx context.Context, tx *gorm.DB, task *Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeUserRepo struct {
	repositories.UserRepository
}

func (f *fakeUserRepo) ListManagers(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*User, error) {
	return []*User{{BaseUUIDModel: BaseUUIDModel{ID: uuid.New()}, Role: RoleManager}}, nil
}

type fakeNotifier struct {
	notificationController.NotificationControllerInterface
	direct []notificationController.NotificationInput
	fanout []notificationController.NotificationInput
}

func (f *fakeNotifier) SendSystemNotification(
	ctx context.Context,
	input notificationController.NotificationInput,
) (*Notification, error) {
	f.direct = append(f.direct, input)
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
	f.fanout = append(f.fanout, input)
	return make([]*Notification, len(userIDs)), nil
}

func newTestController() (*AppointmentController, *fakeAppointmentRepo, *fakeTaskRepo, *fakeNotifier) {
	appointmentRepo := newFakeAppointmentRepo()
	taskRepo := &fakeTaskRepo{}
	notifier := &fakeNotifier{}

	controller := &AppointmentController{
		appointmentRepo: appointmentRepo,
		taskRepo:        taskRepo,
		userRepo:        &fakeUserRepo{},
		db:              database.DB{},
		notification:    notifier,
	}

	return controller, appointmentRepo, taskRepo, notifier
}

func customerUser() *User {
	return &User{
		BaseUUIDModel: BaseUUIDModel{ID: uuid.New()},
		OrgID:         uuid.New(),
		FullName:      "אבי מזרחי",
		Role:          RoleCustomer,
	}
}

func managerUser() *User {
	user := customerUser()
	user.Role = RoleManager
	return user
}

func TestCreateAppointment(t *testing.T) {
	t.Run("creates pending and notifies managers", func(t *testing.T) {
		controller, _, _, notifier := newTestController()
		customer := customerUser()

		appointment, err := controller.CreateAppointment(context.Background(), customer, CreateAppointmentRequest{
			PlateNumber:     "12-345-67",
			VehicleModel:    "מאזדה 3",
			ServiceType:     "טיפול שנתי",
			AppointmentDate: "2026-09-15",
			AppointmentTime: "09:30",
		})

		require.NoError(t, err)
		assert.Equal(t, AppointmentPending, appointment.Status)
		assert.Equal(t, customer.ID, appointment.CustomerID)
		assert.Len(t, notifier.fanout, 1)
	})

	t.Run("missing required fields", func(t *testing.T) {
		controller, _, _, _ := newTestController()

		tests := []CreateAppointmentRequest{
			{ServiceType: "טיפול", AppointmentDate: "2026-09-15", AppointmentTime: "09:30"},
			{PlateNumber: "12-345-67", AppointmentDate: "2026-09-15", AppointmentTime: "09:30"},
			{PlateNumber: "12-345-67", ServiceType: "טיפול", AppointmentTime: "09:30"},
			{PlateNumber: "12-345-67", ServiceType: "טיפול", AppointmentDate: "2026-09-15"},
		}
		for _, req := range tests {
			_, err := controller.CreateAppointment(context.Background(), customerUser(), req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		}
	})
}

func TestAppointmentStatusChanges(t *testing.T) {
	t.Run("approve notifies the customer", func(t *testing.T) {
		controller, appointmentRepo, _, notifier := newTestController()
		customerID := uuid.New()
		appointment := appointmentRepo.put(&Appointment{Status: AppointmentPending, CustomerID: customerID})

		approved, err := controller.ApproveAppointment(context.Background(), managerUser(), appointment.ID)

		require.NoError(t, err)
		assert.Equal(t, AppointmentApproved, approved.Status)
		require.Len(t, notifier.direct, 1)
		assert.Equal(t, customerID, notifier.direct[0].UserID)
	})

	t.Run("reject and cancel", func(t *testing.T) {
		controller, appointmentRepo, _, _ := newTestController()

		rejected := appointmentRepo.put(&Appointment{Status: AppointmentPending})
		result, err := controller.RejectAppointment(context.Background(), managerUser(), rejected.ID)
		require.NoError(t, err)
		assert.Equal(t, AppointmentRejected, result.Status)

		cancelled := appointmentRepo.put(&Appointment{Status: AppointmentApproved})
		result, err = controller.CancelAppointment(context.Background(), customerUser(), cancelled.ID)
		require.NoError(t, err)
		assert.Equal(t, AppointmentCancelled, result.Status)
	})

	t.Run("resolved appointments stay put", func(t *testing.T) {
		for _, status := range []AppointmentStatus{AppointmentRejected, AppointmentCancelled} {
			controller, appointmentRepo, _, notifier := newTestController()
			appointment := appointmentRepo.put(&Appointment{Status: status})

			_, err := controller.ApproveAppointment(context.Background(), managerUser(), appointment.ID)

			require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			assert.Equal(t, status, appointmentRepo.appointments[appointment.ID].Status)
			assert.Empty(t, notifier.direct)
		}
	})
}

func TestCreateTaskFromAppointment(t *testing.T) {
	approvedAppointment := func() *Appointment {
		return &Appointment{
			OrgID:           uuid.New(),
			CustomerID:      uuid.New(),
			PlateNumber:     "12-345-67",
			VehicleModel:    "מאזדה 3",
			ServiceType:     "החלפת צמיגים",
			AppointmentDate: "2026-09-15",
			AppointmentTime: "09:30",
			Status:          AppointmentApproved,
		}
	}

	t.Run("promotes into the pool and links back", func(t *testing.T) {
		controller, appointmentRepo, _, notifier := newTestController()
		appointment := appointmentRepo.put(approvedAppointment())

		task, err := controller.CreateTaskFromAppointment(context.Background(), managerUser(), appointment.ID)

		require.NoError(t, err)
		assert.Equal(t, TaskWaiting, task.Status)
		assert.True(t, strings.Contains(task.Title, "2026-09-15"), "task title carries the appointment date")
		assert.True(t, strings.Contains(task.Title, "החלפת צמיגים"))

		metadata := task.Metadata.Data()
		assert.Equal(t, SourceAppointment, metadata.Source)
		assert.Equal(t, appointment.ID.String(), metadata.AppointmentID)

		linked := appointmentRepo.appointments[appointment.ID]
		require.NotNil(t, linked.TaskID)
		assert.Equal(t, task.ID, *linked.TaskID)

		require.Len(t, notifier.direct, 1)
		assert.Equal(t, appointment.CustomerID, notifier.direct[0].UserID)
	})

	t.Run("only approved appointments qualify", func(t *testing.T) {
		for _, status := range []AppointmentStatus{AppointmentPending, AppointmentRejected, AppointmentCancelled} {
			controller, appointmentRepo, _, _ := newTestController()
			appointment := approvedAppointment()
			appointment.Status = status
			appointmentRepo.put(appointment)

			_, err := controller.CreateTaskFromAppointment(context.Background(), managerUser(), appointment.ID)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		}
	})

	t.Run("second promotion conflicts", func(t *testing.T) {
		controller, appointmentRepo, taskRepo, _ := newTestController()
		appointment := appointmentRepo.put(approvedAppointment())

		_, err := controller.CreateTaskFromAppointment(context.Background(), managerUser(), appointment.ID)
		require.NoError(t, err)

		_, err = controller.CreateTaskFromAppointment(context.Background(), managerUser(), appointment.ID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Len(t, taskRepo.tasks, 1, "losing attempt does not grow the pool")
	})

	t.Run("losing the link race surfaces as conflict", func(t *testing.T) {
		controller, appointmentRepo, taskRepo, _ := newTestController()
		appointment := appointmentRepo.put(approvedAppointment())

		// Another promotion linked the row between our read and our link;
		// the guarded update matches nothing.
		appointmentRepo.forceLinkMiss = true

		_, err := controller.CreateTaskFromAppointment(context.Background(), managerUser(), appointment.ID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Len(t, taskRepo.tasks, 1, "the orphan task row is left for reconciliation")
	})

	t.Run("unknown appointment", func(t *testing.T) {
		controller, _, _, _ := newTestController()

		_, err := controller.CreateTaskFromAppointment(context.Background(), managerUser(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
