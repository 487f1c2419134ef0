package appointmentController

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
)

type CreateAppointmentRequest struct {
	PlateNumber     string `json:"plateNumber"`
	VehicleModel    string `json:"vehicleModel"`
	ServiceType     string `json:"serviceType"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	Notes           string `json:"notes"`
}

type AppointmentControllerInterface interface {
	CreateAppointment(ctx context.Context, actor *User, req CreateAppointmentRequest) (*Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, orgID uuid.UUID, status *AppointmentStatus) ([]*Appointment, error)
	ListMyAppointments(ctx context.Context, customerID uuid.UUID) ([]*Appointment, error)

	ApproveAppointment(ctx context.Context, actor *User, id uuid.UUID) (*Appointment, error)
	RejectAppointment(ctx context.Context, actor *User, id uuid.UUID) (*Appointment, error)
	CancelAppointment(ctx context.Context, actor *User, id uuid.UUID) (*Appointment, error)

	// CreateTaskFromAppointment promotes an APPROVED appointment into a
	// pool task. The task insert and the appointment link are two writes
	// across two tables; the link update matches only unlinked rows, so a
	// retry after a partial failure is safe and a second promotion of the
	// same appointment is a no-op conflict.
	CreateTaskFromAppointment(ctx context.Context, actor *User, appointmentID uuid.UUID) (*Task, error)
}

type AppointmentController struct {
	appointmentRepo repositories.AppointmentRepository
	taskRepo        repositories.TaskRepository
	userRepo        repositories.UserRepository
	db              database.DB
	notification    notificationController.NotificationControllerInterface
	config          config.Config
}

func New(
	repos repositories.Repository,
	db database.DB,
	notification notificationController.NotificationControllerInterface,
	config config.Config,
) AppointmentControllerInterface {
	return &AppointmentController{
		appointmentRepo: repos.Appointment,
		taskRepo:        repos.Task,
		userRepo:        repos.User,
		db:              db,
		notification:    notification,
		config:          config,
	}
}

func (c *AppointmentController) CreateAppointment(
	ctx context.Context,
	actor *User,
	req CreateAppointmentRequest,
) (*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("CreateAppointment")

	if req.PlateNumber == "" || req.ServiceType == "" || req.AppointmentDate == "" || req.AppointmentTime == "" {
		return nil, log.ErrorWithType(
			apperrors.ErrValidation,
			"plate number, service type, date and time are required",
		)
	}

	appointment := &Appointment{
		OrgID:           actor.OrgID,
		CustomerID:      actor.ID,
		PlateNumber:     req.PlateNumber,
		VehicleModel:    req.VehicleModel,
		ServiceType:     req.ServiceType,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Notes:           req.Notes,
		Status:          AppointmentPending,
	}

	if err := c.appointmentRepo.Create(ctx, c.db.SQL, appointment); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to create appointment", "error", err)
	}

	c.notifyManagers(ctx, actor, appointment,
		fmt.Sprintf("%s ביקש תור ל-%s", actor.FullName, appointment.AppointmentDate), log)

	return appointment, nil
}

func (c *AppointmentController) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("GetAppointment")

	appointment, err := c.appointmentRepo.GetByID(ctx, c.db.SQL, id)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "appointment not found", "appointmentID", id)
	}

	return appointment, nil
}

func (c *AppointmentController) ListAppointments(
	ctx context.Context,
	orgID uuid.UUID,
	status *AppointmentStatus,
) ([]*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("ListAppointments")

	appointments, err := c.appointmentRepo.ListByOrg(ctx, c.db.SQL, orgID, status)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list appointments", "error", err)
	}

	return appointments, nil
}

func (c *AppointmentController) ListMyAppointments(
	ctx context.Context,
	customerID uuid.UUID,
) ([]*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("ListMyAppointments")

	appointments, err := c.appointmentRepo.ListByCustomer(ctx, c.db.SQL, customerID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list appointments", "error", err)
	}

	return appointments, nil
}

func (c *AppointmentController) ApproveAppointment(
	ctx context.Context,
	actor *User,
	id uuid.UUID,
) (*Appointment, error) {
	return c.setStatus(ctx, actor, id, AppointmentApproved, "התור שלך אושר")
}

func (c *AppointmentController) RejectAppointment(
	ctx context.Context,
	actor *User,
	id uuid.UUID,
) (*Appointment, error) {
	return c.setStatus(ctx, actor, id, AppointmentRejected, "התור שלך נדחה")
}

func (c *AppointmentController) CancelAppointment(
	ctx context.Context,
	actor *User,
	id uuid.UUID,
) (*Appointment, error) {
	return c.setStatus(ctx, actor, id, AppointmentCancelled, "התור בוטל")
}

func (c *AppointmentController) CreateTaskFromAppointment(
	ctx context.Context,
	actor *User,
	appointmentID uuid.UUID,
) (*Task, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("CreateTaskFromAppointment")

	appointment, err := c.appointmentRepo.GetByID(ctx, c.db.SQL, appointmentID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "appointment not found", "appointmentID", appointmentID)
	}

	if appointment.Status != AppointmentApproved {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"only approved appointments can be promoted",
			"appointmentID", appointmentID,
			"status", appointment.Status,
		)
	}
	if appointment.IsPromoted() {
		return nil, log.ErrorWithType(apperrors.ErrConflict, "appointment already promoted", "appointmentID", appointmentID)
	}

	task := &Task{
		OrgID: appointment.OrgID,
		Title: fmt.Sprintf("%s - %s %s",
			appointment.ServiceType, appointment.AppointmentDate, appointment.AppointmentTime),
		Description: appointment.Notes,
		Status:      TaskWaiting,
		Priority:    PriorityNormal,
		Metadata: NewTaskMetadata(TaskMetadata{
			Source:          SourceAppointment,
			AppointmentID:   appointment.ID.String(),
			AppointmentDate: appointment.AppointmentDate,
			AppointmentTime: appointment.AppointmentTime,
			ServiceType:     appointment.ServiceType,
			PlateNumber:     appointment.PlateNumber,
			VehicleModel:    appointment.VehicleModel,
		}),
		CreatedBy: actor.ID,
	}

	if err := c.taskRepo.Create(ctx, c.db.SQL, task); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to create task from appointment", "error", err)
	}

	rows, err := c.appointmentRepo.LinkTask(ctx, c.db.SQL, appointment.ID, task.ID)
	if err != nil {
		// The task row exists but the link is missing. Retrying the
		// promotion later is safe: the link update only matches unlinked
		// appointments.
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to link task to appointment",
			"appointmentID", appointment.ID, "taskID", task.ID, "error", err)
	}
	if rows == 0 {
		return nil, log.ErrorWithType(apperrors.ErrConflict, "appointment was promoted concurrently", "appointmentID", appointment.ID)
	}

	appointment.TaskID = &task.ID

	c.notifyCustomer(ctx, actor, appointment, "התור שלך נקלט לטיפול", log)

	return task, nil
}

func (c *AppointmentController) setStatus(
	ctx context.Context,
	actor *User,
	id uuid.UUID,
	status AppointmentStatus,
	customerTitle string,
) (*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentController").Function("setStatus")

	appointment, err := c.appointmentRepo.GetByID(ctx, c.db.SQL, id)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrNotFound, "appointment not found", "appointmentID", id)
	}

	if appointment.Status.IsTerminal() {
		return nil, log.ErrorWithType(
			apperrors.ErrInvalidTransition,
			"appointment already resolved",
			"appointmentID", id,
			"status", appointment.Status,
		)
	}

	if err := c.appointmentRepo.SetStatus(ctx, c.db.SQL, id, status); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to update appointment", "appointmentID", id, "error", err)
	}

	appointment.Status = status

	c.notifyCustomer(ctx, actor, appointment, customerTitle, log)

	return appointment, nil
}

func (c *AppointmentController) notifyCustomer(
	ctx context.Context,
	actor *User,
	appointment *Appointment,
	title string,
	log logger.Logger,
) {
	actorID := actor.ID
	referenceID := appointment.ID
	if _, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
		OrgID:       appointment.OrgID,
		UserID:      appointment.CustomerID,
		ActorID:     &actorID,
		Title:       title,
		Message:     fmt.Sprintf("%s, %s %s", appointment.ServiceType, appointment.AppointmentDate, appointment.AppointmentTime),
		Type:        NotificationAppointment,
		ReferenceID: &referenceID,
	}); err != nil {
		log.Warn("failed to notify customer", "appointmentID", appointment.ID, "error", err)
	}
}

func (c *AppointmentController) notifyManagers(
	ctx context.Context,
	actor *User,
	appointment *Appointment,
	title string,
	log logger.Logger,
) {
	managers, err := c.userRepo.ListManagers(ctx, c.db.SQL, appointment.OrgID)
	if err != nil {
		log.Warn("failed to list managers", "orgID", appointment.OrgID, "error", err)
		return
	}

	managerIDs := make([]uuid.UUID, 0, len(managers))
	for _, manager := range managers {
		managerIDs = append(managerIDs, manager.ID)
	}

	actorID := actor.ID
	referenceID := appointment.ID
	if _, err := c.notification.NotifyMultiple(ctx, notificationController.NotificationInput{
		OrgID:       appointment.OrgID,
		ActorID:     &actorID,
		Title:       title,
		Message:     fmt.Sprintf("%s, %s %s", appointment.ServiceType, appointment.AppointmentDate, appointment.AppointmentTime),
		Type:        NotificationAppointment,
		ReferenceID: &referenceID,
	}, managerIDs); err != nil {
		log.Warn("failed to notify managers", "appointmentID", appointment.ID, "error", err)
	}
}
