package repositories

import (
	"context"

	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, appointment *Appointment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Appointment, error)
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, status *AppointmentStatus) ([]*Appointment, error)
	ListByCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) ([]*Appointment, error)
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status AppointmentStatus) error

	// LinkTask sets task_id once; the conditional on task_id IS NULL keeps
	// promotion idempotent under retry.
	LinkTask(ctx context.Context, tx *gorm.DB, appointmentID, taskID uuid.UUID) (int64, error)
}

type appointmentRepository struct{}

func NewAppointmentRepository() AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(ctx context.Context, tx *gorm.DB, appointment *Appointment) error {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(appointment).Error; err != nil {
		return log.Err(
			"failed to create appointment",
			err,
			"orgID", appointment.OrgID,
			"customerID", appointment.CustomerID,
		)
	}

	return nil
}

func (r *appointmentRepository) GetByID(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
) (*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("GetByID")

	var appointment Appointment
	if err := tx.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get appointment", err, "appointmentID", id)
	}

	return &appointment, nil
}

func (r *appointmentRepository) ListByOrg(
	ctx context.Context,
	tx *gorm.DB,
	orgID uuid.UUID,
	status *AppointmentStatus,
) ([]*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("ListByOrg")

	query := tx.WithContext(ctx).Where("org_id = ?", orgID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var appointments []*Appointment
	if err := query.
		Order("appointment_date ASC, appointment_time ASC").
		Find(&appointments).Error; err != nil {
		return nil, log.Err("failed to list appointments", err, "orgID", orgID)
	}

	return appointments, nil
}

func (r *appointmentRepository) ListByCustomer(
	ctx context.Context,
	tx *gorm.DB,
	customerID uuid.UUID,
) ([]*Appointment, error) {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("ListByCustomer")

	var appointments []*Appointment
	if err := tx.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&appointments).Error; err != nil {
		return nil, log.Err("failed to list customer appointments", err, "customerID", customerID)
	}

	return appointments, nil
}

func (r *appointmentRepository) SetStatus(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	status AppointmentStatus,
) error {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("SetStatus")

	result := tx.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return log.Err("failed to set appointment status", result.Error, "appointmentID", id)
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *appointmentRepository) LinkTask(
	ctx context.Context,
	tx *gorm.DB,
	appointmentID, taskID uuid.UUID,
) (int64, error) {
	log := logger.NewWithContext(ctx, "appointmentRepository").Function("LinkTask")

	result := tx.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ? AND task_id IS NULL", appointmentID).
		Update("task_id", taskID)
	if result.Error != nil {
		return 0, log.Err(
			"failed to link task to appointment",
			result.Error,
			"appointmentID", appointmentID,
			"taskID", taskID,
		)
	}

	return result.RowsAffected, nil
}
