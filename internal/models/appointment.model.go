package models

import "github.com/google/uuid"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "PENDING"
	AppointmentApproved  AppointmentStatus = "APPROVED"
	AppointmentRejected  AppointmentStatus = "REJECTED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// IsTerminal reports whether s is a final state; rejected and cancelled
// appointments never move again.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentRejected || s == AppointmentCancelled
}

// Appointment is a customer-submitted booking request. Vehicle fields are
// denormalized at submission time so the record stays readable even if the
// vehicle row changes later.
type Appointment struct {
	BaseUUIDModel
	OrgID           uuid.UUID         `gorm:"type:uuid;index;not null"       json:"orgId"`
	CustomerID      uuid.UUID         `gorm:"type:uuid;index;not null"       json:"customerId"`
	PlateNumber     string            `gorm:"type:text;not null"             json:"plateNumber"`
	VehicleModel    string            `gorm:"type:text"                      json:"vehicleModel"`
	ServiceType     string            `gorm:"type:text;not null"             json:"serviceType"`
	AppointmentDate string            `gorm:"type:text;not null"             json:"appointmentDate"`
	AppointmentTime string            `gorm:"type:text;not null"             json:"appointmentTime"`
	Notes           string            `gorm:"type:text"                      json:"notes"`
	Status          AppointmentStatus `gorm:"type:text;default:PENDING;index" json:"status"`

	// TaskID is set exactly once, when an APPROVED appointment is promoted.
	TaskID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"taskId,omitempty"`
}

// IsPromoted reports whether the appointment has already been linked to a task.
func (a *Appointment) IsPromoted() bool {
	return a.TaskID != nil
}
