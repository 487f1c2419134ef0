package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskWaitingForApproval TaskStatus = "WAITING_FOR_APPROVAL"
	TaskWaiting            TaskStatus = "WAITING"
	TaskInProgress         TaskStatus = "IN_PROGRESS"
	TaskCompleted          TaskStatus = "COMPLETED"
	TaskCancelled          TaskStatus = "CANCELLED"
)

// taskTransitions is the full lifecycle table. Claim and release go through
// their own guarded operations but still obey these edges.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskWaitingForApproval: {TaskWaiting, TaskCancelled},
	TaskWaiting:            {TaskInProgress, TaskCancelled},
	TaskInProgress:         {TaskWaiting, TaskCompleted, TaskCancelled},
	TaskCompleted:          {},
	TaskCancelled:          {},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s TaskStatus) IsTerminal() bool {
	return len(taskTransitions[s]) == 0
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// TaskSource discriminates how a task entered the system.
type TaskSource string

const (
	SourceManual      TaskSource = "manual"
	SourceCheckIn     TaskSource = "checkin"
	SourceAppointment TaskSource = "appointment"
)

// TaskMetadata is a tagged variant keyed by Source. Only the fields of the
// matching variant are populated; accessors below pattern-match on Source.
type TaskMetadata struct {
	Source TaskSource `json:"source"`

	// checkin variant
	CheckInNotes  string `json:"checkInNotes,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	// appointment variant
	AppointmentID   string `json:"appointmentId,omitempty"`
	AppointmentDate string `json:"appointmentDate,omitempty"`
	AppointmentTime string `json:"appointmentTime,omitempty"`
	ServiceType     string `json:"serviceType,omitempty"`
	PlateNumber     string `json:"plateNumber,omitempty"`
	VehicleModel    string `json:"vehicleModel,omitempty"`
}

// CheckInDetails returns the check-in variant fields, or false when the
// task did not come from a customer check-in.
func (m TaskMetadata) CheckInDetails() (notes, phone string, ok bool) {
	if m.Source != SourceCheckIn {
		return "", "", false
	}
	return m.CheckInNotes, m.CustomerPhone, true
}

// AppointmentDetails returns the appointment variant fields, or false when
// the task was not promoted from an appointment.
func (m TaskMetadata) AppointmentDetails() (apptID, date, timeSlot string, ok bool) {
	if m.Source != SourceAppointment {
		return "", "", "", false
	}
	return m.AppointmentID, m.AppointmentDate, m.AppointmentTime, true
}

// NewTaskMetadata wraps a metadata variant for storage as a JSON column.
func NewTaskMetadata(m TaskMetadata) datatypes.JSONType[TaskMetadata] {
	return datatypes.NewJSONType(m)
}

type Task struct {
	BaseUUIDModel
	OrgID        uuid.UUID                             `gorm:"type:uuid;index;not null"      json:"orgId"`
	Title        string                                `gorm:"type:text;not null"            json:"title"`
	Description  string                                `gorm:"type:text"                     json:"description"`
	Status       TaskStatus                            `gorm:"type:text;default:WAITING;index" json:"status"`
	Priority     TaskPriority                          `gorm:"type:text;default:normal"      json:"priority"`
	VehicleID    *uuid.UUID                            `gorm:"type:uuid;index"               json:"vehicleId,omitempty"`
	Price        decimal.Decimal                       `gorm:"type:numeric(12,2)"            json:"price"`
	AllottedTime int                                   `gorm:"type:int"                      json:"allottedTime"`
	StartedAt    *time.Time                            `gorm:"type:timestamp"                json:"startedAt,omitempty"`
	CompletedAt  *time.Time                            `gorm:"type:timestamp"                json:"completedAt,omitempty"`
	ReminderAt   *time.Time                            `gorm:"type:timestamp;index"          json:"reminderAt,omitempty"`
	Metadata     datatypes.JSONType[TaskMetadata]      `                                     json:"metadata"`
	CreatedBy    uuid.UUID                             `gorm:"type:uuid"                     json:"createdBy"`
	Assignments  []TaskAssignment                      `gorm:"foreignKey:TaskID"             json:"assignments"`
}

// TaskAssignment links a staff member to a task. A WAITING task has no rows;
// IN_PROGRESS has at least one.
type TaskAssignment struct {
	BaseUUIDModel
	TaskID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_task_staff" json:"taskId"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_task_staff" json:"userId"`
}

// AssignedTo returns the staff ids currently assigned to the task.
func (t *Task) AssignedTo() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Assignments))
	for _, a := range t.Assignments {
		ids = append(ids, a.UserID)
	}
	return ids
}

// IsAssignedTo reports whether userID holds an assignment on the task.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	for _, a := range t.Assignments {
		if a.UserID == userID {
			return true
		}
	}
	return false
}
