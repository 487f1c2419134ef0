package sweepController

import (
	"context"
	"fmt"
	"time"

	"pitstop/config"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/database"
	"pitstop/internal/logger"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
)

const (
	// DelayThreshold is how long a task may stay IN_PROGRESS before the
	// delay alert fires.
	DelayThreshold = 3 * time.Hour

	// Survey window: tasks completed between 2 and 2.5 hours ago.
	surveyWindowStart = 150 * time.Minute
	surveyWindowEnd   = 2 * time.Hour

	// DelayAlertTitle is the customer-facing copy for a stalled task.
	DelayAlertTitle = "שים לב: טיפול מתעכב"
)

// SweepSummary reports what a single sweep run looked at and produced.
// Re-running a sweep is safe: automated alerts are deduplicated by
// (reference, type) at insert time, so repeats send nothing new.
type SweepSummary struct {
	Scanned           int `json:"scanned"`
	NotificationsSent int `json:"notificationsSent"`
	Errors            int `json:"errors"`
}

type SweepControllerInterface interface {
	// DelayedTaskCheck alerts the assigned staff of tasks in progress for
	// longer than DelayThreshold.
	DelayedTaskCheck(ctx context.Context) (SweepSummary, error)

	// ScheduledReminderCheck promotes approval-pending tasks whose reminder
	// time has passed into the pool and reminds a manager.
	ScheduledReminderCheck(ctx context.Context) (SweepSummary, error)

	// DailyAppointmentDigest summarizes each organization's pending
	// appointments to its managers. Per-organization failures are counted
	// and skipped so one bad tenant never blocks the rest.
	DailyAppointmentDigest(ctx context.Context) (SweepSummary, error)

	// PostCompletionSurveyCheck asks customers about recently completed work.
	PostCompletionSurveyCheck(ctx context.Context) (SweepSummary, error)
}

type SweepController struct {
	taskRepo        repositories.TaskRepository
	appointmentRepo repositories.AppointmentRepository
	orgRepo         repositories.OrganizationRepository
	userRepo        repositories.UserRepository
	vehicleRepo     repositories.VehicleRepository
	db              database.DB
	notification    notificationController.NotificationControllerInterface
	config          config.Config
}

func New(
	repos repositories.Repository,
	db database.DB,
	notification notificationController.NotificationControllerInterface,
	config config.Config,
) SweepControllerInterface {
	return &SweepController{
		taskRepo:        repos.Task,
		appointmentRepo: repos.Appointment,
		orgRepo:         repos.Organization,
		userRepo:        repos.User,
		vehicleRepo:     repos.Vehicle,
		db:              db,
		notification:    notification,
		config:          config,
	}
}

func (c *SweepController) DelayedTaskCheck(ctx context.Context) (SweepSummary, error) {
	log := logger.NewWithContext(ctx, "sweepController").Function("DelayedTaskCheck")

	var summary SweepSummary

	tasks, err := c.taskRepo.ListInProgressSince(ctx, c.db.SQL, time.Now().Add(-DelayThreshold))
	if err != nil {
		return summary, log.Err("failed to list delayed tasks", err)
	}
	summary.Scanned = len(tasks)

	for _, task := range tasks {
		assignees := task.AssignedTo()
		if len(assignees) == 0 {
			continue
		}

		referenceID := task.ID
		notification, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
			OrgID:       task.OrgID,
			UserID:      assignees[0],
			Title:       DelayAlertTitle,
			Message:     task.Title,
			Type:        NotificationTaskDelayed,
			ReferenceID: &referenceID,
			Urgent:      true,
		})
		if err != nil {
			summary.Errors++
			log.Warn("failed to send delay alert", "taskID", task.ID, "error", err)
			continue
		}
		if notification != nil {
			summary.NotificationsSent++
		}
	}

	log.Info("delayed task sweep finished", "scanned", summary.Scanned, "sent", summary.NotificationsSent)
	return summary, nil
}

func (c *SweepController) ScheduledReminderCheck(ctx context.Context) (SweepSummary, error) {
	log := logger.NewWithContext(ctx, "sweepController").Function("ScheduledReminderCheck")

	var summary SweepSummary

	tasks, err := c.taskRepo.ListDueReminders(ctx, c.db.SQL, time.Now())
	if err != nil {
		return summary, log.Err("failed to list due reminders", err)
	}
	summary.Scanned = len(tasks)

	for _, task := range tasks {
		rows, err := c.taskRepo.SetStatus(ctx, c.db.SQL, task.ID, TaskWaitingForApproval, map[string]any{
			"status":      TaskWaiting,
			"reminder_at": nil,
		})
		if err != nil {
			summary.Errors++
			log.Warn("failed to promote reminded task", "taskID", task.ID, "error", err)
			continue
		}
		if rows == 0 {
			// Something else already moved the task; nothing to remind about.
			continue
		}

		managerID, ok := c.firstManager(ctx, task.OrgID)
		if !ok {
			continue
		}

		referenceID := task.ID
		notification, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
			OrgID:       task.OrgID,
			UserID:      managerID,
			Title:       "תזכורת: טיפול מתוזמן נכנס למאגר",
			Message:     task.Title,
			Type:        NotificationTaskReminder,
			ReferenceID: &referenceID,
		})
		if err != nil {
			summary.Errors++
			log.Warn("failed to send reminder", "taskID", task.ID, "error", err)
			continue
		}
		if notification != nil {
			summary.NotificationsSent++
		}
	}

	log.Info("reminder sweep finished", "scanned", summary.Scanned, "sent", summary.NotificationsSent)
	return summary, nil
}

func (c *SweepController) DailyAppointmentDigest(ctx context.Context) (SweepSummary, error) {
	log := logger.NewWithContext(ctx, "sweepController").Function("DailyAppointmentDigest")

	var summary SweepSummary

	orgs, err := c.orgRepo.ListActive(ctx, c.db.SQL)
	if err != nil {
		return summary, log.Err("failed to list organizations", err)
	}
	summary.Scanned = len(orgs)

	pending := AppointmentPending
	for _, org := range orgs {
		appointments, err := c.appointmentRepo.ListByOrg(ctx, c.db.SQL, org.ID, &pending)
		if err != nil {
			summary.Errors++
			log.Warn("digest skipped for organization", "orgID", org.ID, "error", err)
			continue
		}
		if len(appointments) == 0 {
			continue
		}

		managers, err := c.userRepo.ListManagers(ctx, c.db.SQL, org.ID)
		if err != nil {
			summary.Errors++
			log.Warn("digest skipped for organization", "orgID", org.ID, "error", err)
			continue
		}

		managerIDs := make([]uuid.UUID, 0, len(managers))
		for _, manager := range managers {
			managerIDs = append(managerIDs, manager.ID)
		}

		referenceID := org.ID
		sent, err := c.notification.NotifyMultiple(ctx, notificationController.NotificationInput{
			OrgID:       org.ID,
			Title:       fmt.Sprintf("%d תורים ממתינים לאישור", len(appointments)),
			Message:     "סיכום יומי של בקשות תור פתוחות",
			Type:        NotificationDailyDigest,
			ReferenceID: &referenceID,
		}, managerIDs)
		if err != nil {
			summary.Errors++
			log.Warn("digest skipped for organization", "orgID", org.ID, "error", err)
			continue
		}
		summary.NotificationsSent += len(sent)
	}

	log.Info("appointment digest finished", "organizations", summary.Scanned, "sent", summary.NotificationsSent)
	return summary, nil
}

func (c *SweepController) PostCompletionSurveyCheck(ctx context.Context) (SweepSummary, error) {
	log := logger.NewWithContext(ctx, "sweepController").Function("PostCompletionSurveyCheck")

	var summary SweepSummary

	now := time.Now()
	tasks, err := c.taskRepo.ListCompletedBetween(ctx, c.db.SQL, now.Add(-surveyWindowStart), now.Add(-surveyWindowEnd))
	if err != nil {
		return summary, log.Err("failed to list completed tasks", err)
	}
	summary.Scanned = len(tasks)

	for _, task := range tasks {
		customerID, ok := c.customerForTask(ctx, task)
		if !ok {
			continue
		}

		referenceID := task.ID
		notification, err := c.notification.SendSystemNotification(ctx, notificationController.NotificationInput{
			OrgID:       task.OrgID,
			UserID:      customerID,
			Title:       "איך היה הטיפול? נשמח למשוב",
			Message:     task.Title,
			Type:        NotificationSurvey,
			ReferenceID: &referenceID,
		})
		if err != nil {
			summary.Errors++
			log.Warn("failed to send survey", "taskID", task.ID, "error", err)
			continue
		}
		if notification != nil {
			summary.NotificationsSent++
		}
	}

	log.Info("survey sweep finished", "scanned", summary.Scanned, "sent", summary.NotificationsSent)
	return summary, nil
}

func (c *SweepController) firstManager(ctx context.Context, orgID uuid.UUID) (uuid.UUID, bool) {
	managers, err := c.userRepo.ListManagers(ctx, c.db.SQL, orgID)
	if err != nil || len(managers) == 0 {
		return uuid.Nil, false
	}
	return managers[0].ID, true
}

func (c *SweepController) customerForTask(ctx context.Context, task *Task) (uuid.UUID, bool) {
	if task.VehicleID == nil {
		return uuid.Nil, false
	}
	vehicle, err := c.vehicleRepo.GetByID(ctx, c.db.SQL, *task.VehicleID)
	if err != nil {
		return uuid.Nil, false
	}
	return vehicle.OwnerID, true
}
