package jobs

import (
	"context"

	sweepController "pitstop/internal/controllers/sweep"
	"pitstop/internal/logger"
	"pitstop/internal/push"
	"pitstop/internal/services"
)

// DelayedTaskJob flags tasks that have been in progress past the delay
// threshold.
type DelayedTaskJob struct {
	sweep sweepController.SweepControllerInterface
	log   logger.Logger
}

func NewDelayedTaskJob(sweep sweepController.SweepControllerInterface) *DelayedTaskJob {
	return &DelayedTaskJob{sweep: sweep, log: logger.New("delayedTaskJob")}
}

func (j *DelayedTaskJob) Name() string                { return "delayed-task-check" }
func (j *DelayedTaskJob) Schedule() services.Schedule { return services.EveryTenMinutes }

func (j *DelayedTaskJob) Execute(ctx context.Context) error {
	summary, err := j.sweep.DelayedTaskCheck(ctx)
	if err != nil {
		return err
	}
	j.log.Info("sweep complete", "scanned", summary.Scanned, "sent", summary.NotificationsSent, "errors", summary.Errors)
	return nil
}

// ScheduledReminderJob promotes approval-pending tasks whose reminder time
// has arrived.
type ScheduledReminderJob struct {
	sweep sweepController.SweepControllerInterface
	log   logger.Logger
}

func NewScheduledReminderJob(sweep sweepController.SweepControllerInterface) *ScheduledReminderJob {
	return &ScheduledReminderJob{sweep: sweep, log: logger.New("scheduledReminderJob")}
}

func (j *ScheduledReminderJob) Name() string                { return "scheduled-reminder-check" }
func (j *ScheduledReminderJob) Schedule() services.Schedule { return services.EveryTenMinutes }

func (j *ScheduledReminderJob) Execute(ctx context.Context) error {
	summary, err := j.sweep.ScheduledReminderCheck(ctx)
	if err != nil {
		return err
	}
	j.log.Info("sweep complete", "scanned", summary.Scanned, "sent", summary.NotificationsSent, "errors", summary.Errors)
	return nil
}

// AppointmentDigestJob sends each organization's managers a morning summary
// of pending appointment requests.
type AppointmentDigestJob struct {
	sweep sweepController.SweepControllerInterface
	log   logger.Logger
}

func NewAppointmentDigestJob(sweep sweepController.SweepControllerInterface) *AppointmentDigestJob {
	return &AppointmentDigestJob{sweep: sweep, log: logger.New("appointmentDigestJob")}
}

func (j *AppointmentDigestJob) Name() string                { return "daily-appointment-digest" }
func (j *AppointmentDigestJob) Schedule() services.Schedule { return services.DailyMorning }

func (j *AppointmentDigestJob) Execute(ctx context.Context) error {
	summary, err := j.sweep.DailyAppointmentDigest(ctx)
	if err != nil {
		return err
	}
	j.log.Info("digest complete", "organizations", summary.Scanned, "sent", summary.NotificationsSent, "errors", summary.Errors)
	return nil
}

// SurveyJob asks customers for feedback a couple of hours after completion.
type SurveyJob struct {
	sweep sweepController.SweepControllerInterface
	log   logger.Logger
}

func NewSurveyJob(sweep sweepController.SweepControllerInterface) *SurveyJob {
	return &SurveyJob{sweep: sweep, log: logger.New("surveyJob")}
}

func (j *SurveyJob) Name() string                { return "post-completion-survey" }
func (j *SurveyJob) Schedule() services.Schedule { return services.EveryTenMinutes }

func (j *SurveyJob) Execute(ctx context.Context) error {
	summary, err := j.sweep.PostCompletionSurveyCheck(ctx)
	if err != nil {
		return err
	}
	j.log.Info("sweep complete", "scanned", summary.Scanned, "sent", summary.NotificationsSent, "errors", summary.Errors)
	return nil
}

// StaleSubscriptionCleanupJob drains the queue of push endpoints the push
// service reported gone.
type StaleSubscriptionCleanupJob struct {
	dispatcher push.DispatcherInterface
	log        logger.Logger
}

func NewStaleSubscriptionCleanupJob(dispatcher push.DispatcherInterface) *StaleSubscriptionCleanupJob {
	return &StaleSubscriptionCleanupJob{dispatcher: dispatcher, log: logger.New("staleSubscriptionCleanupJob")}
}

func (j *StaleSubscriptionCleanupJob) Name() string                { return "stale-subscription-cleanup" }
func (j *StaleSubscriptionCleanupJob) Schedule() services.Schedule { return services.Hourly }

func (j *StaleSubscriptionCleanupJob) Execute(ctx context.Context) error {
	removed, err := j.dispatcher.CleanupStaleSubscriptions(ctx)
	if err != nil {
		return err
	}
	j.log.Info("cleanup complete", "removed", removed)
	return nil
}

// RegisterAllJobs wires every recurring job into the scheduler.
func RegisterAllJobs(
	scheduler *services.SchedulerService,
	sweep sweepController.SweepControllerInterface,
	dispatcher push.DispatcherInterface,
) error {
	jobs := []services.Job{
		NewDelayedTaskJob(sweep),
		NewScheduledReminderJob(sweep),
		NewAppointmentDigestJob(sweep),
		NewSurveyJob(sweep),
		NewStaleSubscriptionCleanupJob(dispatcher),
	}

	for _, job := range jobs {
		if err := scheduler.AddJob(job); err != nil {
			return err
		}
	}

	return nil
}
