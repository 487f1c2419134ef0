package controllers

import (
	"pitstop/config"
	appointmentController "pitstop/internal/controllers/appointment"
	notificationController "pitstop/internal/controllers/notification"
	proposalController "pitstop/internal/controllers/proposal"
	pushSubscriptionController "pitstop/internal/controllers/pushSubscription"
	sweepController "pitstop/internal/controllers/sweep"
	taskController "pitstop/internal/controllers/task"
	"pitstop/internal/database"
	"pitstop/internal/events"
	"pitstop/internal/repositories"
	"pitstop/internal/services"
)

type Controllers struct {
	Task             taskController.TaskControllerInterface
	Proposal         proposalController.ProposalControllerInterface
	Appointment      appointmentController.AppointmentControllerInterface
	Notification     notificationController.NotificationControllerInterface
	PushSubscription pushSubscriptionController.PushSubscriptionControllerInterface
	Sweep            sweepController.SweepControllerInterface
}

func New(
	repos repositories.Repository,
	db database.DB,
	service services.Service,
	eventBus *events.EventBus,
	config config.Config,
) Controllers {
	notification := notificationController.New(repos, db, eventBus, config)

	return Controllers{
		Task:             taskController.New(repos, db, service, notification, config),
		Proposal:         proposalController.New(repos, db, notification, config),
		Appointment:      appointmentController.New(repos, db, notification, config),
		Notification:     notification,
		PushSubscription: pushSubscriptionController.New(repos, db),
		Sweep:            sweepController.New(repos, db, notification, config),
	}
}
