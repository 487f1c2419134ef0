package repositories

import (
	"pitstop/internal/database"
)

type Repository struct {
	User             UserRepository
	Organization     OrganizationRepository
	Vehicle          VehicleRepository
	Task             TaskRepository
	Appointment      AppointmentRepository
	Proposal         ProposalRepository
	Notification     NotificationRepository
	PushSubscription PushSubscriptionRepository
}

func New(db database.DB) Repository {
	return Repository{
		User:             NewUserRepository(db),
		Organization:     NewOrganizationRepository(),
		Vehicle:          NewVehicleRepository(),
		Task:             NewTaskRepository(),
		Appointment:      NewAppointmentRepository(),
		Proposal:         NewProposalRepository(),
		Notification:     NewNotificationRepository(),
		PushSubscription: NewPushSubscriptionRepository(),
	}
}
