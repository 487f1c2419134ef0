package app

import (
	"context"

	"pitstop/config"
	"pitstop/internal/controllers"
	"pitstop/internal/database"
	"pitstop/internal/events"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/jobs"
	"pitstop/internal/logger"
	"pitstop/internal/push"
	"pitstop/internal/repositories"
	"pitstop/internal/services"
	"pitstop/internal/websockets"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	EventBus   *events.EventBus
	Config     config.Config

	Services   services.Service
	Repos      repositories.Repository
	Controller controllers.Controllers
	Push       push.DispatcherInterface
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events, config)

	service, err := services.New(db, config)
	if err != nil {
		return &App{}, log.Err("failed to initialize services", err)
	}

	repos := repositories.New(db)

	controller := controllers.New(repos, db, service, eventBus, config)
	if err := controller.Notification.Start(); err != nil {
		return &App{}, log.Err("failed to start notification feed maintainer", err)
	}

	dispatcher := push.NewDispatcher(
		repos,
		db,
		eventBus,
		push.NewWebPushTransport(config),
		service.Retry,
		config,
	)
	if err := dispatcher.Start(); err != nil {
		return &App{}, log.Err("failed to start push dispatcher", err)
	}

	websocket, err := websockets.New(db, eventBus, service.Token, config)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(db, eventBus, config, repos)

	if config.SchedulerEnabled {
		if err := jobs.RegisterAllJobs(service.Scheduler, controller.Sweep, dispatcher); err != nil {
			return &App{}, log.Err("failed to register scheduled jobs", err)
		}
		if err := service.Scheduler.Start(context.Background()); err != nil {
			return &App{}, log.Err("failed to start scheduler", err)
		}
		log.Info("Scheduler started", "jobs", service.Scheduler.GetJobCount())
	}

	app := &App{
		Database:   db,
		Middleware: middleware,
		Websocket:  websocket,
		EventBus:   eventBus,
		Config:     config,
		Services:   service,
		Repos:      repos,
		Controller: controller,
		Push:       dispatcher,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.EventBus,
		a.Services.Transaction,
		a.Services.Scheduler,
		a.Services.Retry,
		a.Services.Token,
		a.Controller.Task,
		a.Controller.Proposal,
		a.Controller.Appointment,
		a.Controller.Notification,
		a.Controller.PushSubscription,
		a.Controller.Sweep,
		a.Push,
		a.Repos.User,
		a.Repos.Task,
		a.Repos.Appointment,
		a.Repos.Proposal,
		a.Repos.Notification,
		a.Repos.PushSubscription,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
