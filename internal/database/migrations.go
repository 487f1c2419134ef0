package database

import (
	"pitstop/internal/logger"
	"pitstop/internal/models"
)

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	modelsToMigrate := []interface{}{
		&models.Organization{},
		&models.User{},
		&models.Vehicle{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.Appointment{},
		&models.Proposal{},
		&models.Notification{},
		&models.PushSubscription{},
	}

	for _, model := range modelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("Failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes creates additional indexes that GORM doesn't create automatically
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")
	log.Info("Creating additional database indexes")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_tasks_org_status ON tasks(org_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_tasks_status_started ON tasks(status, started_at)",
		"CREATE INDEX IF NOT EXISTS idx_tasks_status_completed ON tasks(status, completed_at)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, is_read)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_ref_type ON notifications(reference_id, type)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_appointments_org_status ON appointments(org_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_task_status ON proposals(task_id, status)",
	}

	for _, index := range indexes {
		if err := db.SQL.Exec(index).Error; err != nil {
			return log.Err("Failed to create index", err, "sql", index)
		}
	}

	log.Info("Additional indexes created successfully")
	return nil
}
