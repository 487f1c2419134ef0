package models

import "github.com/google/uuid"

type Vehicle struct {
	BaseUUIDModel
	OrgID       uuid.UUID `gorm:"type:uuid;index"              json:"orgId"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index"              json:"ownerId"`
	PlateNumber string    `gorm:"type:text;index;not null"     json:"plateNumber"`
	Make        string    `gorm:"type:text"                    json:"make"`
	Model       string    `gorm:"type:text"                    json:"model"`
	Year        int       `gorm:"type:int"                     json:"year"`
}
