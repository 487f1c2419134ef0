package models

import "github.com/google/uuid"

// PushSubscription is one device's web-push endpoint descriptor. A user may
// hold several (multi-device). Rows are created on client registration and
// deleted when the transport reports the endpoint gone; never updated.
type PushSubscription struct {
	BaseUUIDModel
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"      json:"userId"`
	Endpoint  string    `gorm:"type:text;uniqueIndex;not null" json:"endpoint"`
	P256dhKey string    `gorm:"type:text;not null"            json:"p256dhKey"`
	AuthKey   string    `gorm:"type:text;not null"            json:"authKey"`
}
