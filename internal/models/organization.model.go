package models

type Organization struct {
	BaseUUIDModel
	Name     string `gorm:"type:text;not null" json:"name"`
	Address  string `gorm:"type:text"          json:"address"`
	Phone    string `gorm:"type:text"          json:"phone"`
	IsActive bool   `gorm:"type:bool;default:true" json:"isActive"`
}
