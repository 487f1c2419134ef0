package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleStaff    UserRole = "staff"
	RoleManager  UserRole = "manager"
)

type User struct {
	BaseUUIDModel
	OrgID       uuid.UUID  `gorm:"type:uuid;index"         json:"orgId"`
	FirstName   string     `gorm:"type:text"               json:"firstName"`
	LastName    string     `gorm:"type:text"               json:"lastName"`
	FullName    string     `gorm:"type:text"               json:"fullName"`
	Email       *string    `gorm:"type:text;uniqueIndex"   json:"email"`
	Phone       string     `gorm:"type:text"               json:"phone"`
	Role        UserRole   `gorm:"type:text;default:customer;index" json:"role"`
	IsActive    bool       `gorm:"type:bool;default:true"  json:"isActive"`
	LastLoginAt *time.Time `gorm:"type:timestamp"          json:"lastLoginAt,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.FullName == "" {
		u.FullName = u.FirstName + " " + u.LastName
	}
	return nil
}

func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

func (u *User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleManager
}

// UserProfile represents public user profile information
type UserProfile struct {
	ID        string   `json:"id"`
	OrgID     string   `json:"orgId"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	FullName  string   `json:"fullName"`
	Email     *string  `json:"email,omitempty"`
	Role      UserRole `json:"role"`
	IsActive  bool     `json:"isActive"`
}

// ToProfile converts a User to a UserProfile (public information only)
func (u *User) ToProfile() UserProfile {
	return UserProfile{
		ID:        u.ID.String(),
		OrgID:     u.OrgID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
	}
}
