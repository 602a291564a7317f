package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account that can sign in to the platform
type User struct {
	gorm.Model

	// Authentication fields
	Username     string `gorm:"uniqueIndex;not null;size:150" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Account status
	Role      string     `gorm:"not null;default:'user'" json:"role"` // user, admin
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
