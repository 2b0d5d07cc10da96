package models

import (
	"time"

	"gorm.io/gorm"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Login
	Username string `gorm:"unique;not null;size:50" json:"username"`
	Email    string `gorm:"unique;not null;size:100" json:"email"`
	Password string `gorm:"not null" json:"-"`

	// Profile
	FullName  string  `gorm:"size:100" json:"full_name"`
	Phone     *string `gorm:"unique;size:20" json:"phone"`
	AvatarURL string  `json:"avatar_url"`

	// Role & status
	Role        string     `gorm:"default:'user';size:20" json:"role"` // user, admin
	IsVerified  bool       `gorm:"default:false" json:"is_verified"`
	IsSuspended bool       `gorm:"default:false" json:"is_suspended"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
