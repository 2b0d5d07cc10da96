package models

import "time"

// EmailVerification is a short-lived numeric code proving control of an
// email address. The issue flow keeps at most one outstanding row per email.
type EmailVerification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"index;not null;size:100" json:"email"`
	Code      string    `gorm:"size:6;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Attempts  int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingRegistration holds submitted account details until the email
// verification code is confirmed; only then is the User row created.
type PendingRegistration struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:100" json:"email"`
	Username  string    `gorm:"not null;size:50" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	FullName  string    `gorm:"size:100" json:"full_name"`
	Phone     *string   `gorm:"size:20" json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
