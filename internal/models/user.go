package models

import (
	"strings"
	"time"
)

// Contact methods selecting which identifier drives authentication.
const (
	// ContactMethodEmail authenticates through the email address.
	ContactMethodEmail = "email"
	// ContactMethodPhone authenticates through the phone number.
	ContactMethodPhone = "phone"
)

// User represents an authenticatable account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;uniqueIndex"` // Unique display handle.
	Bio      string `gorm:"type:text"`             // Public profile text.

	Email *string `gorm:"type:text;uniqueIndex"` // Email address when present.
	Phone *string `gorm:"type:text;uniqueIndex"` // Phone number when present.

	ContactMethod string `gorm:"type:text;not null;default:email"` // Which identifier drives login.

	Password string `gorm:"type:text"` // Hashed password; empty for code-only phone accounts.

	OneTimeCode          string     `gorm:"type:text"` // Outstanding phone login code.
	OneTimeCodeExpiresAt *time.Time // Expiry of the outstanding code.

	EmailVerifiedAt *time.Time // Email verification timestamp; nil means unverified.
	PhoneVerifiedAt *time.Time // Phone verification timestamp; nil means unverified.

	LockedAt            *time.Time // Lock timestamp; nil means unlocked.
	LockedByAdmin       bool       `gorm:"not null;default:false"` // Distinguishes an administrative lock.
	FailedLoginAttempts int        `gorm:"not null;default:0"`     // Consecutive failed login attempts.
	LastFailedLoginAt   *time.Time // Timestamp of the most recent failure, drives counter decay.
	AutoUnlockToken     *string    `gorm:"type:text;index"` // Self-service unlock token while auto-locked.

	RefreshToken          *string    `gorm:"type:text"` // Current outstanding refresh token.
	RefreshTokenExpiresAt *time.Time // Expiry of the outstanding refresh token.

	RoleID *uint64 `gorm:"index"`             // Assigned role ID.
	Role   *Role   `gorm:"foreignKey:RoleID"` // Assigned role.

	Credentials []HardwareCredential `gorm:"foreignKey:UserID"` // Enrolled hardware credentials.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Locked reports whether the account is currently locked.
func (u *User) Locked() bool {
	return u.LockedAt != nil
}

// AutoLocked reports whether the account is locked by the failure threshold
// rather than by an administrator.
func (u *User) AutoLocked() bool {
	return u.LockedAt != nil && !u.LockedByAdmin
}

// EmailVerified reports whether the email channel is verified.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// PhoneVerified reports whether the phone channel is verified.
func (u *User) PhoneVerified() bool {
	return u.PhoneVerifiedAt != nil
}

// HasPassword reports whether a password was ever set.
func (u *User) HasPassword() bool {
	return strings.TrimSpace(u.Password) != ""
}

// TwoFactorEnabled is derived from the enrolled credential set and is never
// stored directly.
func (u *User) TwoFactorEnabled() bool {
	return len(u.Credentials) > 0
}

// ContactIdentifier returns the identifier for the active contact method.
func (u *User) ContactIdentifier() string {
	switch u.ContactMethod {
	case ContactMethodPhone:
		if u.Phone != nil {
			return *u.Phone
		}
	default:
		if u.Email != nil {
			return *u.Email
		}
	}
	return ""
}
