package models

import "time"

// Session is an opaque server-side session reference issued after a fully
// completed login.
type Session struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Token string `gorm:"type:text;not null;uniqueIndex"` // Opaque session token.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Owning user.

	ExpiresAt time.Time `gorm:"not null"` // Hard expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
