package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuthEvent records one security-relevant event for audit purposes.
type AuthEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Event string `gorm:"type:text;not null;index"` // Event kind, e.g. "login_failed".

	UserID *uint64 `gorm:"index"`             // Affected user when one resolved.
	User   *User   `gorm:"foreignKey:UserID"` // Affected user.

	Success bool `gorm:"not null;default:false"` // Outcome of the event.

	Detail datatypes.JSON `gorm:"type:jsonb"` // Event-specific fields in JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Event timestamp.
}
