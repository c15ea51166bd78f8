package models

import "time"

// HardwareCredential stores one enrolled WebAuthn authenticator for a user.
// A user's second factor is considered enabled while at least one row exists.
type HardwareCredential struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index;uniqueIndex:idx_credential_nickname"` // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`                                  // Owning user.

	CredentialID []byte `gorm:"type:bytea;not null;uniqueIndex"` // Opaque authenticator credential ID.
	PublicKey    []byte `gorm:"type:bytea;not null"`             // Public key verification material.

	SignCount uint32 `gorm:"not null;default:0"` // Monotonic usage counter, replay-detection input.

	Nickname string `gorm:"type:text;not null;uniqueIndex:idx_credential_nickname"` // Label, unique per user.

	BackupEligible bool `gorm:"not null;default:false"` // WebAuthn BE flag.
	BackupState    bool `gorm:"not null;default:false"` // WebAuthn BS flag.

	LastUsedAt *time.Time // Last successful assertion time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
