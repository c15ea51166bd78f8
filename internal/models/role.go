package models

import "time"

// Seeded system role names.
const (
	// RoleAdmin grants administrative permissions.
	RoleAdmin = "admin"
	// RoleModerator grants moderation permissions.
	RoleModerator = "moderator"
	// RoleUser is the default role assigned to new accounts.
	RoleUser = "user"
)

// Role groups permissions for assignment to users.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Unique role name.
	Description string `gorm:"type:text"`                      // Human-readable description.

	SystemRole bool `gorm:"not null;default:false"` // Seeded roles that cannot be deleted.

	Permissions []Permission `gorm:"many2many:role_permissions"` // Granted permissions.
	Users       []User       `gorm:"foreignKey:RoleID"`          // Users holding this role.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
