package models

import "time"

// Permission names a single (resource, action) grant. Permissions are flat;
// there is no hierarchy or wildcard matching.
type Permission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null;uniqueIndex"`               // Convenience identifier, "resource.action".
	Resource string `gorm:"type:text;not null;uniqueIndex:idx_perm_pair"` // Protected resource.
	Action   string `gorm:"type:text;not null;uniqueIndex:idx_perm_pair"` // Action on the resource.

	Roles []Role `gorm:"many2many:role_permissions"` // Roles granted this permission.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// RolePermission is the explicit role/permission join row.
type RolePermission struct {
	RoleID       uint64 `gorm:"primaryKey"` // Granting role.
	PermissionID uint64 `gorm:"primaryKey"` // Granted permission.

	Role       Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`       // Owning role.
	Permission Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"` // Owning permission.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
