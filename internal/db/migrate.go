package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antarr/jordan-sub000/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds system roles and permissions.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errJoin := conn.SetupJoinTable(&models.Role{}, "Permissions", &models.RolePermission{}); errJoin != nil {
		return fmt.Errorf("db: join table: %w", errJoin)
	}
	// Both sides of the many-to-many must point at the explicit join model,
	// or AutoMigrate builds role_permissions from the default join schema.
	if errJoin := conn.SetupJoinTable(&models.Permission{}, "Roles", &models.RolePermission{}); errJoin != nil {
		return fmt.Errorf("db: join table: %w", errJoin)
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.HardwareCredential{},
		&models.Session{},
		&models.AuthEvent{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return seed(conn)
}

// seedPermission describes one seeded permission grant.
type seedPermission struct {
	resource string
	action   string
	roles    []string
}

// seededPermissions is the baseline permission set granted to system roles.
var seededPermissions = []seedPermission{
	{resource: "users", action: "lock", roles: []string{models.RoleAdmin}},
	{resource: "users", action: "unlock", roles: []string{models.RoleAdmin}},
	{resource: "users", action: "list", roles: []string{models.RoleAdmin}},
	{resource: "content", action: "moderate", roles: []string{models.RoleAdmin, models.RoleModerator}},
}

// seed creates the system roles and their permission grants when missing.
func seed(conn *gorm.DB) error {
	roleIDs := map[string]uint64{}
	for _, item := range []struct {
		name        string
		description string
	}{
		{name: models.RoleAdmin, description: "Full administrative access"},
		{name: models.RoleModerator, description: "Content moderation access"},
		{name: models.RoleUser, description: "Default role for new accounts"},
	} {
		var role models.Role
		errFind := conn.Where("name = ?", item.name).First(&role).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			role = models.Role{Name: item.name, Description: item.description, SystemRole: true}
			if errCreate := conn.Create(&role).Error; errCreate != nil {
				return fmt.Errorf("db: seed role %s: %w", item.name, errCreate)
			}
		} else if errFind != nil {
			return fmt.Errorf("db: seed role %s: %w", item.name, errFind)
		}
		roleIDs[item.name] = role.ID
	}

	for _, item := range seededPermissions {
		name := strings.Join([]string{item.resource, item.action}, ".")
		var permission models.Permission
		errFind := conn.Where("name = ?", name).First(&permission).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			permission = models.Permission{Name: name, Resource: item.resource, Action: item.action}
			if errCreate := conn.Create(&permission).Error; errCreate != nil {
				return fmt.Errorf("db: seed permission %s: %w", name, errCreate)
			}
		} else if errFind != nil {
			return fmt.Errorf("db: seed permission %s: %w", name, errFind)
		}

		for _, roleName := range item.roles {
			roleID, ok := roleIDs[roleName]
			if !ok {
				continue
			}
			var count int64
			if errCount := conn.Model(&models.RolePermission{}).
				Where("role_id = ? AND permission_id = ?", roleID, permission.ID).
				Count(&count).Error; errCount != nil {
				return fmt.Errorf("db: seed grant %s->%s: %w", roleName, name, errCount)
			}
			if count > 0 {
				continue
			}
			grant := models.RolePermission{RoleID: roleID, PermissionID: permission.ID}
			if errCreate := conn.Create(&grant).Error; errCreate != nil {
				return fmt.Errorf("db: seed grant %s->%s: %w", roleName, name, errCreate)
			}
		}
	}

	return nil
}
