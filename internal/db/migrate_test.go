package db

import (
	"testing"

	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestConn(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	return conn
}

func TestMigrateCreatesTables(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "roles", "permissions", "role_permissions", "hardware_credentials", "sessions", "auth_events"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigrateBuildsJoinTableFromExplicitModel(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	// The grant timestamp only exists when the join table is generated from
	// RolePermission rather than gorm's default two-column join schema.
	if !conn.Migrator().HasColumn(&models.RolePermission{}, "created_at") {
		t.Fatal("expected role_permissions to carry the grant timestamp column")
	}

	var grant models.RolePermission
	if errFind := conn.First(&grant).Error; errFind != nil {
		t.Fatalf("load seeded grant: %v", errFind)
	}
	if grant.CreatedAt.IsZero() {
		t.Fatal("expected the seeded grant to record its creation time")
	}
}

func TestMigrateSeedsSystemRoles(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, name := range []string{models.RoleAdmin, models.RoleModerator, models.RoleUser} {
		var role models.Role
		if errFind := conn.Where("name = ?", name).First(&role).Error; errFind != nil {
			t.Fatalf("missing seeded role %s: %v", name, errFind)
		}
		if !role.SystemRole {
			t.Fatalf("expected role %s to be marked as a system role", name)
		}
	}
}

func TestMigrateSeedsAdminGrants(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var admin models.Role
	if errFind := conn.Where("name = ?", models.RoleAdmin).First(&admin).Error; errFind != nil {
		t.Fatalf("load admin role: %v", errFind)
	}

	for _, name := range []string{"users.lock", "users.unlock", "users.list", "content.moderate"} {
		var count int64
		errCount := conn.Model(&models.RolePermission{}).
			Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
			Where("role_permissions.role_id = ? AND permissions.name = ?", admin.ID, name).
			Count(&count).Error
		if errCount != nil {
			t.Fatalf("count grant %s: %v", name, errCount)
		}
		if count != 1 {
			t.Fatalf("expected admin grant for %s, got %d rows", name, count)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("first migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}

	var roleCount int64
	if errCount := conn.Model(&models.Role{}).Count(&roleCount).Error; errCount != nil {
		t.Fatalf("count roles: %v", errCount)
	}
	if roleCount != 3 {
		t.Fatalf("expected 3 seeded roles after re-migrate, got %d", roleCount)
	}

	var grantCount int64
	if errCount := conn.Model(&models.RolePermission{}).Count(&grantCount).Error; errCount != nil {
		t.Fatalf("count grants: %v", errCount)
	}
	if grantCount != 5 {
		t.Fatalf("expected 5 seeded grants after re-migrate, got %d", grantCount)
	}
}

func TestMigrateModeratorCannotLockUsers(t *testing.T) {
	conn := openTestConn(t)

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var moderator models.Role
	if errFind := conn.Where("name = ?", models.RoleModerator).First(&moderator).Error; errFind != nil {
		t.Fatalf("load moderator role: %v", errFind)
	}

	var count int64
	errCount := conn.Model(&models.RolePermission{}).
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role_id = ? AND permissions.name = ?", moderator.ID, "users.lock").
		Count(&count).Error
	if errCount != nil {
		t.Fatalf("count grant: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no users.lock grant for moderator, got %d rows", count)
	}
}
