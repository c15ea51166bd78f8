package rbac

import (
	"context"
	"testing"

	"github.com/antarr/jordan-sub000/internal/db"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewService(conn), conn
}

func createUserWithRole(t *testing.T, conn *gorm.DB, username, roleName string) *models.User {
	t.Helper()
	user := models.User{Username: username, ContactMethod: models.ContactMethodEmail}
	if roleName != "" {
		var role models.Role
		if errFind := conn.Where("name = ?", roleName).First(&role).Error; errFind != nil {
			t.Fatalf("load role %s: %v", roleName, errFind)
		}
		user.RoleID = &role.ID
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func TestCanGrantsSeededAdminPermissions(t *testing.T) {
	svc, conn := newTestService(t)
	admin := createUserWithRole(t, conn, "root", models.RoleAdmin)
	ctx := context.Background()

	for _, name := range []string{"users.lock", "users.unlock", "users.list", "content.moderate"} {
		allowed, errCheck := svc.Can(ctx, admin, name)
		if errCheck != nil {
			t.Fatalf("check %s: %v", name, errCheck)
		}
		if !allowed {
			t.Fatalf("expected admin to hold %s", name)
		}
	}
}

func TestCanDeniesUngrantedPermission(t *testing.T) {
	svc, conn := newTestService(t)
	moderator := createUserWithRole(t, conn, "mod", models.RoleModerator)
	ctx := context.Background()

	allowed, errCheck := svc.Can(ctx, moderator, "users.lock")
	if errCheck != nil {
		t.Fatalf("check users.lock: %v", errCheck)
	}
	if allowed {
		t.Fatal("expected moderator to be denied users.lock")
	}

	allowed, errCheck = svc.Can(ctx, moderator, "content.moderate")
	if errCheck != nil {
		t.Fatalf("check content.moderate: %v", errCheck)
	}
	if !allowed {
		t.Fatal("expected moderator to hold content.moderate")
	}
}

func TestCanDeniesUnknownPermission(t *testing.T) {
	svc, conn := newTestService(t)
	admin := createUserWithRole(t, conn, "root", models.RoleAdmin)

	allowed, errCheck := svc.Can(context.Background(), admin, "no.such.permission")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if allowed {
		t.Fatal("expected an unknown permission to be denied")
	}
}

func TestCanAssignsDefaultRoleLazily(t *testing.T) {
	svc, conn := newTestService(t)
	user := createUserWithRole(t, conn, "newbie", "")
	ctx := context.Background()

	if user.RoleID != nil {
		t.Fatal("expected no role before the first authorization check")
	}

	allowed, errCheck := svc.Can(ctx, user, "users.lock")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if allowed {
		t.Fatal("expected the default role to be denied users.lock")
	}

	var reloaded models.User
	if errFind := conn.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if reloaded.RoleID == nil {
		t.Fatal("expected the authorization check to assign the default role")
	}

	var role models.Role
	if errFind := conn.First(&role, *reloaded.RoleID).Error; errFind != nil {
		t.Fatalf("load role: %v", errFind)
	}
	if role.Name != models.RoleUser {
		t.Fatalf("expected default role %q, got %q", models.RoleUser, role.Name)
	}
}

func TestGrantAndRevokeLeaveUnrelatedPermissionsUntouched(t *testing.T) {
	svc, conn := newTestService(t)
	moderator := createUserWithRole(t, conn, "mod", models.RoleModerator)
	ctx := context.Background()

	var role models.Role
	if errFind := conn.Where("name = ?", models.RoleModerator).First(&role).Error; errFind != nil {
		t.Fatalf("load moderator role: %v", errFind)
	}

	extra := models.Permission{Name: "content.flag", Resource: "content", Action: "flag"}
	if errCreate := conn.Create(&extra).Error; errCreate != nil {
		t.Fatalf("create permission: %v", errCreate)
	}
	grant := models.RolePermission{RoleID: role.ID, PermissionID: extra.ID}
	if errCreate := conn.Create(&grant).Error; errCreate != nil {
		t.Fatalf("create grant: %v", errCreate)
	}

	// The new grant does not disturb the existing one.
	for _, name := range []string{"content.moderate", "content.flag"} {
		allowed, errCheck := svc.Can(ctx, moderator, name)
		if errCheck != nil {
			t.Fatalf("check %s: %v", name, errCheck)
		}
		if !allowed {
			t.Fatalf("expected moderator to hold %s", name)
		}
	}

	// Revoking one permission leaves the other in place.
	if errDelete := conn.Where("role_id = ? AND permission_id = ?", role.ID, extra.ID).
		Delete(&models.RolePermission{}).Error; errDelete != nil {
		t.Fatalf("delete grant: %v", errDelete)
	}

	allowed, errCheck := svc.Can(ctx, moderator, "content.flag")
	if errCheck != nil {
		t.Fatalf("check content.flag: %v", errCheck)
	}
	if allowed {
		t.Fatal("expected the revoked permission to be denied")
	}
	allowed, errCheck = svc.Can(ctx, moderator, "content.moderate")
	if errCheck != nil {
		t.Fatalf("check content.moderate: %v", errCheck)
	}
	if !allowed {
		t.Fatal("expected the unrelated permission to survive the revocation")
	}
}

func TestCanAccessMatchesResourceAction(t *testing.T) {
	svc, conn := newTestService(t)
	admin := createUserWithRole(t, conn, "root", models.RoleAdmin)
	ctx := context.Background()

	allowed, errCheck := svc.CanAccess(ctx, admin, "users", "lock")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !allowed {
		t.Fatal("expected admin to access users/lock")
	}

	allowed, errCheck = svc.CanAccess(ctx, admin, "users", "delete")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if allowed {
		t.Fatal("expected users/delete to be denied")
	}
}

func TestIsAdminAndIsModerator(t *testing.T) {
	svc, conn := newTestService(t)
	admin := createUserWithRole(t, conn, "root", models.RoleAdmin)
	moderator := createUserWithRole(t, conn, "mod", models.RoleModerator)
	ctx := context.Background()

	if ok, errCheck := svc.IsAdmin(ctx, admin); errCheck != nil || !ok {
		t.Fatalf("expected admin check to pass, got %v %v", ok, errCheck)
	}
	if ok, errCheck := svc.IsAdmin(ctx, moderator); errCheck != nil || ok {
		t.Fatalf("expected moderator not to be admin, got %v %v", ok, errCheck)
	}
	if ok, errCheck := svc.IsModerator(ctx, moderator); errCheck != nil || !ok {
		t.Fatalf("expected moderator check to pass, got %v %v", ok, errCheck)
	}
}
