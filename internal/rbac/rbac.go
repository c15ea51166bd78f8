// Package rbac resolves flat role/permission grants. There is no
// inheritance, negation, or wildcard matching; a check is true iff the
// user's role holds a matching permission row.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/antarr/jordan-sub000/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service answers permission checks against the role/permission tables.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Can reports whether the user's role grants the named permission.
func (s *Service) Can(ctx context.Context, user *models.User, permissionName string) (bool, error) {
	if user == nil || permissionName == "" {
		return false, nil
	}
	if errEnsure := s.ensureRole(ctx, user); errEnsure != nil {
		return false, errEnsure
	}
	if user.RoleID == nil {
		return false, nil
	}

	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.RolePermission{}).
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role_id = ? AND permissions.name = ?", *user.RoleID, permissionName).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("rbac: check %s: %w", permissionName, errCount)
	}
	return count > 0, nil
}

// CanAccess reports whether the user's role grants the (resource, action) pair.
func (s *Service) CanAccess(ctx context.Context, user *models.User, resource, action string) (bool, error) {
	if user == nil || resource == "" || action == "" {
		return false, nil
	}
	if errEnsure := s.ensureRole(ctx, user); errEnsure != nil {
		return false, errEnsure
	}
	if user.RoleID == nil {
		return false, nil
	}

	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.RolePermission{}).
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role_id = ? AND permissions.resource = ? AND permissions.action = ?", *user.RoleID, resource, action).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("rbac: check %s.%s: %w", resource, action, errCount)
	}
	return count > 0, nil
}

// IsAdmin reports whether the user holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, user *models.User) (bool, error) {
	return s.hasRole(ctx, user, models.RoleAdmin)
}

// IsModerator reports whether the user holds the moderator role.
func (s *Service) IsModerator(ctx context.Context, user *models.User) (bool, error) {
	return s.hasRole(ctx, user, models.RoleModerator)
}

// hasRole resolves the user's role name.
func (s *Service) hasRole(ctx context.Context, user *models.User, name string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if errEnsure := s.ensureRole(ctx, user); errEnsure != nil {
		return false, errEnsure
	}
	if user.RoleID == nil {
		return false, nil
	}
	var role models.Role
	errFind := s.db.WithContext(ctx).First(&role, *user.RoleID).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if errFind != nil {
		return false, fmt.Errorf("rbac: load role: %w", errFind)
	}
	return role.Name == name, nil
}

// ensureRole lazily assigns the seeded default role to users without one.
// Evaluating any authorization gate triggers the assignment.
func (s *Service) ensureRole(ctx context.Context, user *models.User) error {
	if user.RoleID != nil {
		return nil
	}

	var defaultRole models.Role
	errFind := s.db.WithContext(ctx).Where("name = ?", models.RoleUser).First(&defaultRole).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil
	}
	if errFind != nil {
		return fmt.Errorf("rbac: load default role: %w", errFind)
	}

	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role_id IS NULL", user.ID).
		Update("role_id", defaultRole.ID).Error; errUpdate != nil {
		return fmt.Errorf("rbac: assign default role: %w", errUpdate)
	}
	user.RoleID = &defaultRole.ID
	log.WithFields(log.Fields{"user_id": user.ID, "role": defaultRole.Name}).Debug("rbac: assigned default role")
	return nil
}
