package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/rbac"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler handles administrative lock and unlock actions.
type AdminHandler struct {
	db       *gorm.DB
	policy   *lockout.Policy
	rbac     *rbac.Service
	recorder *audit.Recorder
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB, policy *lockout.Policy, rbacSvc *rbac.Service, recorder *audit.Recorder) *AdminHandler {
	return &AdminHandler{db: db, policy: policy, rbac: rbacSvc, recorder: recorder}
}

// targetUser resolves the :id route parameter to a user row.
func (h *AdminHandler) targetUser(c *gin.Context) (*models.User, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return nil, false
	}
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &user, true
}

// LockUser locks another user's account. Locking your own account and
// locking another administrator are rejected with distinct messages.
func (h *AdminHandler) LockUser(c *gin.Context) {
	actor, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	target, ok := h.targetUser(c)
	if !ok {
		return
	}

	if target.ID == actor.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot lock your own account"})
		return
	}
	targetIsAdmin, errAdmin := h.rbac.IsAdmin(c.Request.Context(), target)
	if errAdmin != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if targetIsAdmin {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot lock an administrator account"})
		return
	}

	if errLock := h.policy.Lock(c.Request.Context(), target, true); errLock != nil {
		respondError(c, errLock)
		return
	}
	h.recorder.Record(c.Request.Context(), audit.EventAdminLocked, &target.ID, true, map[string]any{"actor_id": actor.ID})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UnlockUser unlocks a user's account, clearing lock state and counters.
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	actor, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	target, ok := h.targetUser(c)
	if !ok {
		return
	}

	if errUnlock := h.policy.Unlock(c.Request.Context(), target); errUnlock != nil {
		respondError(c, errUnlock)
		return
	}
	h.recorder.Record(c.Request.Context(), audit.EventAdminUnlocked, &target.ID, true, map[string]any{"actor_id": actor.ID})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
