package handlers

import (
	"net/http"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/gin-gonic/gin"
)

// UnlockHandler handles self-service account unlock.
type UnlockHandler struct {
	policy   *lockout.Policy
	recorder *audit.Recorder
}

// NewUnlockHandler constructs an UnlockHandler.
func NewUnlockHandler(policy *lockout.Policy, recorder *audit.Recorder) *UnlockHandler {
	return &UnlockHandler{policy: policy, recorder: recorder}
}

// unlockRequest defines the request body for self-service unlock.
type unlockRequest struct {
	Token string `json:"token"`
}

// Unlock clears an auto-lock when the exact current unlock token is
// presented. Every failure mode produces the same response.
func (h *UnlockHandler) Unlock(c *gin.Context) {
	var body unlockRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errUnlock := h.policy.UnlockWithToken(c.Request.Context(), body.Token)
	if errUnlock != nil {
		respondError(c, errUnlock)
		return
	}

	h.recorder.Record(c.Request.Context(), audit.EventAccountUnlocked, &user.ID, true, nil)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
