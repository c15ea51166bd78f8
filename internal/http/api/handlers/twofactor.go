package handlers

import (
	"net/http"
	"strconv"

	"github.com/antarr/jordan-sub000/internal/authn"
	"github.com/antarr/jordan-sub000/internal/twofactor"
	"github.com/gin-gonic/gin"
)

// TwoFactorHandler handles hardware-credential ceremonies.
type TwoFactorHandler struct {
	svc  *twofactor.Service
	orch *authn.Orchestrator
}

// NewTwoFactorHandler constructs a TwoFactorHandler.
func NewTwoFactorHandler(svc *twofactor.Service, orch *authn.Orchestrator) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc, orch: orch}
}

// Status returns whether the caller has a second factor enrolled.
func (h *TwoFactorHandler) Status(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	enabled, errEnabled := h.svc.Enabled(c.Request.Context(), user.ID)
	if errEnabled != nil {
		respondError(c, errEnabled)
		return
	}
	c.JSON(http.StatusOK, gin.H{"two_factor_enabled": enabled})
}

// BeginEnrollment starts a credential enrollment ceremony for the caller.
func (h *TwoFactorHandler) BeginEnrollment(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	creation, errBegin := h.svc.BeginEnrollment(c.Request.Context(), user.ID)
	if errBegin != nil {
		respondError(c, errBegin)
		return
	}
	c.JSON(http.StatusOK, creation)
}

// FinishEnrollment verifies the attestation and stores the new credential.
// The nickname travels in a query parameter so the body stays the raw
// WebAuthn attestation response.
func (h *TwoFactorHandler) FinishEnrollment(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	credential, errFinish := h.svc.FinishEnrollment(c.Request.Context(), user.ID, c.Query("nickname"), c.Request)
	if errFinish != nil {
		respondError(c, errFinish)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       credential.ID,
		"nickname": credential.Nickname,
	})
}

// ListCredentials returns the caller's enrolled credentials.
func (h *TwoFactorHandler) ListCredentials(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	creds, errList := h.svc.ListCredentials(c.Request.Context(), user.ID)
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		out = append(out, gin.H{
			"id":           cred.ID,
			"nickname":     cred.Nickname,
			"sign_count":   cred.SignCount,
			"last_used_at": cred.LastUsedAt,
			"created_at":   cred.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// DeleteCredential removes one enrolled credential.
func (h *TwoFactorHandler) DeleteCredential(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential id"})
		return
	}
	if errDelete := h.svc.DeleteCredential(c.Request.Context(), user.ID, id); errDelete != nil {
		respondError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// loginBeginRequest defines the request body for the second-factor login round trip.
type loginBeginRequest struct {
	PendingToken string `json:"pending_token"`
}

// BeginLogin starts the authentication ceremony for a parked login.
func (h *TwoFactorHandler) BeginLogin(c *gin.Context) {
	var body loginBeginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID, ok := h.orch.Pending().Peek(body.PendingToken)
	if !ok {
		respondError(c, authn.ErrPendingLoginExpired)
		return
	}

	assertion, errBegin := h.svc.BeginLogin(c.Request.Context(), userID)
	if errBegin != nil {
		respondError(c, errBegin)
		return
	}
	c.JSON(http.StatusOK, assertion)
}

// FinishLogin verifies the assertion and grants the parked session or
// tokens. The pending token travels in a query parameter so the body stays
// the raw WebAuthn assertion response.
func (h *TwoFactorHandler) FinishLogin(c *gin.Context) {
	pendingToken := c.Query("pending_token")
	userID, ok := h.orch.Pending().Peek(pendingToken)
	if !ok {
		respondError(c, authn.ErrPendingLoginExpired)
		return
	}

	if errVerify := h.svc.FinishLogin(c.Request.Context(), userID, c.Request); errVerify != nil {
		respondError(c, errVerify)
		return
	}

	session, tokens, errComplete := h.orch.CompletePending(c.Request.Context(), pendingToken)
	if errComplete != nil {
		respondError(c, errComplete)
		return
	}

	if tokens != nil {
		response := gin.H{
			"access_token": tokens.AccessToken,
			"expires_in":   tokens.ExpiresIn,
			"user":         userSummary(tokens.User),
		}
		if tokens.RefreshToken != "" {
			response["refresh_token"] = tokens.RefreshToken
		}
		c.JSON(http.StatusOK, response)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_token": session.Session.Token,
		"expires_at":    session.Session.ExpiresAt,
		"user":          userSummary(session.User),
	})
}
