package handlers

import (
	"net/http"
	"strings"

	"github.com/antarr/jordan-sub000/internal/authn"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles login, logout, token, and unlock endpoints.
type AuthHandler struct {
	orch *authn.Orchestrator
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(orch *authn.Orchestrator) *AuthHandler {
	return &AuthHandler{orch: orch}
}

// sessionLoginRequest defines the request body for session login.
type sessionLoginRequest struct {
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Code       string `json:"code"`
}

// Login authenticates through the session channel. Two-factor users get a
// pending token and must complete a hardware-credential round trip.
func (h *AuthHandler) Login(c *gin.Context) {
	var body sessionLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	channel := authn.Channel(strings.TrimSpace(body.Channel))
	if channel == "" {
		channel = authn.ChannelEmail
	}

	result, err := h.orch.LoginSession(c.Request.Context(), authn.LoginRequest{
		Channel:    channel,
		Identifier: body.Identifier,
		Credentials: authn.Credentials{
			Password:    body.Password,
			OneTimeCode: body.Code,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if result.PendingToken != "" {
		c.JSON(http.StatusOK, gin.H{
			"second_factor_required": true,
			"pending_token":          result.PendingToken,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_token": result.Session.Token,
		"expires_at":    result.Session.ExpiresAt,
		"user":          userSummary(result.User),
	})
}

// Logout ends the session named by the bearer token.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
		return
	}
	if errLogout := h.orch.LogoutSession(c.Request.Context(), token); errLogout != nil {
		respondError(c, errLogout)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Session returns the user behind a session bearer token.
func (h *AuthHandler) Session(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
		return
	}
	user, errResolve := h.orch.ResolveSession(c.Request.Context(), token)
	if errResolve != nil {
		respondError(c, errResolve)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userSummary(user)})
}

// apiLoginRequest defines the request body for token login.
type apiLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APILogin authenticates for the token channel and issues bearer tokens.
func (h *AuthHandler) APILogin(c *gin.Context) {
	var body apiLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, err := h.orch.LoginAPI(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.PendingToken != "" {
		c.JSON(http.StatusOK, gin.H{
			"second_factor_required": true,
			"pending_token":          result.PendingToken,
		})
		return
	}

	response := gin.H{
		"access_token": result.AccessToken,
		"expires_in":   result.ExpiresIn,
		"user":         userSummary(result.User),
	}
	if result.RefreshToken != "" {
		response["refresh_token"] = result.RefreshToken
	}
	c.JSON(http.StatusOK, response)
}

// Refresh mints a new access token from a refresh bearer token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	result, err := h.orch.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": result.AccessToken,
		"expires_in":   result.ExpiresIn,
	})
}

// APILogout clears the caller's persisted refresh token.
func (h *AuthHandler) APILogout(c *gin.Context) {
	user, ok := readUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if errLogout := h.orch.LogoutAPI(c.Request.Context(), user.ID); errLogout != nil {
		respondError(c, errLogout)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// codeRequest defines the request body for one-time-code minting.
type codeRequest struct {
	Phone string `json:"phone"`
}

// RequestCode mints a one-time code for a verified phone number.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var body codeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errRequest := h.orch.RequestOneTimeCode(c.Request.Context(), body.Phone); errRequest != nil {
		respondError(c, errRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}
