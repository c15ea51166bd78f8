package handlers

import (
	"errors"
	"net/http"

	"github.com/antarr/jordan-sub000/internal/authn"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/security"
	"github.com/antarr/jordan-sub000/internal/throttle"
	"github.com/antarr/jordan-sub000/internal/twofactor"
	"github.com/gin-gonic/gin"
)

// errorResponse maps one taxonomy error to a response.
type errorResponse struct {
	status  int
	code    string
	message string
}

// taxonomy maps sentinel errors to their boundary responses. Lock-state
// rejections share the HTTP status with generic credential failures; only
// the message differs.
var taxonomy = []struct {
	err  error
	resp errorResponse
}{
	{authn.ErrBadCredentials, errorResponse{http.StatusUnauthorized, "bad_credentials", "invalid credentials"}},
	{authn.ErrAccountJustLocked, errorResponse{http.StatusUnauthorized, "account_just_locked", "invalid credentials; this attempt locked your account"}},
	{authn.ErrAccountAutoLocked, errorResponse{http.StatusUnauthorized, "account_auto_locked", "account locked after too many failed attempts"}},
	{authn.ErrAccountAdminLocked, errorResponse{http.StatusUnauthorized, "account_locked_by_admin", "account locked by an administrator"}},
	{authn.ErrMissingCredentials, errorResponse{http.StatusBadRequest, "missing_credentials", "supply a password or a one-time code"}},
	{authn.ErrUnverifiedChannel, errorResponse{http.StatusForbidden, "unverified_channel", "verify this channel before signing in"}},
	{authn.ErrPhoneNotFound, errorResponse{http.StatusNotFound, "phone_not_found", "phone number not found"}},
	{authn.ErrRefreshNotEnabled, errorResponse{http.StatusNotImplemented, "refresh_not_enabled", "refresh tokens are not enabled"}},
	{authn.ErrUserMissingForToken, errorResponse{http.StatusUnauthorized, "principal_missing_for_token", "no user for token"}},
	{authn.ErrSecondFactorRequired, errorResponse{http.StatusUnauthorized, "second_factor_required", "second factor required"}},
	{authn.ErrPendingLoginExpired, errorResponse{http.StatusUnauthorized, "second_factor_failed", "pending login expired"}},
	{security.ErrExpiredToken, errorResponse{http.StatusUnauthorized, "token_expired", "token expired"}},
	{security.ErrWrongTokenType, errorResponse{http.StatusUnauthorized, "token_wrong_type", "wrong token type"}},
	{security.ErrInvalidToken, errorResponse{http.StatusUnauthorized, "token_invalid", "invalid token"}},
	{lockout.ErrInvalidUnlockToken, errorResponse{http.StatusUnauthorized, "invalid_unlock_token", "invalid unlock token"}},
	{twofactor.ErrStaleChallenge, errorResponse{http.StatusUnauthorized, "second_factor_failed", "challenge expired"}},
	{twofactor.ErrReplayDetected, errorResponse{http.StatusUnauthorized, "second_factor_failed", "credential counter did not advance"}},
	{twofactor.ErrVerificationFailed, errorResponse{http.StatusUnauthorized, "second_factor_failed", "second factor verification failed"}},
	{twofactor.ErrCredentialNotFound, errorResponse{http.StatusNotFound, "credential_not_found", "credential not found"}},
	{twofactor.ErrNicknameTaken, errorResponse{http.StatusConflict, "nickname_taken", "credential nickname already in use"}},
	{throttle.ErrRateLimited, errorResponse{http.StatusTooManyRequests, "rate_limited", "too many code requests"}},
}

// respondError converts a taxonomy error into a JSON response. Anything
// outside the taxonomy is an infrastructure failure and surfaces as a
// generic server error.
func respondError(c *gin.Context, err error) {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			c.JSON(entry.resp.status, gin.H{"error": entry.resp.message, "code": entry.resp.code})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// userSummary is the public-safe view of a user returned by login endpoints.
func userSummary(user *models.User) gin.H {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	return gin.H{
		"id":       user.ID,
		"email":    email,
		"username": user.Username,
		"bio":      user.Bio,
	}
}

// readUserFromContext returns the authenticated user set by middleware.
func readUserFromContext(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
