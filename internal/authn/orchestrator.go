package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/notify"
	"github.com/antarr/jordan-sub000/internal/security"
	"github.com/antarr/jordan-sub000/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CodeRequestLimiter throttles one-time-code minting per phone number.
type CodeRequestLimiter interface {
	// Allow returns an error when the phone number must wait before
	// requesting another code.
	Allow(ctx context.Context, phone string) error
}

// LoginRequest carries one login attempt.
type LoginRequest struct {
	Channel    Channel
	Identifier string
	Credentials
}

// SessionLogin is the outcome of a session-channel login.
type SessionLogin struct {
	User *models.User
	// Session is set when login fully completed.
	Session *models.Session
	// PendingToken is set when a second-factor round trip must follow.
	PendingToken string
}

// TokenLogin is the outcome of an API-channel login.
type TokenLogin struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	// PendingToken is set when a second-factor round trip must follow.
	PendingToken string
}

// Orchestrator drives a login attempt through channel selection, the lock
// gate, credential verification, lockout feedback, and the optional
// second-factor hand-off.
type Orchestrator struct {
	db         *gorm.DB
	verifier   *Verifier
	policy     *lockout.Policy
	recorder   *audit.Recorder
	notifier   notify.Notifier
	limiter    CodeRequestLimiter
	pending    *PendingStore
	jwtCfg     config.JWTConfig
	sessionTTL time.Duration
	codeTTL    time.Duration
}

// NewOrchestrator constructs an Orchestrator. The limiter may be nil, in
// which case one-time-code requests are not throttled.
func NewOrchestrator(
	db *gorm.DB,
	verifier *Verifier,
	policy *lockout.Policy,
	recorder *audit.Recorder,
	notifier notify.Notifier,
	limiter CodeRequestLimiter,
	jwtCfg config.JWTConfig,
) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Orchestrator{
		db:         db,
		verifier:   verifier,
		policy:     policy,
		recorder:   recorder,
		notifier:   notifier,
		limiter:    limiter,
		pending:    NewPendingStore(),
		jwtCfg:     jwtCfg,
		sessionTTL: config.DefaultSessionExpiry,
		codeTTL:    config.DefaultOneTimeCodeTTL,
	}
}

// Pending exposes the awaiting-second-factor store for the challenge handlers.
func (o *Orchestrator) Pending() *PendingStore {
	return o.pending
}

// authenticate runs the shared core of every login attempt: resolve the
// user, gate on lock state, verify credentials, and feed the lockout policy.
func (o *Orchestrator) authenticate(ctx context.Context, req LoginRequest) (*models.User, error) {
	user, errFind := o.verifier.FindByChannel(ctx, req.Channel, req.Identifier)
	if errFind != nil {
		// No user resolved: no counter exists to increment, and the response
		// is identical to a wrong-password rejection.
		if errors.Is(errFind, ErrBadCredentials) {
			o.recorder.Record(ctx, audit.EventLoginFailed, nil, false, map[string]any{
				"channel": string(req.Channel),
				"reason":  "not_found",
			})
		}
		return nil, errFind
	}

	if user.Locked() {
		o.recorder.Record(ctx, audit.EventLoginFailed, &user.ID, false, map[string]any{
			"channel": string(req.Channel),
			"reason":  "locked",
		})
		if user.LockedByAdmin {
			return nil, ErrAccountAdminLocked
		}
		return nil, ErrAccountAutoLocked
	}

	if errVerify := o.verifier.Verify(ctx, user, req.Channel, req.Credentials); errVerify != nil {
		if isCredentialRejection(errVerify) {
			outcome, errRecord := o.policy.RecordFailure(ctx, user)
			if errRecord != nil {
				return nil, errRecord
			}
			if outcome == lockout.OutcomeJustLocked {
				o.recorder.Record(ctx, audit.EventAccountJustLocked, &user.ID, false, map[string]any{
					"channel": string(req.Channel),
				})
				return nil, ErrAccountJustLocked
			}
		}
		o.recorder.Record(ctx, audit.EventLoginFailed, &user.ID, false, map[string]any{
			"channel": string(req.Channel),
			"reason":  errVerify.Error(),
		})
		return nil, errVerify
	}

	if errSuccess := o.policy.RecordSuccess(ctx, user); errSuccess != nil {
		return nil, errSuccess
	}
	return user, nil
}

// isCredentialRejection reports whether a verification error feeds the
// lockout counter. Infrastructure failures do not count against the user.
func isCredentialRejection(err error) bool {
	return errors.Is(err, ErrBadCredentials) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrUnverifiedChannel)
}

// LoginSession authenticates for the session channel. When the user has a
// second factor enrolled the outcome is parked and a pending token returned
// instead of a session.
func (o *Orchestrator) LoginSession(ctx context.Context, req LoginRequest) (*SessionLogin, error) {
	user, err := o.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled() {
		token := o.pending.Add(user.ID, PendingModeSession)
		return &SessionLogin{User: user, PendingToken: token}, nil
	}

	session, errSession := o.EstablishSession(ctx, user)
	if errSession != nil {
		return nil, errSession
	}
	return &SessionLogin{User: user, Session: session}, nil
}

// LoginAPI authenticates for the token channel (email + password).
func (o *Orchestrator) LoginAPI(ctx context.Context, email, password string) (*TokenLogin, error) {
	req := LoginRequest{
		Channel:     ChannelEmail,
		Identifier:  email,
		Credentials: Credentials{Password: password},
	}
	user, err := o.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled() {
		token := o.pending.Add(user.ID, PendingModeToken)
		return &TokenLogin{User: user, PendingToken: token}, nil
	}
	return o.IssueTokens(ctx, user)
}

// EstablishSession creates a server-side session for a fully signed-in user.
func (o *Orchestrator) EstablishSession(ctx context.Context, user *models.User) (*models.Session, error) {
	token, errToken := security.GenerateSessionToken()
	if errToken != nil {
		return nil, errToken
	}
	session := models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(o.sessionTTL),
	}
	if errCreate := o.db.WithContext(ctx).Create(&session).Error; errCreate != nil {
		return nil, fmt.Errorf("authn: create session: %w", errCreate)
	}
	o.recorder.Record(ctx, audit.EventLoginSucceeded, &user.ID, true, map[string]any{"grant": "session"})
	return &session, nil
}

// IssueTokens mints an access token, and a refresh token when enabled.
// Issuing a refresh token replaces any outstanding one for the user.
func (o *Orchestrator) IssueTokens(ctx context.Context, user *models.User) (*TokenLogin, error) {
	accessExpiry := o.jwtCfg.AccessExpiry.Std()
	access, errAccess := security.GenerateAccessToken(o.jwtCfg.Secret, user.ID, accessExpiry)
	if errAccess != nil {
		return nil, fmt.Errorf("authn: issue access token: %w", errAccess)
	}

	result := &TokenLogin{
		User:        user,
		AccessToken: access,
		ExpiresIn:   int64(accessExpiry.Seconds()),
	}

	if o.jwtCfg.RefreshEnabled {
		refreshExpiry := o.jwtCfg.RefreshExpiry.Std()
		refresh, errRefresh := security.GenerateRefreshToken(o.jwtCfg.Secret, user.ID, refreshExpiry)
		if errRefresh != nil {
			return nil, fmt.Errorf("authn: issue refresh token: %w", errRefresh)
		}
		expires := time.Now().UTC().Add(refreshExpiry)
		if errUpdate := o.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"refresh_token":            refresh,
				"refresh_token_expires_at": expires,
				"updated_at":               time.Now().UTC(),
			}).Error; errUpdate != nil {
			return nil, fmt.Errorf("authn: persist refresh token: %w", errUpdate)
		}
		user.RefreshToken = &refresh
		user.RefreshTokenExpiresAt = &expires
		result.RefreshToken = refresh
	}

	o.recorder.Record(ctx, audit.EventLoginSucceeded, &user.ID, true, map[string]any{"grant": "token"})
	return result, nil
}

// CompletePending consumes an awaiting-second-factor entry after a
// successful hardware-credential assertion and grants the parked outcome.
func (o *Orchestrator) CompletePending(ctx context.Context, pendingToken string) (*SessionLogin, *TokenLogin, error) {
	userID, mode, ok := o.pending.Consume(pendingToken)
	if !ok {
		return nil, nil, ErrPendingLoginExpired
	}

	var user models.User
	if errFind := o.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		return nil, nil, fmt.Errorf("authn: load pending user: %w", errFind)
	}

	switch mode {
	case PendingModeToken:
		tokens, errIssue := o.IssueTokens(ctx, &user)
		if errIssue != nil {
			return nil, nil, errIssue
		}
		return nil, tokens, nil
	default:
		session, errSession := o.EstablishSession(ctx, &user)
		if errSession != nil {
			return nil, nil, errSession
		}
		return &SessionLogin{User: &user, Session: session}, nil, nil
	}
}

// Refresh validates a refresh token and mints a new access token. Revocation
// is enforced against the persisted token, not just the signature.
func (o *Orchestrator) Refresh(ctx context.Context, rawToken string) (*TokenLogin, error) {
	if !o.jwtCfg.RefreshEnabled {
		return nil, ErrRefreshNotEnabled
	}

	claims, errParse := security.ParseRefreshToken(o.jwtCfg.Secret, rawToken)
	if errParse != nil {
		return nil, errParse
	}

	var user models.User
	errFind := o.db.WithContext(ctx).First(&user, claims.UserID).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrUserMissingForToken
	}
	if errFind != nil {
		return nil, fmt.Errorf("authn: load user for refresh: %w", errFind)
	}

	if user.RefreshToken == nil || *user.RefreshToken == "" || *user.RefreshToken != rawToken {
		return nil, security.ErrInvalidToken
	}
	if user.RefreshTokenExpiresAt == nil || time.Now().After(*user.RefreshTokenExpiresAt) {
		return nil, security.ErrExpiredToken
	}

	accessExpiry := o.jwtCfg.AccessExpiry.Std()
	access, errAccess := security.GenerateAccessToken(o.jwtCfg.Secret, user.ID, accessExpiry)
	if errAccess != nil {
		return nil, fmt.Errorf("authn: issue access token: %w", errAccess)
	}

	o.recorder.Record(ctx, audit.EventTokenRefreshed, &user.ID, true, nil)
	return &TokenLogin{
		User:        &user,
		AccessToken: access,
		ExpiresIn:   int64(accessExpiry.Seconds()),
	}, nil
}

// LogoutAPI clears the persisted refresh token, which invalidates it for
// future refresh calls regardless of its embedded expiry.
func (o *Orchestrator) LogoutAPI(ctx context.Context, userID uint64) error {
	errUpdate := o.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"refresh_token":            nil,
			"refresh_token_expires_at": nil,
			"updated_at":               time.Now().UTC(),
		}).Error
	if errUpdate != nil {
		return fmt.Errorf("authn: logout: %w", errUpdate)
	}
	o.recorder.Record(ctx, audit.EventLogout, &userID, true, map[string]any{"grant": "token"})
	return nil
}

// LogoutSession removes a server-side session.
func (o *Orchestrator) LogoutSession(ctx context.Context, token string) error {
	res := o.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{})
	if res.Error != nil {
		return fmt.Errorf("authn: logout session: %w", res.Error)
	}
	return nil
}

// ResolveSession loads the user behind an unexpired session token.
func (o *Orchestrator) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, security.ErrInvalidToken
	}
	var session models.Session
	errFind := o.db.WithContext(ctx).Where("token = ?", token).First(&session).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, security.ErrInvalidToken
	}
	if errFind != nil {
		return nil, fmt.Errorf("authn: load session: %w", errFind)
	}
	if session.Expired() {
		return nil, security.ErrExpiredToken
	}

	var user models.User
	if errUser := o.db.WithContext(ctx).Preload("Credentials").First(&user, session.UserID).Error; errUser != nil {
		return nil, fmt.Errorf("authn: load session user: %w", errUser)
	}
	return &user, nil
}

// RequestOneTimeCode mints a fresh phone login code and hands it to the
// notifier. Responses distinguish not-found from not-verified but never
// reveal more.
func (o *Orchestrator) RequestOneTimeCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrPhoneNotFound
	}

	if o.limiter != nil {
		if errAllow := o.limiter.Allow(ctx, phone); errAllow != nil {
			return errAllow
		}
	}

	var user models.User
	errFind := o.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return ErrPhoneNotFound
	}
	if errFind != nil {
		return fmt.Errorf("authn: find phone: %w", errFind)
	}
	if !user.PhoneVerified() {
		return ErrUnverifiedChannel
	}

	code, errCode := security.GenerateOneTimeCode()
	if errCode != nil {
		return errCode
	}
	expires := time.Now().UTC().Add(o.codeTTL)
	if errUpdate := o.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"one_time_code":            code,
			"one_time_code_expires_at": expires,
			"updated_at":               time.Now().UTC(),
		}).Error; errUpdate != nil {
		return fmt.Errorf("authn: store code: %w", errUpdate)
	}

	if errSend := o.notifier.SendSMS(ctx, phone, fmt.Sprintf("Your login code is %s", code)); errSend != nil {
		log.WithError(errSend).Warnf("authn: failed to deliver one-time code to %s", util.MaskPhone(phone))
	}
	o.recorder.Record(ctx, audit.EventOneTimeCodeIssued, &user.ID, true, map[string]any{
		"phone": util.MaskPhone(phone),
	})
	return nil
}
