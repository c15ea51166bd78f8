// Package twofactor implements the hardware-credential challenge/response
// ceremonies layered on top of primary authentication. The cryptographic
// verification itself is supplied by go-webauthn; this package owns the
// protocol state machine and the stored credential set around it.
package twofactor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"
)

// Ceremony errors.
var (
	// ErrVerificationFailed covers an attestation or assertion that does not
	// verify against the outstanding challenge.
	ErrVerificationFailed = errors.New("second factor verification failed")
	// ErrStaleChallenge means no unexpired challenge is outstanding.
	ErrStaleChallenge = errors.New("challenge expired")
	// ErrReplayDetected means the assertion counter did not advance.
	ErrReplayDetected = errors.New("credential counter did not advance")
	// ErrNicknameTaken means the user already has a credential with that nickname.
	ErrNicknameTaken = errors.New("credential nickname already in use")
	// ErrCredentialNotFound means no matching enrolled credential exists.
	ErrCredentialNotFound = errors.New("credential not found")
)

// Service runs enrollment and authentication ceremonies for one relying party.
type Service struct {
	db             *gorm.DB
	webAuthn       *webauthn.WebAuthn
	recorder       *audit.Recorder
	enrollSessions *sessionStore
	loginSessions  *sessionStore
}

// NewService constructs a Service. The challenge TTL bounds how long a
// begun ceremony stays completable.
func NewService(db *gorm.DB, webAuthn *webauthn.WebAuthn, recorder *audit.Recorder, challengeTTL time.Duration) *Service {
	return &Service{
		db:             db,
		webAuthn:       webAuthn,
		recorder:       recorder,
		enrollSessions: newSessionStore(challengeTTL),
		loginSessions:  newSessionStore(challengeTTL),
	}
}

// ceremonyUser adapts a user and their enrolled credentials to the
// WebAuthn interfaces.
type ceremonyUser struct {
	user        *models.User
	credentials []models.HardwareCredential
}

// WebAuthnID returns the user ID as a byte slice.
func (u ceremonyUser) WebAuthnID() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u.user.ID)
	return buf
}

// WebAuthnName returns the user's login identifier.
func (u ceremonyUser) WebAuthnName() string {
	if id := u.user.ContactIdentifier(); id != "" {
		return id
	}
	return u.user.Username
}

// WebAuthnDisplayName returns the user's display name.
func (u ceremonyUser) WebAuthnDisplayName() string {
	if u.user.Username != "" {
		return u.user.Username
	}
	return u.WebAuthnName()
}

// WebAuthnCredentials returns the enrolled credentials.
func (u ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.credentials))
	for _, cred := range u.credentials {
		out = append(out, webauthn.Credential{
			ID:        cred.CredentialID,
			PublicKey: cred.PublicKey,
			Flags: webauthn.CredentialFlags{
				BackupEligible: cred.BackupEligible,
				BackupState:    cred.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: cred.SignCount,
			},
		})
	}
	return out
}

// loadCeremonyUser loads a user with their enrolled credential set.
func (s *Service) loadCeremonyUser(ctx context.Context, userID uint64) (*ceremonyUser, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		return nil, fmt.Errorf("twofactor: load user: %w", errFind)
	}
	var creds []models.HardwareCredential
	if errCreds := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&creds).Error; errCreds != nil {
		return nil, fmt.Errorf("twofactor: load credentials: %w", errCreds)
	}
	return &ceremonyUser{user: &user, credentials: creds}, nil
}

// sessionKey scopes ceremony sessions per user.
func sessionKey(userID uint64) string {
	return fmt.Sprintf("%d", userID)
}

// BeginEnrollment starts an enrollment ceremony. Already-enrolled
// credential IDs are excluded so an authenticator cannot register twice.
func (s *Service) BeginEnrollment(ctx context.Context, userID uint64) (*protocol.CredentialCreation, error) {
	user, errLoad := s.loadCeremonyUser(ctx, userID)
	if errLoad != nil {
		return nil, errLoad
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationPreferred,
		}),
	}
	if len(user.WebAuthnCredentials()) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(user.WebAuthnCredentials()).CredentialDescriptors()))
	}

	creation, session, err := s.webAuthn.BeginRegistration(user, options...)
	if err != nil {
		return nil, fmt.Errorf("twofactor: begin enrollment: %w", err)
	}

	s.enrollSessions.Set(sessionKey(userID), *session)
	return creation, nil
}

// FinishEnrollment verifies the attestation against the outstanding
// challenge and persists a new hardware credential. The challenge is
// consumed whether or not verification succeeds.
func (s *Service) FinishEnrollment(ctx context.Context, userID uint64, nickname string, r *http.Request) (*models.HardwareCredential, error) {
	user, errLoad := s.loadCeremonyUser(ctx, userID)
	if errLoad != nil {
		return nil, errLoad
	}

	session, ok := s.enrollSessions.Take(sessionKey(userID))
	if !ok {
		return nil, ErrStaleChallenge
	}

	credential, errFinish := s.webAuthn.FinishRegistration(user, session, r)
	if errFinish != nil {
		s.recorder.Record(ctx, audit.EventSecondFactorFailed, &userID, false, map[string]any{"phase": "enrollment"})
		return nil, ErrVerificationFailed
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = fmt.Sprintf("key-%d", len(user.credentials)+1)
	}
	for _, existing := range user.credentials {
		if strings.EqualFold(existing.Nickname, nickname) {
			return nil, ErrNicknameTaken
		}
	}

	row := models.HardwareCredential{
		UserID:         userID,
		CredentialID:   credential.ID,
		PublicKey:      credential.PublicKey,
		SignCount:      credential.Authenticator.SignCount,
		Nickname:       nickname,
		BackupEligible: credential.Flags.BackupEligible,
		BackupState:    credential.Flags.BackupState,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("twofactor: persist credential: %w", errCreate)
	}

	s.recorder.Record(ctx, audit.EventSecondFactorPassed, &userID, true, map[string]any{
		"phase":    "enrollment",
		"nickname": nickname,
	})
	return &row, nil
}

// BeginLogin starts an authentication ceremony scoped to the user's
// enrolled credential set.
func (s *Service) BeginLogin(ctx context.Context, userID uint64) (*protocol.CredentialAssertion, error) {
	user, errLoad := s.loadCeremonyUser(ctx, userID)
	if errLoad != nil {
		return nil, errLoad
	}
	if len(user.credentials) == 0 {
		return nil, ErrCredentialNotFound
	}

	assertion, session, err := s.webAuthn.BeginLogin(user)
	if err != nil {
		return nil, fmt.Errorf("twofactor: begin login: %w", err)
	}

	s.loginSessions.Set(sessionKey(userID), *session)
	return assertion, nil
}

// FinishLogin verifies a signed assertion against the outstanding challenge
// and stored public key. The reported counter must be strictly greater than
// the stored one; on success the stored counter advances and the challenge
// is discarded. Failures never feed the primary lockout policy.
func (s *Service) FinishLogin(ctx context.Context, userID uint64, r *http.Request) error {
	user, errLoad := s.loadCeremonyUser(ctx, userID)
	if errLoad != nil {
		return errLoad
	}

	session, ok := s.loginSessions.Take(sessionKey(userID))
	if !ok {
		return ErrStaleChallenge
	}

	verified, errFinish := s.webAuthn.FinishLogin(user, session, r)
	if errFinish != nil {
		s.recorder.Record(ctx, audit.EventSecondFactorFailed, &userID, false, map[string]any{"phase": "login"})
		return ErrVerificationFailed
	}

	var stored *models.HardwareCredential
	for i := range user.credentials {
		if bytes.Equal(user.credentials[i].CredentialID, verified.ID) {
			stored = &user.credentials[i]
			break
		}
	}
	if stored == nil {
		s.recorder.Record(ctx, audit.EventSecondFactorFailed, &userID, false, map[string]any{"phase": "login"})
		return ErrCredentialNotFound
	}

	newCount := verified.Authenticator.SignCount
	if verified.Authenticator.CloneWarning || newCount <= stored.SignCount {
		s.recorder.Record(ctx, audit.EventSecondFactorFailed, &userID, false, map[string]any{
			"phase":  "login",
			"reason": "counter",
		})
		return ErrReplayDetected
	}

	now := time.Now().UTC()
	if errUpdate := s.db.WithContext(ctx).Model(&models.HardwareCredential{}).
		Where("id = ?", stored.ID).
		Updates(map[string]any{
			"sign_count":   newCount,
			"last_used_at": now,
			"updated_at":   now,
		}).Error; errUpdate != nil {
		return fmt.Errorf("twofactor: update counter: %w", errUpdate)
	}

	s.recorder.Record(ctx, audit.EventSecondFactorPassed, &userID, true, map[string]any{"phase": "login"})
	return nil
}

// ListCredentials returns the user's enrolled credentials.
func (s *Service) ListCredentials(ctx context.Context, userID uint64) ([]models.HardwareCredential, error) {
	var creds []models.HardwareCredential
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&creds).Error; errFind != nil {
		return nil, fmt.Errorf("twofactor: list credentials: %w", errFind)
	}
	return creds, nil
}

// DeleteCredential removes one enrolled credential. Deleting the last one
// leaves the user with no second factor, which flips the derived
// two-factor flag off with no extra bookkeeping.
func (s *Service) DeleteCredential(ctx context.Context, userID, credentialRowID uint64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", credentialRowID, userID).
		Delete(&models.HardwareCredential{})
	if res.Error != nil {
		return fmt.Errorf("twofactor: delete credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// Enabled reports whether the user currently has any enrolled credential.
func (s *Service) Enabled(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.HardwareCredential{}).
		Where("user_id = ?", userID).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("twofactor: count credentials: %w", errCount)
	}
	return count > 0, nil
}
