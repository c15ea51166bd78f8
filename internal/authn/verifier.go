package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/security"
	"gorm.io/gorm"
)

// Channel identifies which identifier type locates the user.
type Channel string

const (
	// ChannelEmail locates the user by email address.
	ChannelEmail Channel = "email"
	// ChannelPhone locates the user by phone number.
	ChannelPhone Channel = "phone"
)

// Credentials is the proffered secret material for one login attempt.
type Credentials struct {
	Password    string
	OneTimeCode string
}

// Empty reports whether no secret was supplied at all.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Password) == "" && strings.TrimSpace(c.OneTimeCode) == ""
}

// Verifier checks proffered secrets against stored material. Lock gating is
// the orchestrator's responsibility and happens before verification.
type Verifier struct {
	db *gorm.DB
}

// NewVerifier constructs a Verifier.
func NewVerifier(db *gorm.DB) *Verifier {
	return &Verifier{db: db}
}

// FindByChannel loads the user whose primary contact method matches the
// channel and identifier. Only the primary channel participates in lookup
// even when both identifiers are populated.
func (v *Verifier) FindByChannel(ctx context.Context, channel Channel, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrBadCredentials
	}

	query := v.db.WithContext(ctx)
	switch channel {
	case ChannelEmail:
		query = query.Where("contact_method = ? AND email = ?", models.ContactMethodEmail, identifier)
	case ChannelPhone:
		query = query.Where("contact_method = ? AND phone = ?", models.ContactMethodPhone, identifier)
	default:
		return nil, ErrBadCredentials
	}

	var user models.User
	errFind := query.Preload("Credentials").First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if errFind != nil {
		return nil, fmt.Errorf("authn: find user: %w", errFind)
	}
	return &user, nil
}

// Verify checks the supplied credentials for an already-located, unlocked
// user. It returns nil on success and a taxonomy error on rejection.
func (v *Verifier) Verify(ctx context.Context, user *models.User, channel Channel, creds Credentials) error {
	if user == nil {
		return ErrBadCredentials
	}
	switch channel {
	case ChannelEmail:
		return v.verifyEmail(user, creds)
	case ChannelPhone:
		return v.verifyPhone(ctx, user, creds)
	default:
		return ErrBadCredentials
	}
}

// verifyEmail checks an email/password attempt.
func (v *Verifier) verifyEmail(user *models.User, creds Credentials) error {
	if !user.EmailVerified() {
		return ErrUnverifiedChannel
	}
	if strings.TrimSpace(creds.Password) == "" {
		return ErrMissingCredentials
	}
	if !user.HasPassword() || !security.CheckPassword(user.Password, creds.Password) {
		return ErrBadCredentials
	}
	return nil
}

// verifyPhone checks a phone attempt using either a one-time code or a
// password when one was ever set.
func (v *Verifier) verifyPhone(ctx context.Context, user *models.User, creds Credentials) error {
	if !user.PhoneVerified() {
		return ErrUnverifiedChannel
	}
	if creds.Empty() {
		return ErrMissingCredentials
	}

	if code := strings.TrimSpace(creds.OneTimeCode); code != "" {
		return v.consumeOneTimeCode(ctx, user, code)
	}

	if !user.HasPassword() {
		return ErrBadCredentials
	}
	if !security.CheckPassword(user.Password, creds.Password) {
		return ErrBadCredentials
	}
	return nil
}

// consumeOneTimeCode atomically matches and clears the stored code so it
// can authenticate exactly once.
func (v *Verifier) consumeOneTimeCode(ctx context.Context, user *models.User, code string) error {
	if user.OneTimeCode == "" || user.OneTimeCodeExpiresAt == nil {
		return ErrBadCredentials
	}
	if time.Now().After(*user.OneTimeCodeExpiresAt) {
		return ErrBadCredentials
	}

	res := v.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND one_time_code = ?", user.ID, code).
		Updates(map[string]any{
			"one_time_code":            "",
			"one_time_code_expires_at": nil,
			"updated_at":               time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("authn: consume code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBadCredentials
	}
	user.OneTimeCode = ""
	user.OneTimeCodeExpiresAt = nil
	return nil
}
