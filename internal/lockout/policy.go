// Package lockout implements the failed-login counter and account lock
// state machine. All counter and lock mutations happen inside a single
// transaction so concurrent attempts cannot under-count or double-lock.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/notify"
	"github.com/antarr/jordan-sub000/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome reports the lock transition caused by a recorded failure.
type Outcome int

const (
	// OutcomeRemainsUnlocked means the failure did not cross the threshold.
	OutcomeRemainsUnlocked Outcome = iota
	// OutcomeJustLocked means this failure crossed the threshold and locked the account.
	OutcomeJustLocked
)

// ErrInvalidUnlockToken is the single error returned for every self-service
// unlock failure. A mismatched token, an admin-locked account, and an
// already-unlocked account are deliberately indistinguishable.
var ErrInvalidUnlockToken = errors.New("invalid unlock token")

// Policy applies the lockout rules to user rows.
type Policy struct {
	db        *gorm.DB
	threshold int
	decay     time.Duration
	notifier  notify.Notifier
}

// NewPolicy constructs a Policy.
func NewPolicy(db *gorm.DB, cfg config.LockoutConfig, notifier notify.Notifier) *Policy {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = config.DefaultLockoutThreshold
	}
	decay := cfg.Decay.Std()
	if decay <= 0 {
		decay = config.DefaultLockoutDecay
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Policy{db: db, threshold: threshold, decay: decay, notifier: notifier}
}

// Locked reports whether the user is currently locked.
func (p *Policy) Locked(user *models.User) bool {
	return user != nil && user.Locked()
}

// Threshold returns the failure count that locks an account.
func (p *Policy) Threshold() int {
	return p.threshold
}

// RecordFailure records one failed login attempt inside a transaction and
// reports whether this attempt locked the account. The passed user is
// refreshed with the post-transaction state, so the caller's messaging
// decision and the lock transition come from the same atomic operation.
func (p *Policy) RecordFailure(ctx context.Context, user *models.User) (Outcome, error) {
	if user == nil {
		return OutcomeRemainsUnlocked, fmt.Errorf("lockout: nil user")
	}

	outcome := OutcomeRemainsUnlocked
	now := time.Now().UTC()
	errTx := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.User
		// Row lock so two concurrent failures cannot both read the same
		// counter value and under-count.
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, user.ID).Error; errFind != nil {
			return errFind
		}
		if current.Locked() {
			// Already locked by a concurrent attempt; nothing to record.
			*user = current
			return nil
		}

		attempts := current.FailedLoginAttempts
		if current.LastFailedLoginAt != nil && now.Sub(*current.LastFailedLoginAt) > p.decay {
			attempts = 0
		}
		attempts++

		updates := map[string]any{
			"failed_login_attempts": attempts,
			"last_failed_login_at":  now,
			"updated_at":            now,
		}
		if attempts >= p.threshold {
			token := security.GenerateUnlockToken()
			updates["locked_at"] = now
			updates["locked_by_admin"] = false
			updates["auto_unlock_token"] = token
			outcome = OutcomeJustLocked
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", current.ID).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		var fresh models.User
		if errFind := tx.First(&fresh, current.ID).Error; errFind != nil {
			return errFind
		}
		*user = fresh
		return nil
	})
	if errTx != nil {
		return OutcomeRemainsUnlocked, fmt.Errorf("lockout: record failure: %w", errTx)
	}

	if outcome == OutcomeJustLocked {
		p.notifyLocked(ctx, user)
	}
	return outcome, nil
}

// RecordSuccess resets the failure counter. Lock state is untouched; a locked
// user never reaches the success path because the gate check runs first.
func (p *Policy) RecordSuccess(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("lockout: nil user")
	}
	now := time.Now().UTC()
	errUpdate := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"last_failed_login_at":  nil,
			"updated_at":            now,
		}).Error
	if errUpdate != nil {
		return fmt.Errorf("lockout: record success: %w", errUpdate)
	}
	user.FailedLoginAttempts = 0
	user.LastFailedLoginAt = nil
	return nil
}

// Lock locks the account. Administrative locks never mint an unlock token,
// so admin-locked accounts cannot self-service unlock.
func (p *Policy) Lock(ctx context.Context, user *models.User, byAdmin bool) error {
	if user == nil {
		return fmt.Errorf("lockout: nil user")
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"locked_at":       now,
		"locked_by_admin": byAdmin,
		"updated_at":      now,
	}
	if byAdmin {
		updates["auto_unlock_token"] = nil
	} else {
		updates["auto_unlock_token"] = security.GenerateUnlockToken()
	}
	errUpdate := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error
	if errUpdate != nil {
		return fmt.Errorf("lockout: lock: %w", errUpdate)
	}
	return p.reload(ctx, user)
}

// Unlock clears lock state and the failure counter atomically.
func (p *Policy) Unlock(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("lockout: nil user")
	}
	now := time.Now().UTC()
	errUpdate := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"locked_at":             nil,
			"locked_by_admin":       false,
			"failed_login_attempts": 0,
			"last_failed_login_at":  nil,
			"auto_unlock_token":     nil,
			"updated_at":            now,
		}).Error
	if errUpdate != nil {
		return fmt.Errorf("lockout: unlock: %w", errUpdate)
	}
	return p.reload(ctx, user)
}

// reload refreshes the caller's struct from the database. Scanning into a
// fresh value matters: a query into an already-populated struct leaves stale
// pointer fields in place for columns that went NULL.
func (p *Policy) reload(ctx context.Context, user *models.User) error {
	var fresh models.User
	if errFind := p.db.WithContext(ctx).First(&fresh, user.ID).Error; errFind != nil {
		return errFind
	}
	*user = fresh
	return nil
}

// UnlockWithToken performs a self-service unlock. The token must match an
// auto-locked account exactly; every failure mode returns the same error.
func (p *Policy) UnlockWithToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidUnlockToken
	}

	var unlocked models.User
	errTx := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("auto_unlock_token = ?", token).First(&user).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrInvalidUnlockToken
		}
		if errFind != nil {
			return errFind
		}
		if !user.AutoLocked() {
			return ErrInvalidUnlockToken
		}

		now := time.Now().UTC()
		if errUpdate := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"locked_at":             nil,
				"locked_by_admin":       false,
				"failed_login_attempts": 0,
				"last_failed_login_at":  nil,
				"auto_unlock_token":     nil,
				"updated_at":            now,
			}).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.First(&unlocked, user.ID).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrInvalidUnlockToken) {
			return nil, ErrInvalidUnlockToken
		}
		return nil, fmt.Errorf("lockout: unlock with token: %w", errTx)
	}
	return &unlocked, nil
}

// notifyLocked emits the lock notification when the user has an email channel.
func (p *Policy) notifyLocked(ctx context.Context, user *models.User) {
	if user.Email == nil || *user.Email == "" {
		return
	}
	token := ""
	if user.AutoUnlockToken != nil {
		token = *user.AutoUnlockToken
	}
	body := fmt.Sprintf("Your account was locked after too many failed login attempts. Use this token to unlock it: %s", token)
	if errSend := p.notifier.SendEmail(ctx, *user.Email, "Account locked", body); errSend != nil {
		log.WithError(errSend).Warn("lockout: failed to send lock notification")
	}
}
