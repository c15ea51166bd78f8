package lockout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/antarr/jordan-sub000/internal/db"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestPolicy(t *testing.T) (*Policy, *gorm.DB) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	policy := NewPolicy(conn, config.LockoutConfig{Threshold: 5, Decay: config.Duration(24 * time.Hour)}, nil)
	return policy, conn
}

func createTestUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	email := "locked.out@example.com"
	user := models.User{
		Username:      "lockme",
		Email:         &email,
		ContactMethod: models.ContactMethodEmail,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func TestRecordFailureBelowThresholdStaysUnlocked(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		outcome, errRecord := policy.RecordFailure(ctx, user)
		if errRecord != nil {
			t.Fatalf("record failure %d: %v", i+1, errRecord)
		}
		if outcome != OutcomeRemainsUnlocked {
			t.Fatalf("expected attempt %d to leave the account unlocked", i+1)
		}
	}

	if user.Locked() {
		t.Fatal("expected account to remain unlocked after 4 failures")
	}
	if user.FailedLoginAttempts != 4 {
		t.Fatalf("expected 4 recorded failures, got %d", user.FailedLoginAttempts)
	}
}

func TestRecordFailureAtThresholdLocks(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	var outcome Outcome
	for i := 0; i < 5; i++ {
		var errRecord error
		outcome, errRecord = policy.RecordFailure(ctx, user)
		if errRecord != nil {
			t.Fatalf("record failure %d: %v", i+1, errRecord)
		}
	}

	if outcome != OutcomeJustLocked {
		t.Fatal("expected the fifth failure to report the lock transition")
	}
	if !user.AutoLocked() {
		t.Fatal("expected account to be auto-locked")
	}
	if user.AutoUnlockToken == nil || *user.AutoUnlockToken == "" {
		t.Fatal("expected an unlock token on auto-lock")
	}
}

func TestRecordFailureAfterLockIsNoOp(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, errRecord := policy.RecordFailure(ctx, user); errRecord != nil {
			t.Fatalf("record failure %d: %v", i+1, errRecord)
		}
	}
	lockedAt := *user.LockedAt
	attempts := user.FailedLoginAttempts

	outcome, errRecord := policy.RecordFailure(ctx, user)
	if errRecord != nil {
		t.Fatalf("record failure on locked account: %v", errRecord)
	}
	if outcome != OutcomeRemainsUnlocked {
		t.Fatal("expected no second lock transition")
	}
	if !user.LockedAt.Equal(lockedAt) || user.FailedLoginAttempts != attempts {
		t.Fatal("expected a locked account to be left untouched")
	}
}

func TestRecordFailureDecaysStaleCounter(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-25 * time.Hour)
	if errUpdate := conn.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{
			"failed_login_attempts": 4,
			"last_failed_login_at":  stale,
		}).Error; errUpdate != nil {
		t.Fatalf("seed stale counter: %v", errUpdate)
	}

	outcome, errRecord := policy.RecordFailure(ctx, user)
	if errRecord != nil {
		t.Fatalf("record failure: %v", errRecord)
	}
	if outcome != OutcomeRemainsUnlocked {
		t.Fatal("expected a failure after the decay window not to lock")
	}
	if user.FailedLoginAttempts != 1 {
		t.Fatalf("expected counter to restart at 1, got %d", user.FailedLoginAttempts)
	}
}

func TestConcurrentFailuresDoNotUnderCount(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)

	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("db handle: %v", errDB)
	}
	// A single pooled connection keeps every goroutine on the same in-memory
	// database.
	sqlDB.SetMaxOpenConns(1)

	var wg sync.WaitGroup
	failures := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := models.User{ID: user.ID}
			if _, errRecord := policy.RecordFailure(context.Background(), &attempt); errRecord != nil {
				failures <- errRecord
			}
		}()
	}
	wg.Wait()
	close(failures)
	for errRecord := range failures {
		t.Fatalf("record failure: %v", errRecord)
	}

	var stored models.User
	if errFind := conn.First(&stored, user.ID).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if stored.FailedLoginAttempts != 4 {
		t.Fatalf("expected 4 recorded failures, got %d", stored.FailedLoginAttempts)
	}
	if stored.Locked() {
		t.Fatal("expected account to stay below the lock threshold")
	}
}

func TestRecordSuccessResetsCounter(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, errRecord := policy.RecordFailure(ctx, user); errRecord != nil {
			t.Fatalf("record failure: %v", errRecord)
		}
	}

	if errSuccess := policy.RecordSuccess(ctx, user); errSuccess != nil {
		t.Fatalf("record success: %v", errSuccess)
	}
	if user.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", user.FailedLoginAttempts)
	}
	if user.LastFailedLoginAt != nil {
		t.Fatal("expected last failure timestamp to clear")
	}
}

func TestAdminLockMintsNoUnlockToken(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	if errLock := policy.Lock(ctx, user, true); errLock != nil {
		t.Fatalf("admin lock: %v", errLock)
	}
	if !user.Locked() || !user.LockedByAdmin {
		t.Fatal("expected an admin lock")
	}
	if user.AutoUnlockToken != nil {
		t.Fatal("admin lock must not mint a self-service unlock token")
	}
}

func TestAdminLockAfterAutoLockDropsStaleTokenOnCaller(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, errRecord := policy.RecordFailure(ctx, user); errRecord != nil {
			t.Fatalf("record failure: %v", errRecord)
		}
	}
	if user.AutoUnlockToken == nil {
		t.Fatal("expected an unlock token after the auto-lock")
	}

	// Escalating to an admin lock clears the token; the caller's struct must
	// not keep the old pointer value after the reload.
	if errLock := policy.Lock(ctx, user, true); errLock != nil {
		t.Fatalf("admin lock: %v", errLock)
	}
	if !user.LockedByAdmin {
		t.Fatal("expected the lock to be administrative")
	}
	if user.AutoUnlockToken != nil {
		t.Fatalf("expected the unlock token to clear, still %q", *user.AutoUnlockToken)
	}
}

func TestUnlockClearsLockStateAndCounter(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, errRecord := policy.RecordFailure(ctx, user); errRecord != nil {
			t.Fatalf("record failure: %v", errRecord)
		}
	}

	if errUnlock := policy.Unlock(ctx, user); errUnlock != nil {
		t.Fatalf("unlock: %v", errUnlock)
	}
	if user.Locked() {
		t.Fatal("expected account to be unlocked")
	}
	if user.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset on unlock, got %d", user.FailedLoginAttempts)
	}
	if user.AutoUnlockToken != nil {
		t.Fatal("expected unlock token to clear")
	}
}

func TestUnlockWithTokenSucceedsOnce(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, errRecord := policy.RecordFailure(ctx, user); errRecord != nil {
			t.Fatalf("record failure: %v", errRecord)
		}
	}
	token := *user.AutoUnlockToken

	unlocked, errUnlock := policy.UnlockWithToken(ctx, token)
	if errUnlock != nil {
		t.Fatalf("unlock with token: %v", errUnlock)
	}
	if unlocked.Locked() {
		t.Fatal("expected account to be unlocked")
	}

	if _, errAgain := policy.UnlockWithToken(ctx, token); !errors.Is(errAgain, ErrInvalidUnlockToken) {
		t.Fatalf("expected a consumed token to be rejected, got %v", errAgain)
	}
}

func TestUnlockWithTokenRejectsUnknownToken(t *testing.T) {
	policy, _ := newTestPolicy(t)

	if _, errUnlock := policy.UnlockWithToken(context.Background(), "no-such-token"); !errors.Is(errUnlock, ErrInvalidUnlockToken) {
		t.Fatalf("expected ErrInvalidUnlockToken, got %v", errUnlock)
	}
	if _, errUnlock := policy.UnlockWithToken(context.Background(), ""); !errors.Is(errUnlock, ErrInvalidUnlockToken) {
		t.Fatalf("expected ErrInvalidUnlockToken for empty token, got %v", errUnlock)
	}
}

func TestUnlockWithTokenRejectsAdminLockedAccount(t *testing.T) {
	policy, conn := newTestPolicy(t)
	user := createTestUser(t, conn)
	ctx := context.Background()

	// An admin lock after an auto-lock keeps the account admin-locked even
	// if a stale token row survives.
	now := time.Now().UTC()
	if errUpdate := conn.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{
			"locked_at":         now,
			"locked_by_admin":   true,
			"auto_unlock_token": "stale-token",
		}).Error; errUpdate != nil {
		t.Fatalf("seed admin lock: %v", errUpdate)
	}

	if _, errUnlock := policy.UnlockWithToken(ctx, "stale-token"); !errors.Is(errUnlock, ErrInvalidUnlockToken) {
		t.Fatalf("expected ErrInvalidUnlockToken for an admin-locked account, got %v", errUnlock)
	}
}
