// Package audit persists security-relevant events for later review.
// Recording is best-effort: a failed write is logged, never surfaced to the
// request that triggered it.
package audit

import (
	"context"
	"encoding/json"

	"github.com/antarr/jordan-sub000/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event kinds recorded by the auth engine.
const (
	EventLoginSucceeded      = "login_succeeded"
	EventLoginFailed         = "login_failed"
	EventAccountJustLocked   = "account_just_locked"
	EventAccountUnlocked     = "account_unlocked"
	EventAdminLocked         = "account_admin_locked"
	EventAdminUnlocked       = "account_admin_unlocked"
	EventSecondFactorPassed  = "second_factor_succeeded"
	EventSecondFactorFailed  = "second_factor_failed"
	EventAuthorizationDenied = "authorization_denied"
	EventOneTimeCodeIssued   = "one_time_code_issued"
	EventTokenRefreshed      = "token_refreshed"
	EventLogout              = "logout"
)

// Recorder writes audit events to the database.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists one event. A nil userID records an event with no resolved
// principal; detail is marshalled to JSON and may be nil.
func (r *Recorder) Record(ctx context.Context, event string, userID *uint64, success bool, detail map[string]any) {
	if r == nil || r.db == nil {
		return
	}

	row := models.AuthEvent{
		Event:   event,
		UserID:  userID,
		Success: success,
	}
	if len(detail) > 0 {
		data, errMarshal := json.Marshal(detail)
		if errMarshal != nil {
			log.WithError(errMarshal).Warn("audit: failed to marshal event detail")
		} else {
			row.Detail = datatypes.JSON(data)
		}
	}

	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("event", event).Warn("audit: failed to persist event")
	}
}
