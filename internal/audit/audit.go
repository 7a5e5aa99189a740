// Package audit persists a per-session trail of remote operations.
//
// Every sync session (one manual trigger, one scheduled run, one login sync)
// gets a trigger id; each remote operation inside it appends one row with
// its outcome. The trail is the user-visible "what happened last time"
// surface, durable across process restarts.
package audit

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// TriggerType identifies what started a sync session.
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerLogin     TriggerType = "LOGIN"
)

// Trail appends audit rows to the durable store.
type Trail struct {
	repo *db.Repository
}

// NewTrail creates a Trail writing through the given repository.
func NewTrail(repo *db.Repository) *Trail {
	return &Trail{repo: repo}
}

// Begin opens a new session scope with a fresh trigger id.
func (t *Trail) Begin(trigger TriggerType) *Scope {
	return &Scope{
		trail:     t,
		triggerID: uuid.New().String(),
		trigger:   trigger,
	}
}

// Scope groups the audit rows of one sync session.
type Scope struct {
	trail     *Trail
	triggerID string
	trigger   TriggerType
}

// TriggerID returns the session's trigger id.
func (s *Scope) TriggerID() string {
	return s.triggerID
}

// Record appends one audit row for a remote operation. A nil err records
// SUCCESS; otherwise FAILED with the error message and a stack trace.
// Audit persistence failures are logged but never propagated: the audit
// trail must not break the operation it describes.
func (s *Scope) Record(operation, params string, err error) {
	entry := &models.SyncLog{
		TriggerID:   s.triggerID,
		TriggerType: string(s.trigger),
		Operation:   operation,
		Params:      params,
		Status:      models.SyncStatusSuccess,
	}
	if err != nil {
		entry.Status = models.SyncStatusFailed
		entry.ErrorMessage = err.Error()
		entry.StackTrace = string(debug.Stack())
	}

	if dbErr := s.trail.repo.AppendSyncLog(context.Background(), entry); dbErr != nil {
		logging.Error("failed to append sync log", dbErr,
			map[string]interface{}{"operation": operation, "trigger_id": s.triggerID})
		return
	}

	if err != nil {
		logging.Warn("sync operation failed",
			map[string]interface{}{"operation": operation, "params": params,
				"trigger_id": s.triggerID, "error": err.Error()})
	} else {
		logging.Debug("sync operation ok",
			map[string]interface{}{"operation": operation, "params": params, "trigger_id": s.triggerID})
	}
}
