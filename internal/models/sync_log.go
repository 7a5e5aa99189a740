package models

import "time"

// Sync log statuses.
const (
	SyncStatusSuccess = "SUCCESS"
	SyncStatusFailed  = "FAILED"
)

// SyncLog is one append-only audit row for a remote operation. Rows created
// during the same sync session share a TriggerID, so a later inspection can
// tell exactly which sub-operation of a session failed.
type SyncLog struct {
	ID           int64  `db:"id" json:"id"`
	TriggerID    string `db:"trigger_id" json:"trigger_id"`
	TriggerType  string `db:"trigger_type" json:"trigger_type"`
	Operation    string `db:"operation" json:"operation"`
	Params       string `db:"params" json:"params,omitempty"`
	Status       string `db:"status" json:"status"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`
	StackTrace   string `db:"stack_trace" json:"stack_trace,omitempty"`
	Timestamp    int64  `db:"timestamp" json:"timestamp"`
}

// TableName returns the table name for SyncLog.
func (SyncLog) TableName() string {
	return "sync_logs"
}

// Time returns the log timestamp as time.Time.
func (l *SyncLog) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}
