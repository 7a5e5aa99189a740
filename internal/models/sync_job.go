package models

import "encoding/json"

// SyncJob is a durable, not-yet-acknowledged push of one commit's worth of
// records for one event. Jobs are processed strictly oldest-first across the
// whole queue and deleted only after a terminal outcome from the remote.
type SyncJob struct {
	JobID      int64           `db:"job_id" json:"job_id"`
	EventID    string          `db:"event_id" json:"event_id"`
	EventTitle string          `db:"event_title" json:"event_title"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for SyncJob.
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// QueueArchive is an immutable snapshot of one committed batch, including the
// excluded items. The archive is independent of the job lifecycle (written
// even in demo mode) and bounded to the 25 most recent entries.
type QueueArchive struct {
	ID         int64           `db:"id" json:"id"`
	EventID    string          `db:"event_id" json:"event_id"`
	EventTitle string          `db:"event_title" json:"event_title"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
	Data       json.RawMessage `db:"data" json:"data"`
}

// TableName returns the table name for QueueArchive.
func (QueueArchive) TableName() string {
	return "queue_archives"
}
