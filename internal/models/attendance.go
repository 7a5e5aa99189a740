package models

import "time"

// AttendanceState is the recorded presence decision for one attendee.
type AttendanceState string

const (
	StatePresent AttendanceState = "PRESENT"
	StateAbsent  AttendanceState = "ABSENT"
)

// Valid reports whether s is a known attendance state.
func (s AttendanceState) Valid() bool {
	return s == StatePresent || s == StateAbsent
}

// AttendanceRecord is one attendee's state for one event.
//
// Identity is (EventID, AttendeeID). Timestamp is epoch milliseconds from the
// authoritative clock; a stored record is only overwritten when the incoming
// timestamp is strictly greater (last-writer-wins), regardless of whether the
// write originated locally or from a pull.
type AttendanceRecord struct {
	EventID    string          `db:"event_id" json:"event_id"`
	AttendeeID string          `db:"attendee_id" json:"attendee_id"`
	State      AttendanceState `db:"state" json:"state"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
}

// TableName returns the table name for AttendanceRecord.
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

// Time returns the record timestamp as time.Time.
func (r *AttendanceRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// SelectionEntry is one row of the transient pre-commit selection queue.
// Excluded entries survive a commit; active ones are cleared by it.
type SelectionEntry struct {
	AttendeeID string `db:"attendee_id" json:"attendee_id"`
	Excluded   bool   `db:"excluded" json:"excluded"`
	AddedAt    int64  `db:"added_at" json:"added_at"`
}

// TableName returns the table name for SelectionEntry.
func (SelectionEntry) TableName() string {
	return "selection_queue"
}
