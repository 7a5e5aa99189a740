package models

import (
	"fmt"
	"time"
)

// titleStampLayout is the date/time prefix embedded in every event title.
const titleStampLayout = "060102 1504"

// Event represents one attendance-taking occasion.
//
// Title doubles as the human label and as the remote worksheet name, in the
// form "yyMMdd HHmm Name". CloudEventID stays empty until the first
// successful push establishes the remote mapping. LastProcessedRowIndex
// counts the remote data rows (header excluded) already consumed by push or
// pull; it is the cursor that makes differential pull possible.
type Event struct {
	ID                    string `db:"id" json:"id"`
	Title                 string `db:"title" json:"title"`
	Date                  string `db:"date" json:"date"` // 2006-01-02
	Time                  string `db:"time" json:"time"` // 15:04
	CloudEventID          string `db:"cloud_event_id" json:"cloud_event_id,omitempty"`
	LastProcessedRowIndex int    `db:"last_processed_row_index" json:"last_processed_row_index"`
	NotExistOnCloud       bool   `db:"not_exist_on_cloud" json:"not_exist_on_cloud"`
	CreatedAt             int64  `db:"created_at" json:"created_at"`
	UpdatedAt             int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}

// EventTitle builds the canonical "yyMMdd HHmm Name" title.
func EventTitle(at time.Time, name string) string {
	return fmt.Sprintf("%s %s", at.Format(titleStampLayout), name)
}

// TitleTime parses the date/time prefix out of the event title.
// Returns false when the title does not carry a parseable prefix.
func (e *Event) TitleTime() (time.Time, bool) {
	if len(e.Title) < len(titleStampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(titleStampLayout, e.Title[:len(titleStampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WithinLookback reports whether the event's title date falls inside the
// given lookback window ending at now. Events with unparseable titles are
// treated as outside the window.
func (e *Event) WithinLookback(now time.Time, days int) bool {
	t, ok := e.TitleTime()
	if !ok {
		return false
	}
	cutoff := now.AddDate(0, 0, -days)
	return !t.Before(cutoff) && !t.After(now.AddDate(0, 0, 1))
}
