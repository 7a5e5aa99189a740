// Package remote abstracts the spreadsheet-backed cloud store.
package remote

import (
	"context"

	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// Scope receives the audit outcome of each remote operation. Satisfied by
// audit.Scope.
type Scope interface {
	Record(operation, params string, err error)
}

// PushKind discriminates the closed set of push outcomes.
type PushKind int

const (
	// PushOK: records appended; NewCursor carries the remote's reported
	// data-row count for the worksheet.
	PushOK PushKind = iota

	// PushOKWithMapping: first successful push for the event; CloudEventID
	// carries the newly established remote identifier.
	PushOKWithMapping

	// PushFailed: Message describes the failure, Retryable classifies it.
	PushFailed
)

// PushResult is the outcome of one PushAttendance call. Using a closed
// variant struct keeps the push worker's classification exhaustive.
type PushResult struct {
	Kind         PushKind
	CloudEventID string
	NewCursor    int
	Message      string
	Retryable    bool
}

// Failure builds a PushFailed result.
func Failure(message string, retryable bool) PushResult {
	return PushResult{Kind: PushFailed, Message: message, Retryable: retryable}
}

// PulledRecord is one attendance row read from the remote worksheet.
// Name is the display name that accompanied the row, when the cell carried
// one; it seeds placeholder attendees for ids unknown locally.
type PulledRecord struct {
	AttendeeID string
	Name       string
	State      models.AttendanceState
	Timestamp  int64
}

// Provider is the remote spreadsheet store consumed by the sync core.
//
// Implementations classify their own failures: transient transport problems
// are retryable, a confirmed-missing worksheet is not. Every operation
// records its outcome on the given scope.
type Provider interface {
	// PushAttendance appends the records to the event's worksheet. When
	// failIfMissing is set, a confirmed-absent worksheet is a non-retryable
	// failure instead of an implicit create.
	PushAttendance(ctx context.Context, event *models.Event, records []models.AttendanceRecord, scope Scope, failIfMissing bool) PushResult

	// FetchMasterAttendees returns the full remote attendee master list.
	FetchMasterAttendees(ctx context.Context, scope Scope) ([]models.Attendee, error)

	// FetchMasterGroups returns the full remote group master list.
	FetchMasterGroups(ctx context.Context, scope Scope) ([]models.Group, error)

	// FetchAttendeeGroupMappings returns all remote attendee-group edges.
	FetchAttendeeGroupMappings(ctx context.Context, scope Scope) ([]models.AttendeeGroupMapping, error)

	// FetchMasterListVersion returns an opaque version token for cheap
	// staleness checks. Not required to be exact.
	FetchMasterListVersion(ctx context.Context, scope Scope) (string, error)

	// FetchAttendanceForEvent returns the data rows after startRowIndex and
	// the new cursor value. The provider accounts for the header row; the
	// cursor counts data rows only. Unparseable rows are skipped but still
	// advance the cursor.
	FetchAttendanceForEvent(ctx context.Context, event *models.Event, startRowIndex int, scope Scope) ([]PulledRecord, int, error)

	// FetchRecentEvents lists remote events within the lookback window.
	FetchRecentEvents(ctx context.Context, daysLookback int, scope Scope) ([]models.Event, error)
}
