package sync

import (
	"context"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

// PullWorker fetches attendance rows recorded by other devices and merges
// them into the local store. Each event carries its own row cursor, so a
// pull only transfers rows the device has not seen yet.
type PullWorker struct {
	repo     *db.Repository
	provider remote.Provider
}

// NewPullWorker creates a PullWorker.
func NewPullWorker(repo *db.Repository, provider remote.Provider) *PullWorker {
	return &PullWorker{repo: repo, provider: provider}
}

// Run performs one differential pull over all local events.
//
// If the push queue is non-empty the pull is skipped entirely: pulling while
// local rows are still unsent would move cursors past rows this device has
// not contributed yet. Per-event failures are logged and skipped; one
// unreachable worksheet must not starve the rest.
func (w *PullWorker) Run(ctx context.Context, scope remote.Scope) error {
	pending, err := w.repo.CountJobs(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to count pending jobs", err)
	}
	if pending > 0 {
		msg := "pull skipped, push queue not empty"
		logging.Info(msg, map[string]interface{}{"pending_jobs": pending})
		scope.Record("pullAttendance", "skipped", apperrors.New(apperrors.ErrPullSkipped, msg))
		return apperrors.New(apperrors.ErrPullSkipped, msg)
	}

	events, err := w.repo.ListEvents(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to list events", err)
	}

	var failed int
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if event.NotExistOnCloud {
			continue
		}
		if err := w.pullEvent(ctx, event, scope); err != nil {
			failed++
			logging.Warn("pull failed for event", map[string]interface{}{
				"event": event.Title,
				"error": err.Error(),
			})
		}
	}

	if failed > 0 {
		return apperrors.New(apperrors.ErrPullFailed, "pull incomplete for some events")
	}
	return nil
}

// pullEvent fetches rows past the event's cursor and merges them in one
// transaction. The cursor advances to whatever the remote reports even when
// every fetched row loses the merge; rows already seen are never refetched.
func (w *PullWorker) pullEvent(ctx context.Context, event *models.Event, scope remote.Scope) error {
	rows, newCursor, err := w.provider.FetchAttendanceForEvent(ctx, event, event.LastProcessedRowIndex, scope)
	if err != nil {
		return err
	}
	if newCursor == event.LastProcessedRowIndex && len(rows) == 0 {
		return nil
	}

	err = w.repo.RunInTx(ctx, func(ctx context.Context, r *db.Repository) error {
		for _, row := range rows {
			// Unknown attendee ids get a placeholder so the record has a
			// parent; the next master-list sync fills in the real names.
			if err := r.EnsureAttendee(ctx, row.AttendeeID, row.Name); err != nil {
				return err
			}
			rec := &models.AttendanceRecord{
				EventID:    event.ID,
				AttendeeID: row.AttendeeID,
				State:      row.State,
				Timestamp:  row.Timestamp,
			}
			if err := r.UpsertAttendanceRecord(ctx, rec); err != nil {
				return err
			}
		}
		return r.UpdateEventCursor(ctx, event.ID, newCursor)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "pull merge transaction failed", err)
	}

	logging.Info("pulled event rows", map[string]interface{}{
		"event":      event.Title,
		"rows":       len(rows),
		"new_cursor": newCursor,
	})
	return nil
}
