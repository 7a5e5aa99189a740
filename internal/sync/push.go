package sync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

// PushOutcome is the terminal state of one push worker invocation.
type PushOutcome int

const (
	// PushDrained: the queue is empty; nothing left to send.
	PushDrained PushOutcome = iota

	// PushRetry: a transient failure stopped the drain; the scheduler
	// should back off and re-invoke.
	PushRetry

	// PushFatal: a non-retryable failure was surfaced; the affected job
	// was discarded and its event flagged as missing on the cloud.
	PushFatal
)

// PushWorker drains the durable job queue against the remote provider, one
// job at a time, strictly oldest-first across the whole queue. A stuck job
// for one event blocks jobs for every other event behind it; that is a
// deliberate trade of throughput for ordering.
type PushWorker struct {
	repo     *db.Repository
	provider remote.Provider
}

// NewPushWorker creates a PushWorker.
func NewPushWorker(repo *db.Repository, provider remote.Provider) *PushWorker {
	return &PushWorker{repo: repo, provider: provider}
}

// Run drains the job queue until it is empty or a failure stops the loop.
// The worker holds no state between invocations; every call re-reads the
// queue from the durable store.
func (w *PushWorker) Run(ctx context.Context, scope remote.Scope) (PushOutcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return PushRetry, err
		}

		job, err := w.repo.OldestJob(ctx)
		if err != nil {
			return PushRetry, apperrors.Wrap(apperrors.ErrDatabase, "failed to fetch oldest job", err)
		}
		if job == nil {
			return PushDrained, nil
		}

		event, err := w.repo.GetEvent(ctx, job.EventID)
		if err == sql.ErrNoRows {
			// The event was deleted locally while the job waited. The job
			// is unsendable; local deletion wins and the data is dropped.
			logging.Warn("dropping job for locally deleted event",
				map[string]interface{}{"job_id": job.JobID, "event_id": job.EventID})
			if err := w.repo.DeleteJob(ctx, job.JobID); err != nil {
				return PushRetry, apperrors.Wrap(apperrors.ErrDatabase, "failed to delete orphaned job", err)
			}
			continue
		}
		if err != nil {
			return PushRetry, apperrors.Wrap(apperrors.ErrDatabase, "failed to resolve job event", err)
		}

		items, err := DecodePayload(job.Payload)
		if err != nil {
			// A payload that cannot be parsed will never send; discard it
			// rather than wedge the queue forever.
			logging.Error("dropping job with corrupt payload", err,
				map[string]interface{}{"job_id": job.JobID, "event": event.Title})
			if delErr := w.repo.DeleteJob(ctx, job.JobID); delErr != nil {
				return PushRetry, apperrors.Wrap(apperrors.ErrDatabase, "failed to delete corrupt job", delErr)
			}
			continue
		}

		records := make([]models.AttendanceRecord, 0, len(items))
		for _, item := range items {
			records = append(records, models.AttendanceRecord{
				EventID:    event.ID,
				AttendeeID: item.ID,
				State:      item.State,
				Timestamp:  item.Time,
			})
		}

		// A mapped event asserts its worksheet still exists; an unmapped one
		// lets the remote create it and report the new mapping.
		result := w.provider.PushAttendance(ctx, event, records, scope, event.CloudEventID != "")

		switch result.Kind {
		case remote.PushOK, remote.PushOKWithMapping:
			if err := w.applySuccess(ctx, job, event, result, len(records)); err != nil {
				return PushRetry, err
			}

		case remote.PushFailed:
			if result.Retryable {
				// Leave the job queued and stop: skipping ahead would break
				// the FIFO ordering guarantee.
				return PushRetry, apperrors.New(apperrors.ErrPushFailed, result.Message)
			}
			err := w.repo.RunInTx(ctx, func(ctx context.Context, r *db.Repository) error {
				if err := r.DeleteJob(ctx, job.JobID); err != nil {
					return err
				}
				return r.SetEventMissing(ctx, event.ID, true)
			})
			if err != nil {
				return PushRetry, apperrors.Wrap(apperrors.ErrDatabase, "failed to discard fatal job", err)
			}
			return PushFatal, apperrors.New(apperrors.ErrPushFatal,
				fmt.Sprintf("event %s: %s", event.Title, result.Message))

		default:
			return PushRetry, apperrors.New(apperrors.ErrInternal,
				fmt.Sprintf("unknown push result kind %d", result.Kind))
		}
	}
}

// applySuccess deletes the job and persists whatever the remote reported:
// a newly assigned cloud id, and the cursor. The cursor is advanced only
// when the reported value equals old cursor + records pushed. A larger
// value means another writer appended rows between our push and the
// response; leaving the cursor untouched makes the next pull re-fetch the
// gap rows.
func (w *PushWorker) applySuccess(ctx context.Context, job *models.SyncJob, event *models.Event, result remote.PushResult, pushed int) error {
	err := w.repo.RunInTx(ctx, func(ctx context.Context, r *db.Repository) error {
		if err := r.DeleteJob(ctx, job.JobID); err != nil {
			return err
		}

		if result.Kind == remote.PushOKWithMapping &&
			result.CloudEventID != "" && result.CloudEventID != event.CloudEventID {
			if err := r.SetEventCloudID(ctx, event.ID, result.CloudEventID); err != nil {
				return err
			}
		}

		expected := event.LastProcessedRowIndex + pushed
		if result.NewCursor == expected {
			return r.UpdateEventCursor(ctx, event.ID, result.NewCursor)
		}

		logging.Warn("push cursor gap detected, leaving cursor untouched",
			map[string]interface{}{
				"event":    event.Title,
				"cursor":   event.LastProcessedRowIndex,
				"pushed":   pushed,
				"reported": result.NewCursor,
			})
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to finalize pushed job", err)
	}
	return nil
}
