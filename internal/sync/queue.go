package sync

import (
	"context"
	"database/sql"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// QueueManager commits the transient selection queue into durable state:
// attendance records, one push job, and one immutable archive snapshot.
//
// Demo mode is an explicit flag injected by the auth/mode layer, never
// inferred from the shape of the data. In demo mode no push job is
// enqueued; the archive is still written.
type QueueManager struct {
	repo *db.Repository
	demo bool
}

// NewQueueManager creates a QueueManager.
func NewQueueManager(repo *db.Repository, demo bool) *QueueManager {
	return &QueueManager{repo: repo, demo: demo}
}

// Commit turns the current selection queue into attendance records for the
// given event, with the given state and recording timestamp (epoch millis).
//
// The whole commit is one transaction: record upserts, job enqueue, archive
// insert-and-prune, and clearing the active selection entries. Excluded
// entries are archived (tagged ABSENT) but produce no records and survive
// the commit for the next session.
func (m *QueueManager) Commit(ctx context.Context, eventID string, state models.AttendanceState, recordedAt int64) error {
	if !state.Valid() {
		return apperrors.New(apperrors.ErrInvalid, "unknown attendance state "+string(state))
	}

	event, err := m.repo.GetEvent(ctx, eventID)
	if err == sql.ErrNoRows {
		return apperrors.New(apperrors.ErrNotFound, "event "+eventID+" not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to load event", err)
	}

	selection, err := m.repo.ListSelection(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to read selection queue", err)
	}
	if len(selection) == 0 {
		logging.Debug("commit skipped, selection queue empty",
			map[string]interface{}{"event": event.Title})
		return nil
	}

	var included []*models.SelectionEntry
	archive := make([]PayloadItem, 0, len(selection))
	jobItems := make([]PayloadItem, 0, len(selection))
	for _, entry := range selection {
		if entry.Excluded {
			archive = append(archive, PayloadItem{ID: entry.AttendeeID, State: models.StateAbsent, Time: recordedAt})
			continue
		}
		included = append(included, entry)
		item := PayloadItem{ID: entry.AttendeeID, State: state, Time: recordedAt}
		archive = append(archive, item)
		jobItems = append(jobItems, item)
	}

	archiveData, err := EncodePayload(archive)
	if err != nil {
		return err
	}
	var jobData []byte
	if len(jobItems) > 0 {
		if jobData, err = EncodePayload(jobItems); err != nil {
			return err
		}
	}

	err = m.repo.RunInTx(ctx, func(ctx context.Context, r *db.Repository) error {
		for _, entry := range included {
			rec := &models.AttendanceRecord{
				EventID:    event.ID,
				AttendeeID: entry.AttendeeID,
				State:      state,
				Timestamp:  recordedAt,
			}
			if err := r.UpsertAttendanceRecord(ctx, rec); err != nil {
				return err
			}
		}

		if len(jobItems) > 0 && !m.demo {
			job := &models.SyncJob{
				EventID:    event.ID,
				EventTitle: event.Title,
				Payload:    jobData,
				CreatedAt:  recordedAt,
			}
			if err := r.EnqueueJob(ctx, job); err != nil {
				return err
			}
		}

		entry := &models.QueueArchive{
			EventID:    event.ID,
			EventTitle: event.Title,
			Timestamp:  recordedAt,
			Data:       archiveData,
		}
		if err := r.InsertArchive(ctx, entry); err != nil {
			return err
		}

		return r.ClearActiveSelection(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "commit transaction failed", err)
	}

	logging.Info("committed selection queue",
		map[string]interface{}{
			"event":    event.Title,
			"state":    string(state),
			"included": len(included),
			"excluded": len(selection) - len(included),
			"demo":     m.demo,
		})
	return nil
}

// RestoreFromArchive reconstructs selection-queue entries from an archive
// snapshot. ABSENT-tagged items come back as excluded. Only attendee ids not
// already queued are added: set union semantics, never clobbering the state
// of existing entries, so restoring the same archive twice is a no-op.
func (m *QueueManager) RestoreFromArchive(ctx context.Context, archiveID int64) error {
	entry, err := m.repo.GetArchive(ctx, archiveID)
	if err == sql.ErrNoRows {
		return apperrors.New(apperrors.ErrNotFound, "archive not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to load archive", err)
	}

	items, err := DecodePayload(entry.Data)
	if err != nil {
		return err
	}

	err = m.repo.RunInTx(ctx, func(ctx context.Context, r *db.Repository) error {
		for _, item := range items {
			sel := &models.SelectionEntry{
				AttendeeID: item.ID,
				Excluded:   item.State == models.StateAbsent,
			}
			if err := r.AddSelectionIfAbsent(ctx, sel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "restore transaction failed", err)
	}

	logging.Info("restored archive into selection queue",
		map[string]interface{}{"archive_id": archiveID, "items": len(items)})
	return nil
}
