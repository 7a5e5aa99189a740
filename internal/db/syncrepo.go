package db

import (
	"context"
	"database/sql"

	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// archiveCap bounds the committed-batch archive to the most recent entries.
const archiveCap = 25

// syncLogCap bounds the audit trail row count.
const syncLogCap = 500

// =====================================================
// Selection Queue Operations
// =====================================================

// AddSelection adds or updates one selection-queue entry.
func (r *Repository) AddSelection(ctx context.Context, entry *models.SelectionEntry) error {
	if entry.AddedAt == 0 {
		entry.AddedAt = nowMillis()
	}
	query := `
	INSERT INTO selection_queue (attendee_id, excluded, added_at)
	VALUES (?, ?, ?)
	ON CONFLICT(attendee_id) DO UPDATE SET excluded = excluded.excluded
	`
	_, err := r.q.ExecContext(ctx, query, entry.AttendeeID, entry.Excluded, entry.AddedAt)
	return err
}

// AddSelectionIfAbsent inserts a selection entry only when the attendee is
// not already queued. Existing entries keep their exclusion state.
func (r *Repository) AddSelectionIfAbsent(ctx context.Context, entry *models.SelectionEntry) error {
	if entry.AddedAt == 0 {
		entry.AddedAt = nowMillis()
	}
	query := `
	INSERT INTO selection_queue (attendee_id, excluded, added_at)
	VALUES (?, ?, ?)
	ON CONFLICT(attendee_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, entry.AttendeeID, entry.Excluded, entry.AddedAt)
	return err
}

// ListSelection returns the selection queue in insertion order.
func (r *Repository) ListSelection(ctx context.Context) ([]*models.SelectionEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT attendee_id, excluded, added_at FROM selection_queue ORDER BY added_at, attendee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SelectionEntry
	for rows.Next() {
		var e models.SelectionEntry
		if err := rows.Scan(&e.AttendeeID, &e.Excluded, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ClearActiveSelection removes only the non-excluded entries. Excluded
// entries persist into the next session.
func (r *Repository) ClearActiveSelection(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM selection_queue WHERE excluded = 0`)
	return err
}

// RemoveSelection deletes one selection entry.
func (r *Repository) RemoveSelection(ctx context.Context, attendeeID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM selection_queue WHERE attendee_id = ?`, attendeeID)
	return err
}

// =====================================================
// Sync Job Operations
// =====================================================

// EnqueueJob appends a push job to the durable queue.
func (r *Repository) EnqueueJob(ctx context.Context, job *models.SyncJob) error {
	if job.CreatedAt == 0 {
		job.CreatedAt = nowMillis()
	}
	query := `
	INSERT INTO sync_jobs (event_id, event_title, payload, created_at)
	VALUES (?, ?, ?, ?)
	`
	result, err := r.q.ExecContext(ctx, query, job.EventID, job.EventTitle, string(job.Payload), job.CreatedAt)
	if err != nil {
		return err
	}
	job.JobID, _ = result.LastInsertId()
	return nil
}

// OldestJob returns the job at the head of the queue, or nil when empty.
// Ordering is creation order with the row id as tiebreaker, which is what
// gives push-ordering guarantees across commits.
func (r *Repository) OldestJob(ctx context.Context) (*models.SyncJob, error) {
	query := `
	SELECT job_id, event_id, event_title, payload, created_at
	FROM sync_jobs ORDER BY created_at, job_id LIMIT 1
	`
	var job models.SyncJob
	var payload string
	err := r.q.QueryRowContext(ctx, query).Scan(
		&job.JobID, &job.EventID, &job.EventTitle, &payload, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Payload = []byte(payload)
	return &job, nil
}

// DeleteJob removes a job after a terminal outcome.
func (r *Repository) DeleteJob(ctx context.Context, jobID int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM sync_jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountJobs returns the number of pending push jobs.
func (r *Repository) CountJobs(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_jobs`).Scan(&count)
	return count, err
}

// =====================================================
// Queue Archive Operations
// =====================================================

// InsertArchive appends an archive snapshot and prunes the oldest entries
// beyond the FIFO cap. Both steps run in the caller's scope; use RunInTx to
// keep the cap invariant atomic with respect to concurrent readers.
func (r *Repository) InsertArchive(ctx context.Context, a *models.QueueArchive) error {
	if a.Timestamp == 0 {
		a.Timestamp = nowMillis()
	}
	query := `
	INSERT INTO queue_archives (event_id, event_title, timestamp, data)
	VALUES (?, ?, ?, ?)
	`
	result, err := r.q.ExecContext(ctx, query, a.EventID, a.EventTitle, a.Timestamp, string(a.Data))
	if err != nil {
		return err
	}
	a.ID, _ = result.LastInsertId()

	// Delete oldest while over capacity, ordered by timestamp ascending.
	prune := `
	DELETE FROM queue_archives WHERE id IN (
		SELECT id FROM queue_archives
		ORDER BY timestamp DESC, id DESC
		LIMIT -1 OFFSET ?
	)
	`
	_, err = r.q.ExecContext(ctx, prune, archiveCap)
	return err
}

// GetArchive retrieves one archive entry by id.
func (r *Repository) GetArchive(ctx context.Context, id int64) (*models.QueueArchive, error) {
	query := `SELECT id, event_id, event_title, timestamp, data FROM queue_archives WHERE id = ?`
	var a models.QueueArchive
	var data string
	err := r.q.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.EventID, &a.EventTitle, &a.Timestamp, &data)
	if err != nil {
		return nil, err
	}
	a.Data = []byte(data)
	return &a, nil
}

// ListArchives returns all archive entries, newest first.
func (r *Repository) ListArchives(ctx context.Context) ([]*models.QueueArchive, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, event_id, event_title, timestamp, data FROM queue_archives ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []*models.QueueArchive
	for rows.Next() {
		var a models.QueueArchive
		var data string
		if err := rows.Scan(&a.ID, &a.EventID, &a.EventTitle, &a.Timestamp, &data); err != nil {
			return nil, err
		}
		a.Data = []byte(data)
		archives = append(archives, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return archives, nil
}

// =====================================================
// Sync Log Operations
// =====================================================

// AppendSyncLog appends one audit row and prunes the table to its cap.
func (r *Repository) AppendSyncLog(ctx context.Context, entry *models.SyncLog) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = nowMillis()
	}
	query := `
	INSERT INTO sync_logs (trigger_id, trigger_type, operation, params, status, error_message, stack_trace, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.q.ExecContext(ctx, query, entry.TriggerID, entry.TriggerType, entry.Operation,
		entry.Params, entry.Status, entry.ErrorMessage, entry.StackTrace, entry.Timestamp)
	if err != nil {
		return err
	}
	entry.ID, _ = result.LastInsertId()

	prune := `
	DELETE FROM sync_logs WHERE id IN (
		SELECT id FROM sync_logs ORDER BY id DESC LIMIT -1 OFFSET ?
	)
	`
	_, err = r.q.ExecContext(ctx, prune, syncLogCap)
	return err
}

// RecentSyncLogs returns the most recent audit rows, newest first.
func (r *Repository) RecentSyncLogs(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	rows, err := r.q.QueryContext(ctx, `
	SELECT id, trigger_id, trigger_type, operation, params, status, error_message, stack_trace, timestamp
	FROM sync_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		err := rows.Scan(&l.ID, &l.TriggerID, &l.TriggerType, &l.Operation, &l.Params,
			&l.Status, &l.ErrorMessage, &l.StackTrace, &l.Timestamp)
		if err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
