// Package db provides CRUD repository operations for the Rollcall data models.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// Repository provides the durable-store operations for all models. It is the
// single source of truth shared by UI readers and the sync workers; every
// mutation goes through it.
type Repository struct {
	db *sql.DB
	q  DBTX
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// =====================================================
// Attendee Operations
// =====================================================

// UpsertAttendee inserts or overwrites an attendee from the master list.
// A successful upsert always clears the orphan flag: the entity was just
// seen on the cloud.
func (r *Repository) UpsertAttendee(ctx context.Context, a *models.Attendee) error {
	now := nowMillis()
	query := `
	INSERT INTO attendees (id, full_name, short_name, not_exist_on_cloud, created_at, updated_at)
	VALUES (?, ?, ?, 0, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		full_name = excluded.full_name,
		short_name = excluded.short_name,
		not_exist_on_cloud = 0,
		updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query, a.ID, a.FullName, a.ShortName, now, now)
	return err
}

// EnsureAttendee creates a placeholder attendee when the id is unknown.
// The placeholder is flagged not_exist_on_cloud until the next master-list
// sync reconciles it. Existing rows are left untouched.
func (r *Repository) EnsureAttendee(ctx context.Context, id, fullName string) error {
	if fullName == "" {
		fullName = id
	}
	now := nowMillis()
	query := `
	INSERT INTO attendees (id, full_name, short_name, not_exist_on_cloud, created_at, updated_at)
	VALUES (?, ?, '', 1, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, id, fullName, now, now)
	return err
}

// GetAttendee retrieves an attendee by ID.
func (r *Repository) GetAttendee(ctx context.Context, id string) (*models.Attendee, error) {
	query := `
	SELECT id, full_name, short_name, not_exist_on_cloud, created_at, updated_at
	FROM attendees WHERE id = ?
	`
	var a models.Attendee
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.FullName, &a.ShortName, &a.NotExistOnCloud, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttendees returns all attendees ordered by full name.
func (r *Repository) ListAttendees(ctx context.Context) ([]*models.Attendee, error) {
	query := `
	SELECT id, full_name, short_name, not_exist_on_cloud, created_at, updated_at
	FROM attendees ORDER BY full_name
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendees []*models.Attendee
	for rows.Next() {
		var a models.Attendee
		err := rows.Scan(&a.ID, &a.FullName, &a.ShortName, &a.NotExistOnCloud, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendees, nil
}

// MarkAttendeesMissing flags every local attendee whose id is not in keepIDs
// as not existing on the cloud. Flagged rows are never deleted here; deletion
// is the explicit purge operation.
func (r *Repository) MarkAttendeesMissing(ctx context.Context, keepIDs []string) error {
	now := nowMillis()
	if len(keepIDs) == 0 {
		_, err := r.q.ExecContext(ctx,
			`UPDATE attendees SET not_exist_on_cloud = 1, updated_at = ? WHERE not_exist_on_cloud = 0`, now)
		return err
	}

	args := make([]any, 0, len(keepIDs)+1)
	args = append(args, now)
	for _, id := range keepIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(
		`UPDATE attendees SET not_exist_on_cloud = 1, updated_at = ? WHERE not_exist_on_cloud = 0 AND id NOT IN (%s)`,
		placeholders(len(keepIDs)))
	_, err := r.q.ExecContext(ctx, query, args...)
	return err
}

// AttendeeInUse reports whether the attendee has attendance records or group
// mappings referencing it.
func (r *Repository) AttendeeInUse(ctx context.Context, id string) (bool, error) {
	query := `
	SELECT EXISTS(SELECT 1 FROM attendance_records WHERE attendee_id = ?)
	    OR EXISTS(SELECT 1 FROM attendee_group_mappings WHERE attendee_id = ?)
	`
	var inUse bool
	err := r.q.QueryRowContext(ctx, query, id, id).Scan(&inUse)
	return inUse, err
}

// DeleteAttendee removes one attendee row.
func (r *Repository) DeleteAttendee(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM attendees WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PurgeMissingAttendees deletes every attendee currently flagged as missing
// from the cloud. Returns the number of rows removed.
func (r *Repository) PurgeMissingAttendees(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM attendees WHERE not_exist_on_cloud = 1`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =====================================================
// Group Operations
// =====================================================

// UpsertGroup inserts or overwrites a group from the master list and clears
// its orphan flag.
func (r *Repository) UpsertGroup(ctx context.Context, g *models.Group) error {
	now := nowMillis()
	query := `
	INSERT INTO groups (group_id, name, not_exist_on_cloud, created_at, updated_at)
	VALUES (?, ?, 0, ?, ?)
	ON CONFLICT(group_id) DO UPDATE SET
		name = excluded.name,
		not_exist_on_cloud = 0,
		updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query, g.GroupID, g.Name, now, now)
	return err
}

// EnsureGroup creates a placeholder group when the id is unknown.
func (r *Repository) EnsureGroup(ctx context.Context, id, name string) error {
	if name == "" {
		name = id
	}
	now := nowMillis()
	query := `
	INSERT INTO groups (group_id, name, not_exist_on_cloud, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?)
	ON CONFLICT(group_id) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, id, name, now, now)
	return err
}

// GetGroup retrieves a group by ID.
func (r *Repository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT group_id, name, not_exist_on_cloud, created_at, updated_at FROM groups WHERE group_id = ?`
	var g models.Group
	err := r.q.QueryRowContext(ctx, query, id).Scan(&g.GroupID, &g.Name, &g.NotExistOnCloud, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns all groups ordered by name.
func (r *Repository) ListGroups(ctx context.Context) ([]*models.Group, error) {
	query := `SELECT group_id, name, not_exist_on_cloud, created_at, updated_at FROM groups ORDER BY name`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		var g models.Group
		err := rows.Scan(&g.GroupID, &g.Name, &g.NotExistOnCloud, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// MarkGroupsMissing flags every local group whose id is not in keepIDs.
func (r *Repository) MarkGroupsMissing(ctx context.Context, keepIDs []string) error {
	now := nowMillis()
	if len(keepIDs) == 0 {
		_, err := r.q.ExecContext(ctx,
			`UPDATE groups SET not_exist_on_cloud = 1, updated_at = ? WHERE not_exist_on_cloud = 0`, now)
		return err
	}

	args := make([]any, 0, len(keepIDs)+1)
	args = append(args, now)
	for _, id := range keepIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(
		`UPDATE groups SET not_exist_on_cloud = 1, updated_at = ? WHERE not_exist_on_cloud = 0 AND group_id NOT IN (%s)`,
		placeholders(len(keepIDs)))
	_, err := r.q.ExecContext(ctx, query, args...)
	return err
}

// GroupInUse reports whether the group still has mappings referencing it.
func (r *Repository) GroupInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM attendee_group_mappings WHERE group_id = ?)`, id).Scan(&inUse)
	return inUse, err
}

// DeleteGroup removes one group row.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM groups WHERE group_id = ?`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PurgeMissingGroups deletes every group currently flagged as missing from
// the cloud. Returns the number of rows removed.
func (r *Repository) PurgeMissingGroups(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM groups WHERE not_exist_on_cloud = 1`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =====================================================
// Mapping Operations
// =====================================================

// ReplaceMappings replaces the whole local mapping table with the given set.
// Mappings are fully remote-authoritative, so there is no orphan marking.
func (r *Repository) ReplaceMappings(ctx context.Context, mappings []models.AttendeeGroupMapping) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM attendee_group_mappings`); err != nil {
		return err
	}
	for _, m := range mappings {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO attendee_group_mappings (attendee_id, group_id) VALUES (?, ?)
			 ON CONFLICT(attendee_id, group_id) DO NOTHING`,
			m.AttendeeID, m.GroupID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListMappings returns all attendee-group mappings.
func (r *Repository) ListMappings(ctx context.Context) ([]models.AttendeeGroupMapping, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT attendee_id, group_id FROM attendee_group_mappings ORDER BY group_id, attendee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.AttendeeGroupMapping
	for rows.Next() {
		var m models.AttendeeGroupMapping
		if err := rows.Scan(&m.AttendeeID, &m.GroupID); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// =====================================================
// Event Operations
// =====================================================

// CreateEvent creates a new locally generated event.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := nowMillis()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
	INSERT INTO events (id, title, date, time, cloud_event_id, last_processed_row_index,
		not_exist_on_cloud, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query, e.ID, e.Title, e.Date, e.Time, e.CloudEventID,
		e.LastProcessedRowIndex, e.NotExistOnCloud, e.CreatedAt, e.UpdatedAt)
	return err
}

const eventColumns = `id, title, date, time, cloud_event_id, last_processed_row_index, not_exist_on_cloud, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.CloudEventID,
		&e.LastProcessedRowIndex, &e.NotExistOnCloud, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent retrieves an event by ID.
func (r *Repository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return scanEvent(r.q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
}

// GetEventByTitle retrieves an event by its title (the remote worksheet name).
func (r *Repository) GetEventByTitle(ctx context.Context, title string) (*models.Event, error) {
	return scanEvent(r.q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE title = ?`, title))
}

// GetEventByCloudID retrieves an event by its remote identifier.
func (r *Repository) GetEventByCloudID(ctx context.Context, cloudID string) (*models.Event, error) {
	return scanEvent(r.q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE cloud_event_id = ? AND cloud_event_id != ''`, cloudID))
}

// ListEvents returns all events, newest title first.
func (r *Repository) ListEvents(ctx context.Context) ([]*models.Event, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY title DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// UpdateEventCursor sets the last processed row index for one event.
func (r *Repository) UpdateEventCursor(ctx context.Context, id string, cursor int) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE events SET last_processed_row_index = ?, updated_at = ? WHERE id = ?`,
		cursor, nowMillis(), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEventCloudID persists the remote identifier assigned on first push.
func (r *Repository) SetEventCloudID(ctx context.Context, id, cloudID string) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE events SET cloud_event_id = ?, not_exist_on_cloud = 0, updated_at = ? WHERE id = ?`,
		cloudID, nowMillis(), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEventMissing sets or clears the orphan flag on one event.
func (r *Repository) SetEventMissing(ctx context.Context, id string, missing bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE events SET not_exist_on_cloud = ?, updated_at = ? WHERE id = ?`,
		missing, nowMillis(), id)
	return err
}

// DeleteEvent removes an event together with its attendance records.
func (r *Repository) DeleteEvent(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM attendance_records WHERE event_id = ?`, id); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

// =====================================================
// Attendance Record Operations
// =====================================================

// UpsertAttendanceRecord applies the last-writer-wins rule: the stored record
// is only overwritten when the incoming timestamp is strictly greater. The
// rule holds for local commits and pulled remote rows alike, which gives a
// total order over record mutations regardless of origin.
func (r *Repository) UpsertAttendanceRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	query := `
	INSERT INTO attendance_records (event_id, attendee_id, state, timestamp)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(event_id, attendee_id) DO UPDATE SET
		state = excluded.state,
		timestamp = excluded.timestamp
	WHERE excluded.timestamp > attendance_records.timestamp
	`
	_, err := r.q.ExecContext(ctx, query, rec.EventID, rec.AttendeeID, rec.State, rec.Timestamp)
	return err
}

// GetAttendanceRecord retrieves one record by its composite key.
func (r *Repository) GetAttendanceRecord(ctx context.Context, eventID, attendeeID string) (*models.AttendanceRecord, error) {
	query := `
	SELECT event_id, attendee_id, state, timestamp
	FROM attendance_records WHERE event_id = ? AND attendee_id = ?
	`
	var rec models.AttendanceRecord
	err := r.q.QueryRowContext(ctx, query, eventID, attendeeID).Scan(
		&rec.EventID, &rec.AttendeeID, &rec.State, &rec.Timestamp)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAttendanceRecords returns all records for one event.
func (r *Repository) ListAttendanceRecords(ctx context.Context, eventID string) ([]*models.AttendanceRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT event_id, attendee_id, state, timestamp FROM attendance_records WHERE event_id = ? ORDER BY attendee_id`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.EventID, &rec.AttendeeID, &rec.State, &rec.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// =====================================================
// Meta Operations
// =====================================================

// GetMeta returns the stored value for key, or "" when absent.
func (r *Repository) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta stores a key/value pair, overwriting any previous value.
func (r *Repository) SetMeta(ctx context.Context, key, value string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
