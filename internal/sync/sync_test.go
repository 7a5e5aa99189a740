package sync

import (
	"context"
	"testing"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

func newTestRepo(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db.NewRepository(database.DB)
}

func mustCreateEvent(t *testing.T, repo *db.Repository, title string) *models.Event {
	t.Helper()
	e := &models.Event{Title: title, Date: "2025-11-03", Time: "19:00"}
	if err := repo.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	return e
}

func mustSelect(t *testing.T, repo *db.Repository, id string, excluded bool, at int64) {
	t.Helper()
	err := repo.AddSelection(context.Background(),
		&models.SelectionEntry{AttendeeID: id, Excluded: excluded, AddedAt: at})
	if err != nil {
		t.Fatalf("failed to add selection: %v", err)
	}
}

// nopScope discards audit records in tests that don't inspect them.
type nopScope struct{}

func (nopScope) Record(operation, params string, err error) {}

// scriptProvider implements remote.Provider with per-call hooks, for driving
// the workers through failure scenarios the demo provider cannot produce.
type scriptProvider struct {
	pushFn          func(event *models.Event, records []models.AttendanceRecord) remote.PushResult
	fetchRowsFn     func(event *models.Event, start int) ([]remote.PulledRecord, int, error)
	attendees       []models.Attendee
	attendeesErr    error
	groups          []models.Group
	groupsErr       error
	mappings        []models.AttendeeGroupMapping
	mappingsErr     error
	recentEvents    []models.Event
	recentEventsErr error
	version         string

	pushCalls []string // event titles in call order
}

func (p *scriptProvider) PushAttendance(ctx context.Context, event *models.Event, records []models.AttendanceRecord, scope remote.Scope, failIfMissing bool) remote.PushResult {
	p.pushCalls = append(p.pushCalls, event.Title)
	if p.pushFn == nil {
		return remote.PushResult{Kind: remote.PushOK, NewCursor: event.LastProcessedRowIndex + len(records)}
	}
	return p.pushFn(event, records)
}

func (p *scriptProvider) FetchMasterAttendees(ctx context.Context, scope remote.Scope) ([]models.Attendee, error) {
	return p.attendees, p.attendeesErr
}

func (p *scriptProvider) FetchMasterGroups(ctx context.Context, scope remote.Scope) ([]models.Group, error) {
	return p.groups, p.groupsErr
}

func (p *scriptProvider) FetchAttendeeGroupMappings(ctx context.Context, scope remote.Scope) ([]models.AttendeeGroupMapping, error) {
	return p.mappings, p.mappingsErr
}

func (p *scriptProvider) FetchMasterListVersion(ctx context.Context, scope remote.Scope) (string, error) {
	return p.version, nil
}

func (p *scriptProvider) FetchAttendanceForEvent(ctx context.Context, event *models.Event, startRowIndex int, scope remote.Scope) ([]remote.PulledRecord, int, error) {
	if p.fetchRowsFn == nil {
		return nil, startRowIndex, nil
	}
	return p.fetchRowsFn(event, startRowIndex)
}

func (p *scriptProvider) FetchRecentEvents(ctx context.Context, daysLookback int, scope remote.Scope) ([]models.Event, error) {
	return p.recentEvents, p.recentEventsErr
}
