package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rollcallhq/rollcall/backend/internal/models"
)

// DemoProvider is an in-memory Provider used for demo mode and tests.
// It mimics the live adapter's worksheet semantics: one sheet per event,
// rows appended in push order, cursors counting data rows.
type DemoProvider struct {
	mu sync.Mutex

	attendees []models.Attendee
	groups    []models.Group
	mappings  []models.AttendeeGroupMapping
	version   int

	// sheets holds the per-event rows, keyed by cloud event id.
	sheets     map[string][]PulledRecord
	sheetTitle map[string]string // cloud id -> worksheet title
	nextID     int
}

// NewDemoProvider creates an empty in-memory provider.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{
		sheets:     make(map[string][]PulledRecord),
		sheetTitle: make(map[string]string),
	}
}

// NewSeededDemoProvider creates a provider preloaded with a small master
// list so demo mode is usable end to end.
func NewSeededDemoProvider() *DemoProvider {
	p := NewDemoProvider()
	p.SeedAttendee(models.Attendee{ID: "demo-001", FullName: "Ada Lovelace", ShortName: "Ada"})
	p.SeedAttendee(models.Attendee{ID: "demo-002", FullName: "Grace Hopper", ShortName: "Grace"})
	p.SeedAttendee(models.Attendee{ID: "demo-003", FullName: "Alan Turing", ShortName: "Alan"})
	p.SeedGroup(models.Group{GroupID: "demo-grp-1", Name: "Pioneers"})
	p.SeedMapping("demo-001", "demo-grp-1")
	p.SeedMapping("demo-002", "demo-grp-1")
	return p
}

// SeedAttendee adds or replaces an attendee on the in-memory master list.
func (p *DemoProvider) SeedAttendee(a models.Attendee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.attendees {
		if p.attendees[i].ID == a.ID {
			p.attendees[i] = a
			p.version++
			return
		}
	}
	p.attendees = append(p.attendees, a)
	p.version++
}

// RemoveAttendee drops an attendee from the in-memory master list.
func (p *DemoProvider) RemoveAttendee(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.attendees {
		if p.attendees[i].ID == id {
			p.attendees = append(p.attendees[:i], p.attendees[i+1:]...)
			p.version++
			return
		}
	}
}

// SeedGroup adds or replaces a group.
func (p *DemoProvider) SeedGroup(g models.Group) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.groups {
		if p.groups[i].GroupID == g.GroupID {
			p.groups[i] = g
			p.version++
			return
		}
	}
	p.groups = append(p.groups, g)
	p.version++
}

// SeedMapping adds an attendee-group edge.
func (p *DemoProvider) SeedMapping(attendeeID, groupID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mappings = append(p.mappings, models.AttendeeGroupMapping{AttendeeID: attendeeID, GroupID: groupID})
	p.version++
}

// SeedRow appends a row directly to an event's sheet, as if another device
// had pushed it. Creates the sheet when absent and returns its cloud id.
func (p *DemoProvider) SeedRow(title string, rec PulledRecord) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.cloudIDForLocked(title)
	p.sheets[id] = append(p.sheets[id], rec)
	return id
}

// RowCount returns the number of rows on the sheet with the given title.
func (p *DemoProvider) RowCount(title string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.sheetTitle {
		if t == title {
			return len(p.sheets[id])
		}
	}
	return 0
}

func (p *DemoProvider) cloudIDForLocked(title string) string {
	for id, t := range p.sheetTitle {
		if t == title {
			return id
		}
	}
	p.nextID++
	id := fmt.Sprintf("demo-sheet-%d", p.nextID)
	p.sheetTitle[id] = title
	p.sheets[id] = nil
	return id
}

// PushAttendance implements Provider.
func (p *DemoProvider) PushAttendance(ctx context.Context, event *models.Event, records []models.AttendanceRecord, scope Scope, failIfMissing bool) PushResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	mapped := event.CloudEventID != ""
	var id string
	if mapped {
		id = event.CloudEventID
		if _, ok := p.sheets[id]; !ok {
			err := fmt.Errorf("worksheet %s not found", id)
			scope.Record("pushAttendance", event.Title, err)
			return Failure(err.Error(), !failIfMissing)
		}
	} else {
		id = p.cloudIDForLocked(event.Title)
	}

	for _, rec := range records {
		p.sheets[id] = append(p.sheets[id], PulledRecord{
			AttendeeID: rec.AttendeeID,
			State:      rec.State,
			Timestamp:  rec.Timestamp,
		})
	}

	scope.Record("pushAttendance", fmt.Sprintf("%s rows=%d", event.Title, len(records)), nil)

	result := PushResult{Kind: PushOK, NewCursor: len(p.sheets[id])}
	if !mapped {
		result.Kind = PushOKWithMapping
		result.CloudEventID = id
	}
	return result
}

// FetchMasterAttendees implements Provider.
func (p *DemoProvider) FetchMasterAttendees(ctx context.Context, scope Scope) ([]models.Attendee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope.Record("fetchMasterAttendees", fmt.Sprintf("count=%d", len(p.attendees)), nil)
	out := make([]models.Attendee, len(p.attendees))
	copy(out, p.attendees)
	return out, nil
}

// FetchMasterGroups implements Provider.
func (p *DemoProvider) FetchMasterGroups(ctx context.Context, scope Scope) ([]models.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope.Record("fetchMasterGroups", fmt.Sprintf("count=%d", len(p.groups)), nil)
	out := make([]models.Group, len(p.groups))
	copy(out, p.groups)
	return out, nil
}

// FetchAttendeeGroupMappings implements Provider.
func (p *DemoProvider) FetchAttendeeGroupMappings(ctx context.Context, scope Scope) ([]models.AttendeeGroupMapping, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope.Record("fetchAttendeeGroupMappings", fmt.Sprintf("count=%d", len(p.mappings)), nil)
	out := make([]models.AttendeeGroupMapping, len(p.mappings))
	copy(out, p.mappings)
	return out, nil
}

// FetchMasterListVersion implements Provider.
func (p *DemoProvider) FetchMasterListVersion(ctx context.Context, scope Scope) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope.Record("fetchMasterListVersion", "", nil)
	return fmt.Sprintf("demo-v%d", p.version), nil
}

// FetchAttendanceForEvent implements Provider.
func (p *DemoProvider) FetchAttendanceForEvent(ctx context.Context, event *models.Event, startRowIndex int, scope Scope) ([]PulledRecord, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rows []PulledRecord
	if event.CloudEventID != "" {
		rows = p.sheets[event.CloudEventID]
	} else {
		for id, t := range p.sheetTitle {
			if t == event.Title {
				rows = p.sheets[id]
				break
			}
		}
	}

	if startRowIndex >= len(rows) {
		scope.Record("fetchAttendanceForEvent", fmt.Sprintf("%s start=%d rows=0", event.Title, startRowIndex), nil)
		return nil, startRowIndex, nil
	}

	out := make([]PulledRecord, len(rows)-startRowIndex)
	copy(out, rows[startRowIndex:])
	scope.Record("fetchAttendanceForEvent",
		fmt.Sprintf("%s start=%d rows=%d", event.Title, startRowIndex, len(out)), nil)
	return out, len(rows), nil
}

// FetchRecentEvents implements Provider.
func (p *DemoProvider) FetchRecentEvents(ctx context.Context, daysLookback int, scope Scope) ([]models.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysLookback)
	var events []models.Event
	for id, title := range p.sheetTitle {
		e := models.Event{Title: title, CloudEventID: id}
		if t, ok := e.TitleTime(); ok && t.Before(cutoff) {
			continue
		}
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Title < events[j].Title })

	scope.Record("fetchRecentEvents", fmt.Sprintf("days=%d count=%d", daysLookback, len(events)), nil)
	return events, nil
}
