package sync

import (
	"context"
	"testing"

	"github.com/rollcallhq/rollcall/backend/internal/audit"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

// Exercises the whole loop against the in-memory provider: reconcile the
// seeded master list, commit a selection, push it, then pull back a row
// another device recorded.
func TestEngineEndToEnd(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	provider := remote.NewSeededDemoProvider()
	engine := NewEngine(repo, provider, false)

	summary := engine.Reconcile(ctx, audit.TriggerLogin, true, "")
	if !summary.OK() {
		t.Fatalf("reconcile failed: %s", summary.String())
	}
	attendees, err := repo.ListAttendees(ctx)
	if err != nil {
		t.Fatalf("list attendees: %v", err)
	}
	if len(attendees) != 3 {
		t.Fatalf("attendee count = %d, want 3 from the seeded list", len(attendees))
	}

	event := mustCreateEvent(t, repo, "251103 1900 Choir")
	mustSelect(t, repo, "demo-001", false, 1)
	mustSelect(t, repo, "demo-002", false, 2)
	if err := engine.Queue().Commit(ctx, event.ID, models.StatePresent, 5000); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if err := engine.SyncCycle(ctx, audit.TriggerManual); err != nil {
		t.Fatalf("sync cycle failed: %v", err)
	}
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Fatalf("jobs left after cycle: %d", n)
	}
	got, _ := repo.GetEvent(ctx, event.ID)
	if got.CloudEventID == "" {
		t.Fatal("first push should have established the cloud mapping")
	}
	if got.LastProcessedRowIndex != 2 {
		t.Errorf("cursor = %d, want 2", got.LastProcessedRowIndex)
	}

	// Another device appends a row; the next cycle pulls it in.
	provider.SeedRow(event.Title, remote.PulledRecord{
		AttendeeID: "demo-003", State: models.StateAbsent, Timestamp: 6000,
	})
	if err := engine.SyncCycle(ctx, audit.TriggerScheduled); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	rec, err := repo.GetAttendanceRecord(ctx, event.ID, "demo-003")
	if err != nil {
		t.Fatalf("pulled record missing: %v", err)
	}
	if rec.State != models.StateAbsent {
		t.Errorf("pulled state = %s", rec.State)
	}
	got, _ = repo.GetEvent(ctx, event.ID)
	if got.LastProcessedRowIndex != 3 {
		t.Errorf("cursor after pull = %d, want 3", got.LastProcessedRowIndex)
	}

	logs, err := engine.Status(ctx, 50)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(logs) == 0 {
		t.Error("cycles should have left audit rows")
	}
}

// In demo mode the commit writes records and the archive but no job, so a
// cycle has nothing to push and nothing pending blocks the pull.
func TestEngineDemoModeCycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	provider := remote.NewSeededDemoProvider()
	engine := NewEngine(repo, provider, true)

	event := mustCreateEvent(t, repo, "251103 1900 Choir")
	mustSelect(t, repo, "demo-001", false, 1)
	if err := engine.Queue().Commit(ctx, event.ID, models.StatePresent, 5000); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Fatalf("demo commit enqueued %d jobs", n)
	}

	if err := engine.SyncCycle(ctx, audit.TriggerManual); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	records, _ := repo.ListAttendanceRecords(ctx, event.ID)
	if len(records) != 1 {
		t.Errorf("record count = %d, want 1", len(records))
	}
}
