package sync

import (
	"context"
	"testing"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

func enqueue(t *testing.T, repo *db.Repository, eventID, title string, createdAt int64, items []PayloadItem) {
	t.Helper()
	data, err := EncodePayload(items)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	job := &models.SyncJob{EventID: eventID, EventTitle: title, Payload: data, CreatedAt: createdAt}
	if err := repo.EnqueueJob(context.Background(), job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestPushDrainsInCreationOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e1 := mustCreateEvent(t, repo, "251103 1900 Choir")
	e2 := mustCreateEvent(t, repo, "251104 1900 Band")

	enqueue(t, repo, e1.ID, e1.Title, 100, []PayloadItem{{ID: "a1", State: models.StatePresent, Time: 100}})
	enqueue(t, repo, e2.ID, e2.Title, 200, []PayloadItem{{ID: "a2", State: models.StatePresent, Time: 200}})
	enqueue(t, repo, e1.ID, e1.Title, 300, []PayloadItem{{ID: "a3", State: models.StatePresent, Time: 300}})

	provider := &scriptProvider{}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != PushDrained {
		t.Fatalf("outcome = %v, want drained", outcome)
	}

	want := []string{e1.Title, e2.Title, e1.Title}
	if len(provider.pushCalls) != len(want) {
		t.Fatalf("push calls = %v, want %v", provider.pushCalls, want)
	}
	for i := range want {
		if provider.pushCalls[i] != want[i] {
			t.Errorf("push order[%d] = %s, want %s", i, provider.pushCalls[i], want[i])
		}
	}
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Errorf("jobs left after drain: %d", n)
	}
}

func TestPushAdvancesCursorWhenContiguous(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	event := mustCreateEvent(t, repo, "251103 1900 Choir")

	enqueue(t, repo, event.ID, event.Title, 100, []PayloadItem{
		{ID: "a1", State: models.StatePresent, Time: 100},
		{ID: "a2", State: models.StatePresent, Time: 100},
	})

	provider := &scriptProvider{
		pushFn: func(e *models.Event, records []models.AttendanceRecord) remote.PushResult {
			return remote.PushResult{
				Kind:         remote.PushOKWithMapping,
				CloudEventID: "sheet-42",
				NewCursor:    e.LastProcessedRowIndex + len(records),
			}
		},
	}
	worker := NewPushWorker(repo, provider)
	if _, err := worker.Run(ctx, nopScope{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, err := repo.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.LastProcessedRowIndex != 2 {
		t.Errorf("cursor = %d, want 2", got.LastProcessedRowIndex)
	}
	if got.CloudEventID != "sheet-42" {
		t.Errorf("cloud id = %q, want sheet-42", got.CloudEventID)
	}
}

func TestPushLeavesCursorOnGap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	event := mustCreateEvent(t, repo, "251103 1900 Choir")

	enqueue(t, repo, event.ID, event.Title, 100, []PayloadItem{
		{ID: "a1", State: models.StatePresent, Time: 100},
	})

	// Another device appended two rows between our push and the response:
	// the reported cursor jumps past old+pushed.
	provider := &scriptProvider{
		pushFn: func(e *models.Event, records []models.AttendanceRecord) remote.PushResult {
			return remote.PushResult{Kind: remote.PushOK, NewCursor: e.LastProcessedRowIndex + len(records) + 2}
		},
	}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != PushDrained {
		t.Fatalf("outcome = %v, want drained", outcome)
	}

	got, _ := repo.GetEvent(ctx, event.ID)
	if got.LastProcessedRowIndex != 0 {
		t.Errorf("cursor = %d, want 0 (untouched on gap)", got.LastProcessedRowIndex)
	}
	// The job itself is still done.
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Errorf("jobs left: %d", n)
	}
}

func TestPushRetryableFailureStopsAndKeepsJob(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e1 := mustCreateEvent(t, repo, "251103 1900 Choir")
	e2 := mustCreateEvent(t, repo, "251104 1900 Band")

	enqueue(t, repo, e1.ID, e1.Title, 100, []PayloadItem{{ID: "a1", State: models.StatePresent, Time: 100}})
	enqueue(t, repo, e2.ID, e2.Title, 200, []PayloadItem{{ID: "a2", State: models.StatePresent, Time: 200}})

	provider := &scriptProvider{
		pushFn: func(e *models.Event, records []models.AttendanceRecord) remote.PushResult {
			return remote.Failure("network down", true)
		},
	}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if outcome != PushRetry {
		t.Fatalf("outcome = %v, want retry", outcome)
	}
	if err == nil {
		t.Fatal("expected an error")
	}

	// Both jobs remain; the second was never attempted.
	if n, _ := repo.CountJobs(ctx); n != 2 {
		t.Errorf("jobs left = %d, want 2", n)
	}
	if len(provider.pushCalls) != 1 {
		t.Errorf("push calls = %d, want 1 (no skipping ahead)", len(provider.pushCalls))
	}
}

func TestPushFatalFailureDropsJobAndMarksEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	event := mustCreateEvent(t, repo, "251103 1900 Choir")

	enqueue(t, repo, event.ID, event.Title, 100, []PayloadItem{{ID: "a1", State: models.StatePresent, Time: 100}})

	provider := &scriptProvider{
		pushFn: func(e *models.Event, records []models.AttendanceRecord) remote.PushResult {
			return remote.Failure("worksheet deleted", false)
		},
	}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if outcome != PushFatal {
		t.Fatalf("outcome = %v, want fatal", outcome)
	}
	if err == nil {
		t.Fatal("expected an error")
	}

	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Errorf("jobs left = %d, want 0 (fatal job discarded)", n)
	}
	got, _ := repo.GetEvent(ctx, event.ID)
	if !got.NotExistOnCloud {
		t.Error("event should be flagged missing after fatal push")
	}
}

func TestPushDropsJobForDeletedEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e1 := mustCreateEvent(t, repo, "251103 1900 Choir")
	e2 := mustCreateEvent(t, repo, "251104 1900 Band")

	enqueue(t, repo, e1.ID, e1.Title, 100, []PayloadItem{{ID: "a1", State: models.StatePresent, Time: 100}})
	enqueue(t, repo, e2.ID, e2.Title, 200, []PayloadItem{{ID: "a2", State: models.StatePresent, Time: 200}})

	// The first event is deleted locally while its job waits.
	if err := repo.DeleteEvent(ctx, e1.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	provider := &scriptProvider{}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != PushDrained {
		t.Fatalf("outcome = %v, want drained", outcome)
	}

	// Only the surviving event was pushed; the orphaned job was dropped.
	if len(provider.pushCalls) != 1 || provider.pushCalls[0] != e2.Title {
		t.Errorf("push calls = %v, want only %s", provider.pushCalls, e2.Title)
	}
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Errorf("jobs left: %d", n)
	}
}

func TestPushDropsCorruptPayload(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	event := mustCreateEvent(t, repo, "251103 1900 Choir")

	job := &models.SyncJob{EventID: event.ID, EventTitle: event.Title, Payload: []byte("{not json"), CreatedAt: 100}
	if err := repo.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	provider := &scriptProvider{}
	worker := NewPushWorker(repo, provider)
	outcome, err := worker.Run(ctx, nopScope{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome != PushDrained {
		t.Fatalf("outcome = %v, want drained", outcome)
	}
	if len(provider.pushCalls) != 0 {
		t.Errorf("corrupt payload reached the provider: %v", provider.pushCalls)
	}
	if n, _ := repo.CountJobs(ctx); n != 0 {
		t.Errorf("jobs left: %d", n)
	}
}
