package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/rollcallhq/rollcall/backend/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewRepository(database.DB)
}

func mustCreateEvent(t *testing.T, repo *Repository, title string) *models.Event {
	t.Helper()
	e := &models.Event{Title: title, Date: "2025-11-03", Time: "19:00"}
	if err := repo.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	return e
}

func TestUpsertAttendanceRecordLastWriterWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	event := mustCreateEvent(t, repo, "251103 1900 Choir")

	put := func(state models.AttendanceState, ts int64) {
		t.Helper()
		rec := &models.AttendanceRecord{EventID: event.ID, AttendeeID: "a1", State: state, Timestamp: ts}
		if err := repo.UpsertAttendanceRecord(ctx, rec); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	get := func() *models.AttendanceRecord {
		t.Helper()
		rec, err := repo.GetAttendanceRecord(ctx, event.ID, "a1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		return rec
	}

	put(models.StatePresent, 1000)
	if rec := get(); rec.State != models.StatePresent || rec.Timestamp != 1000 {
		t.Fatalf("unexpected initial record: %+v", rec)
	}

	// Older write loses.
	put(models.StateAbsent, 500)
	if rec := get(); rec.State != models.StatePresent || rec.Timestamp != 1000 {
		t.Errorf("older timestamp overwrote newer record: %+v", rec)
	}

	// Equal timestamp loses too: only strictly greater wins.
	put(models.StateAbsent, 1000)
	if rec := get(); rec.State != models.StatePresent {
		t.Errorf("equal timestamp overwrote record: %+v", rec)
	}

	// Newer write wins.
	put(models.StateAbsent, 2000)
	if rec := get(); rec.State != models.StateAbsent || rec.Timestamp != 2000 {
		t.Errorf("newer timestamp did not overwrite: %+v", rec)
	}
}

func TestAttendeeOrphanRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		err := repo.UpsertAttendee(ctx, &models.Attendee{ID: id, FullName: "Name " + id})
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	// a3 drops off the remote list.
	if err := repo.MarkAttendeesMissing(ctx, []string{"a1", "a2"}); err != nil {
		t.Fatalf("mark missing failed: %v", err)
	}
	a3, err := repo.GetAttendee(ctx, "a3")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !a3.NotExistOnCloud {
		t.Fatal("a3 should be flagged missing")
	}
	a1, _ := repo.GetAttendee(ctx, "a1")
	if a1.NotExistOnCloud {
		t.Fatal("a1 should not be flagged")
	}

	// The next sync lists a3 again: flag cleared, not a new row.
	if err := repo.UpsertAttendee(ctx, &models.Attendee{ID: "a3", FullName: "Name a3"}); err != nil {
		t.Fatalf("re-upsert failed: %v", err)
	}
	a3, _ = repo.GetAttendee(ctx, "a3")
	if a3.NotExistOnCloud {
		t.Error("upsert should clear the orphan flag")
	}

	// Flag again and purge.
	if err := repo.MarkAttendeesMissing(ctx, []string{"a1", "a2"}); err != nil {
		t.Fatalf("mark missing failed: %v", err)
	}
	n, err := repo.PurgeMissingAttendees(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d attendees, want 1", n)
	}
	if _, err := repo.GetAttendee(ctx, "a3"); err != sql.ErrNoRows {
		t.Errorf("a3 should be gone, got err=%v", err)
	}
}

func TestEnsureAttendeeLeavesExistingUntouched(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertAttendee(ctx, &models.Attendee{ID: "a1", FullName: "Real Name"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.EnsureAttendee(ctx, "a1", "Pulled Name"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	a, _ := repo.GetAttendee(ctx, "a1")
	if a.FullName != "Real Name" || a.NotExistOnCloud {
		t.Errorf("ensure clobbered existing attendee: %+v", a)
	}

	if err := repo.EnsureAttendee(ctx, "a2", "Pulled Name"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	a, _ = repo.GetAttendee(ctx, "a2")
	if a.FullName != "Pulled Name" || !a.NotExistOnCloud {
		t.Errorf("placeholder not created as expected: %+v", a)
	}

	// No accompanying name: the id itself serves as the name.
	if err := repo.EnsureAttendee(ctx, "a3", ""); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	a, _ = repo.GetAttendee(ctx, "a3")
	if a.FullName != "a3" {
		t.Errorf("placeholder name = %q, want id fallback", a.FullName)
	}
}

func TestArchiveFIFOCap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		a := &models.QueueArchive{
			EventID:    "e1",
			EventTitle: "251103 1900 Choir",
			Timestamp:  int64(1000 + i),
			Data:       []byte(fmt.Sprintf(`[{"id":"a%d","state":"PRESENT","time":%d}]`, i, 1000+i)),
		}
		if err := repo.InsertArchive(ctx, a); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	archives, err := repo.ListArchives(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(archives) != 25 {
		t.Fatalf("archive count = %d, want 25", len(archives))
	}
	// Newest first; the five oldest entries were evicted.
	if archives[0].Timestamp != 1029 {
		t.Errorf("newest timestamp = %d, want 1029", archives[0].Timestamp)
	}
	if archives[len(archives)-1].Timestamp != 1005 {
		t.Errorf("oldest surviving timestamp = %d, want 1005", archives[len(archives)-1].Timestamp)
	}
}

func TestJobQueueStrictFIFO(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Two jobs share a created_at; the row id breaks the tie.
	jobs := []*models.SyncJob{
		{EventID: "e1", EventTitle: "t1", Payload: []byte(`[]`), CreatedAt: 100},
		{EventID: "e2", EventTitle: "t2", Payload: []byte(`[]`), CreatedAt: 100},
		{EventID: "e3", EventTitle: "t3", Payload: []byte(`[]`), CreatedAt: 50},
	}
	for _, j := range jobs {
		if err := repo.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	var order []string
	for {
		job, err := repo.OldestJob(ctx)
		if err != nil {
			t.Fatalf("oldest failed: %v", err)
		}
		if job == nil {
			break
		}
		order = append(order, job.EventID)
		if err := repo.DeleteJob(ctx, job.JobID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
	}

	want := []string{"e3", "e1", "e2"}
	if len(order) != len(want) {
		t.Fatalf("drained %d jobs, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("drain order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestSelectionQueueExclusionSemantics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	add := func(id string, excluded bool, at int64) {
		t.Helper()
		err := repo.AddSelection(ctx, &models.SelectionEntry{AttendeeID: id, Excluded: excluded, AddedAt: at})
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	add("a1", false, 1)
	add("a2", true, 2)
	add("a3", false, 3)

	// Re-adding an already queued id must not clobber its exclusion state.
	err := repo.AddSelectionIfAbsent(ctx, &models.SelectionEntry{AttendeeID: "a2", Excluded: false, AddedAt: 4})
	if err != nil {
		t.Fatalf("add-if-absent failed: %v", err)
	}

	if err := repo.ClearActiveSelection(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	entries, err := repo.ListSelection(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].AttendeeID != "a2" || !entries[0].Excluded {
		t.Errorf("excluded entry should survive clear, got %+v", entries)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		if err := tx.UpsertAttendee(ctx, &models.Attendee{ID: "a1", FullName: "N"}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("expected error from transaction")
	}
	if _, err := repo.GetAttendee(ctx, "a1"); err != sql.ErrNoRows {
		t.Errorf("write should have rolled back, got err=%v", err)
	}

	// Nested calls join the outer transaction.
	err = repo.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		return tx.RunInTx(ctx, func(ctx context.Context, inner *Repository) error {
			return inner.UpsertAttendee(ctx, &models.Attendee{ID: "a2", FullName: "N"})
		})
	})
	if err != nil {
		t.Fatalf("nested tx failed: %v", err)
	}
	if _, err := repo.GetAttendee(ctx, "a2"); err != nil {
		t.Errorf("committed write missing: %v", err)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.GetMeta(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("absent key: v=%q err=%v, want empty and nil", v, err)
	}
	if err := repo.SetMeta(ctx, "k", "v1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := repo.SetMeta(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, _ := repo.GetMeta(ctx, "k"); v != "v2" {
		t.Errorf("meta = %q, want v2", v)
	}
}
