package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/models"
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

func TestScopeGroupsRowsByTriggerID(t *testing.T) {
	repo := newTestRepo(t)
	trail := NewTrail(repo)

	scope := trail.Begin(TriggerManual)
	scope.Record("pushAttendance", "251103 1900 Choir rows=2", nil)
	scope.Record("fetchMasterAttendees", "count=3", nil)

	other := trail.Begin(TriggerScheduled)
	other.Record("pullAttendance", "", fmt.Errorf("network down"))

	logs, err := repo.RecentSyncLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("log count = %d, want 3", len(logs))
	}

	// Newest first: the failed pull from the second session.
	if logs[0].Status != models.SyncStatusFailed {
		t.Errorf("status = %s, want FAILED", logs[0].Status)
	}
	if logs[0].ErrorMessage != "network down" {
		t.Errorf("error message = %q", logs[0].ErrorMessage)
	}
	if logs[0].StackTrace == "" {
		t.Error("failed row should carry a stack trace")
	}
	if logs[0].TriggerType != string(TriggerScheduled) {
		t.Errorf("trigger type = %s", logs[0].TriggerType)
	}

	if logs[1].TriggerID != logs[2].TriggerID {
		t.Error("rows of one session should share a trigger id")
	}
	if logs[0].TriggerID == logs[1].TriggerID {
		t.Error("separate sessions should get separate trigger ids")
	}
	if logs[1].Status != models.SyncStatusSuccess || logs[1].StackTrace != "" {
		t.Errorf("success row malformed: %+v", logs[1])
	}
}
