package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
	syncpkg "github.com/rollcallhq/rollcall/backend/internal/sync"
)

func newTestEngine(t *testing.T) *syncpkg.Engine {
	t.Helper()
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	repo := db.NewRepository(database.DB)
	return syncpkg.NewEngine(repo, remote.NewSeededDemoProvider(), false)
}

func TestSchedulerStartStop(t *testing.T) {
	sched := New(newTestEngine(t), nil)

	if sched.IsRunning() {
		t.Fatal("scheduler should not run before Start")
	}
	sched.Start(context.Background())
	if !sched.IsRunning() {
		t.Fatal("scheduler should run after Start")
	}
	// Double start is a no-op.
	sched.Start(context.Background())

	sched.Stop()
	if sched.IsRunning() {
		t.Fatal("scheduler should stop after Stop")
	}
	// Double stop is a no-op.
	sched.Stop()
}

func TestSchedulerOnlineGate(t *testing.T) {
	sched := New(newTestEngine(t), nil)

	if !sched.IsOnline() {
		t.Fatal("scheduler should assume online initially")
	}
	sched.SetOnlineStatus(false)
	if sched.IsOnline() {
		t.Fatal("gate should close")
	}
	sched.SetOnlineStatus(true)
	if !sched.IsOnline() {
		t.Fatal("gate should reopen")
	}
}

func TestTriggerSyncRunsCycle(t *testing.T) {
	sched := New(newTestEngine(t), &Config{
		CycleInterval:     time.Hour, // ticks never fire during the test
		ReconcileInterval: time.Hour,
	})
	ctx := context.Background()
	sched.Start(ctx)
	defer sched.Stop()

	if !sched.TriggerSync(ctx) {
		t.Fatal("trigger should start a cycle")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status := sched.GetStatus()
		if status.LastCycleTime != nil {
			if status.LastCycleError != "" {
				t.Fatalf("cycle finished with error: %s", status.LastCycleError)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cycle did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
