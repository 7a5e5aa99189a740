// Package scheduler provides background triggering of sync cycles under an
// online/offline gate.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rollcallhq/rollcall/backend/internal/audit"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	syncpkg "github.com/rollcallhq/rollcall/backend/internal/sync"
)

// Scheduler drives the sync engine in the background: a push/pull cycle on
// one interval and a master-list reconcile on a longer one. Workers are
// stateless, so a missed or failed tick costs nothing; the next tick
// re-reads the queue from the durable store.
type Scheduler struct {
	engine            *syncpkg.Engine
	cycleInterval     time.Duration
	reconcileInterval time.Duration
	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.RWMutex
	isRunning         bool
	isOnline          bool
	cycleInProgress   bool
	lastCycleTime     time.Time
	lastCycleErr      error
}

// Config holds scheduler configuration.
type Config struct {
	CycleInterval     time.Duration // push/pull cadence (default: 5 minutes)
	ReconcileInterval time.Duration // master-list cadence (default: 1 hour)
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		CycleInterval:     5 * time.Minute,
		ReconcileInterval: time.Hour,
	}
}

// New creates a Scheduler. A nil config selects the defaults.
func New(engine *syncpkg.Engine, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		engine:            engine,
		cycleInterval:     config.CycleInterval,
		reconcileInterval: config.ReconcileInterval,
		stopCh:            make(chan struct{}),
		isOnline:          true,
	}
}

// Start launches the background loops. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.cycleLoop(ctx)
	go s.reconcileLoop(ctx)

	logging.Info("sync scheduler started", map[string]interface{}{
		"cycle_interval":     s.cycleInterval.String(),
		"reconcile_interval": s.reconcileInterval.String(),
	})
}

// Stop shuts the loops down and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("sync scheduler stopped", nil)
}

// SetOnlineStatus flips the online gate. While offline, ticks are skipped;
// queued jobs wait in the durable store until the gate opens again.
func (s *Scheduler) SetOnlineStatus(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOnline != online {
		logging.Info("online status changed",
			map[string]interface{}{"is_online": online})
	}
	s.isOnline = online
}

func (s *Scheduler) cycleLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.runCycle(ctx, audit.TriggerScheduled)
		}
	}
}

func (s *Scheduler) reconcileLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			reconcileCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			s.engine.Reconcile(reconcileCtx, audit.TriggerScheduled, false, "")
			cancel()
		}
	}
}

// runCycle executes one push/pull cycle, guarding against overlap.
func (s *Scheduler) runCycle(ctx context.Context, trigger audit.TriggerType) {
	s.mu.Lock()
	if s.cycleInProgress {
		s.mu.Unlock()
		logging.Debug("sync cycle already in progress, skipping", nil)
		return
	}
	s.cycleInProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cycleInProgress = false
		s.mu.Unlock()
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	err := s.engine.SyncCycle(cycleCtx, trigger)

	s.mu.Lock()
	s.lastCycleTime = time.Now()
	s.lastCycleErr = err
	s.mu.Unlock()

	if err != nil {
		logging.Warn("sync cycle finished with error",
			map[string]interface{}{"error": err.Error()})
		return
	}
	logging.Debug("sync cycle completed", nil)
}

// TriggerSync starts an immediate cycle. Returns false when a cycle is
// already running.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	s.mu.RLock()
	busy := s.cycleInProgress
	s.mu.RUnlock()
	if busy {
		return false
	}

	go s.runCycle(ctx, audit.TriggerManual)
	return true
}

// Status is a point-in-time snapshot of the scheduler state.
type Status struct {
	IsRunning       bool
	IsOnline        bool
	CycleInProgress bool
	LastCycleTime   *time.Time
	LastCycleError  string
}

// GetStatus returns the current scheduler status.
func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		IsRunning:       s.isRunning,
		IsOnline:        s.isOnline,
		CycleInProgress: s.cycleInProgress,
	}
	if !s.lastCycleTime.IsZero() {
		t := s.lastCycleTime
		status.LastCycleTime = &t
	}
	if s.lastCycleErr != nil {
		status.LastCycleError = s.lastCycleErr.Error()
	}
	return status
}

// IsOnline reports whether the online gate is open.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning reports whether the background loops are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
