package sync

import (
	"context"

	"github.com/rollcallhq/rollcall/backend/internal/audit"
	"github.com/rollcallhq/rollcall/backend/internal/db"
	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

// Engine composes the queue manager, push worker, pull worker and reconciler
// behind a single surface. Every cycle runs under one audit session so the
// sync log can be read back per trigger.
type Engine struct {
	repo       *db.Repository
	trail      *audit.Trail
	queue      *QueueManager
	push       *PushWorker
	pull       *PullWorker
	reconciler *Reconciler
}

// NewEngine wires the sync components against one repository and provider.
func NewEngine(repo *db.Repository, provider remote.Provider, demo bool) *Engine {
	return &Engine{
		repo:       repo,
		trail:      audit.NewTrail(repo),
		queue:      NewQueueManager(repo, demo),
		push:       NewPushWorker(repo, provider),
		pull:       NewPullWorker(repo, provider),
		reconciler: NewReconciler(repo, provider),
	}
}

// Queue returns the queue manager for commit and restore operations.
func (e *Engine) Queue() *QueueManager { return e.queue }

// Reconciler returns the reconciler for purge and status operations.
func (e *Engine) Reconciler() *Reconciler { return e.reconciler }

// Push drains the job queue under its own audit session.
func (e *Engine) Push(ctx context.Context, trigger audit.TriggerType) (PushOutcome, error) {
	scope := e.trail.Begin(trigger)
	outcome, err := e.push.Run(ctx, scope)
	scope.Record("pushQueue", outcomeLabel(outcome), err)
	return outcome, err
}

// Pull performs one differential pull under its own audit session.
func (e *Engine) Pull(ctx context.Context, trigger audit.TriggerType) error {
	scope := e.trail.Begin(trigger)
	err := e.pull.Run(ctx, scope)
	if !apperrors.Is(err, apperrors.ErrPullSkipped) {
		scope.Record("pullAttendance", "", err)
	}
	return err
}

// Reconcile runs the master-list passes under one audit session.
func (e *Engine) Reconcile(ctx context.Context, trigger audit.TriggerType, full bool, targetEventID string) Summary {
	scope := e.trail.Begin(trigger)
	summary := e.reconciler.SyncMasterList(ctx, scope, full, targetEventID)
	var err error
	if !summary.OK() {
		err = apperrors.New(apperrors.ErrReconcileFailed, summary.String())
	}
	scope.Record("syncMasterList", summary.String(), err)
	return summary
}

// SyncCycle runs push then pull as one session. A retryable push failure
// stops the cycle; the caller's scheduler owns backoff. The pull reporting
// itself skipped because jobs are still queued is not an error for the cycle.
func (e *Engine) SyncCycle(ctx context.Context, trigger audit.TriggerType) error {
	scope := e.trail.Begin(trigger)

	outcome, err := e.push.Run(ctx, scope)
	scope.Record("pushQueue", outcomeLabel(outcome), err)
	if err != nil {
		return err
	}

	if err := e.pull.Run(ctx, scope); err != nil {
		if apperrors.Is(err, apperrors.ErrPullSkipped) {
			return nil
		}
		scope.Record("pullAttendance", "", err)
		return err
	}
	scope.Record("pullAttendance", "", nil)
	return nil
}

// Status reads recent audit rows, newest first.
func (e *Engine) Status(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	return e.reconciler.SyncStatus(ctx, limit)
}

func outcomeLabel(o PushOutcome) string {
	switch o {
	case PushDrained:
		return "drained"
	case PushRetry:
		return "retry"
	case PushFatal:
		return "fatal"
	}
	return "unknown"
}
