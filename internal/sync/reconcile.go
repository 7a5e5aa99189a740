package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rollcallhq/rollcall/backend/internal/db"
	apperrors "github.com/rollcallhq/rollcall/backend/internal/errors"
	"github.com/rollcallhq/rollcall/backend/internal/logging"
	"github.com/rollcallhq/rollcall/backend/internal/models"
	"github.com/rollcallhq/rollcall/backend/internal/remote"
)

// DefaultLookbackDays bounds the event reconciliation window. Events whose
// title date is older than this are left alone entirely.
const DefaultLookbackDays = 30

// metaKeyMasterVersion stores the last remote master-list version we merged.
const metaKeyMasterVersion = "master_list_version"

// Reconciler diffs the local master lists against the remote ones, marks
// orphans, and purges them on explicit request. Marking is cheap and
// reversible; deletion only ever happens through the purge operations.
type Reconciler struct {
	repo         *db.Repository
	provider     remote.Provider
	lookbackDays int
}

// NewReconciler creates a Reconciler with the default lookback window.
func NewReconciler(repo *db.Repository, provider remote.Provider) *Reconciler {
	return &Reconciler{repo: repo, provider: provider, lookbackDays: DefaultLookbackDays}
}

// Summary reports the per-pass outcome of one master-list sync.
type Summary struct {
	Attendees error
	Groups    error
	Mappings  error
	Events    error
	Skipped   bool // master-list passes skipped, version unchanged
}

// OK reports whether every pass finished without error.
func (s Summary) OK() bool {
	return s.Attendees == nil && s.Groups == nil && s.Mappings == nil && s.Events == nil
}

// String renders a short human-readable status line.
func (s Summary) String() string {
	if s.Skipped && s.Events == nil {
		return "up to date (version unchanged)"
	}
	render := func(name string, err error) string {
		if err != nil {
			return name + ":failed"
		}
		return name + ":ok"
	}
	return fmt.Sprintf("%s %s %s %s",
		render("attendees", s.Attendees), render("groups", s.Groups),
		render("mappings", s.Mappings), render("events", s.Events))
}

// SyncMasterList runs the four reconciliation passes: attendees, groups,
// mappings, recent events. The passes are independent; one failing never
// aborts its siblings. When full is false and the remote master-list version
// matches the last merged one, the first three passes are skipped and only
// events are checked. targetEventID, when non-empty, restricts the event
// pass to that single event.
func (r *Reconciler) SyncMasterList(ctx context.Context, scope remote.Scope, full bool, targetEventID string) Summary {
	var summary Summary

	skip, err := r.masterListUnchanged(ctx, scope, full)
	if err != nil {
		// Version probe failure is not fatal; fall through to a full merge.
		logging.Warn("master-list version check failed, forcing full passes",
			map[string]interface{}{"error": err.Error()})
		skip = false
	}
	summary.Skipped = skip

	if !skip {
		summary.Attendees = r.syncAttendees(ctx, scope)
		summary.Groups = r.syncGroups(ctx, scope)
		summary.Mappings = r.syncMappings(ctx, scope)
	}
	summary.Events = r.syncEvents(ctx, scope, targetEventID)

	if !skip && summary.OK() {
		if err := r.storeMasterVersion(ctx, scope); err != nil {
			logging.Warn("failed to persist master-list version",
				map[string]interface{}{"error": err.Error()})
		}
	}

	logging.Info("master-list sync finished", map[string]interface{}{
		"summary": summary.String(),
		"full":    full,
	})
	return summary
}

// masterListUnchanged reports whether the non-event passes can be skipped.
func (r *Reconciler) masterListUnchanged(ctx context.Context, scope remote.Scope, full bool) (bool, error) {
	if full {
		return false, nil
	}
	remoteVersion, err := r.provider.FetchMasterListVersion(ctx, scope)
	if err != nil {
		return false, err
	}
	if remoteVersion == "" {
		return false, nil
	}
	stored, err := r.repo.GetMeta(ctx, metaKeyMasterVersion)
	if err != nil {
		return false, err
	}
	return stored == remoteVersion, nil
}

func (r *Reconciler) storeMasterVersion(ctx context.Context, scope remote.Scope) error {
	version, err := r.provider.FetchMasterListVersion(ctx, scope)
	if err != nil || version == "" {
		return err
	}
	return r.repo.SetMeta(ctx, metaKeyMasterVersion, version)
}

// syncAttendees upserts every remote attendee and flags local attendees the
// remote no longer lists. The whole merge is one transaction so a reader
// never observes a half-marked list.
func (r *Reconciler) syncAttendees(ctx context.Context, scope remote.Scope) error {
	attendees, err := r.provider.FetchMasterAttendees(ctx, scope)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "attendee fetch failed", err)
	}

	keep := make([]string, 0, len(attendees))
	err = r.repo.RunInTx(ctx, func(ctx context.Context, tx *db.Repository) error {
		for i := range attendees {
			if err := tx.UpsertAttendee(ctx, &attendees[i]); err != nil {
				return err
			}
			keep = append(keep, attendees[i].ID)
		}
		return tx.MarkAttendeesMissing(ctx, keep)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "attendee merge failed", err)
	}
	return nil
}

// syncGroups mirrors syncAttendees for groups.
func (r *Reconciler) syncGroups(ctx context.Context, scope remote.Scope) error {
	groups, err := r.provider.FetchMasterGroups(ctx, scope)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "group fetch failed", err)
	}

	keep := make([]string, 0, len(groups))
	err = r.repo.RunInTx(ctx, func(ctx context.Context, tx *db.Repository) error {
		for i := range groups {
			if err := tx.UpsertGroup(ctx, &groups[i]); err != nil {
				return err
			}
			keep = append(keep, groups[i].GroupID)
		}
		return tx.MarkGroupsMissing(ctx, keep)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "group merge failed", err)
	}
	return nil
}

// syncMappings replaces the whole local mapping table with the remote edges.
// Mappings are remote-authoritative; edges referencing unknown ids spawn
// placeholder attendees or groups, the same policy the pull worker applies.
func (r *Reconciler) syncMappings(ctx context.Context, scope remote.Scope) error {
	mappings, err := r.provider.FetchAttendeeGroupMappings(ctx, scope)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "mapping fetch failed", err)
	}

	err = r.repo.RunInTx(ctx, func(ctx context.Context, tx *db.Repository) error {
		for _, m := range mappings {
			if err := tx.EnsureAttendee(ctx, m.AttendeeID, ""); err != nil {
				return err
			}
			if err := tx.EnsureGroup(ctx, m.GroupID, ""); err != nil {
				return err
			}
		}
		return tx.ReplaceMappings(ctx, mappings)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "mapping replace failed", err)
	}
	return nil
}

// syncEvents matches local events against the remote listing inside the
// lookback window. Local events the remote no longer lists are flagged
// missing; remote events unknown locally are created; events older than the
// window are left untouched either way.
func (r *Reconciler) syncEvents(ctx context.Context, scope remote.Scope, targetEventID string) error {
	remoteEvents, err := r.provider.FetchRecentEvents(ctx, r.lookbackDays, scope)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "event listing fetch failed", err)
	}

	byTitle := make(map[string]*models.Event, len(remoteEvents))
	byCloudID := make(map[string]*models.Event, len(remoteEvents))
	for i := range remoteEvents {
		re := &remoteEvents[i]
		byTitle[re.Title] = re
		if re.CloudEventID != "" {
			byCloudID[re.CloudEventID] = re
		}
	}

	locals, err := r.repo.ListEvents(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to list local events", err)
	}

	now := time.Now()
	err = r.repo.RunInTx(ctx, func(ctx context.Context, tx *db.Repository) error {
		matched := make(map[string]bool)
		for _, local := range locals {
			if targetEventID != "" && local.ID != targetEventID {
				continue
			}
			if !local.WithinLookback(now, r.lookbackDays) {
				continue
			}

			re := byCloudID[local.CloudEventID]
			if re == nil {
				re = byTitle[local.Title]
			}
			if re == nil {
				if err := tx.SetEventMissing(ctx, local.ID, true); err != nil {
					return err
				}
				continue
			}

			matched[re.Title] = true
			if local.NotExistOnCloud {
				if err := tx.SetEventMissing(ctx, local.ID, false); err != nil {
					return err
				}
			}
			if local.CloudEventID == "" && re.CloudEventID != "" {
				if err := tx.SetEventCloudID(ctx, local.ID, re.CloudEventID); err != nil {
					return err
				}
			}
		}

		if targetEventID != "" {
			return nil
		}
		for i := range remoteEvents {
			re := &remoteEvents[i]
			if matched[re.Title] {
				continue
			}
			if _, err := tx.GetEventByTitle(ctx, re.Title); err == nil {
				continue
			}
			ev := &models.Event{
				Title:        re.Title,
				Date:         re.Date,
				Time:         re.Time,
				CloudEventID: re.CloudEventID,
			}
			if t, ok := ev.TitleTime(); ok {
				if ev.Date == "" {
					ev.Date = t.Format("2006-01-02")
				}
				if ev.Time == "" {
					ev.Time = t.Format("15:04")
				}
			}
			if err := tx.CreateEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrReconcileFailed, "event merge failed", err)
	}
	return nil
}

// PurgeAllMissingFromCloud deletes every attendee and group currently flagged
// as missing on the cloud. Explicit and unconditional; never runs on a timer.
func (r *Reconciler) PurgeAllMissingFromCloud(ctx context.Context) (attendees, groups int64, err error) {
	err = r.repo.RunInTx(ctx, func(ctx context.Context, tx *db.Repository) error {
		var txErr error
		if attendees, txErr = tx.PurgeMissingAttendees(ctx); txErr != nil {
			return txErr
		}
		groups, txErr = tx.PurgeMissingGroups(ctx)
		return txErr
	})
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDatabase, "purge failed", err)
	}
	logging.Info("purged entities missing on cloud",
		map[string]interface{}{"attendees": attendees, "groups": groups})
	return attendees, groups, nil
}

// PurgeAttendee deletes one attendee, refusing when attendance records or
// group mappings still reference it.
func (r *Reconciler) PurgeAttendee(ctx context.Context, id string) error {
	inUse, err := r.repo.AttendeeInUse(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "in-use check failed", err)
	}
	if inUse {
		return apperrors.New(apperrors.ErrEntityInUse, "attendee "+id+" still has records or mappings")
	}
	if err := r.repo.DeleteAttendee(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "attendee delete failed", err)
	}
	return nil
}

// PurgeGroup deletes one group, refusing while mappings still reference it.
func (r *Reconciler) PurgeGroup(ctx context.Context, id string) error {
	inUse, err := r.repo.GroupInUse(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "in-use check failed", err)
	}
	if inUse {
		return apperrors.New(apperrors.ErrEntityInUse, "group "+id+" still has mappings")
	}
	if err := r.repo.DeleteGroup(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "group delete failed", err)
	}
	return nil
}

// SyncStatus returns the most recent audit rows, newest first, so callers can
// show the last sync outcome without a live worker.
func (r *Reconciler) SyncStatus(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.repo.RecentSyncLogs(ctx, limit)
}
