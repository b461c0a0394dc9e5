package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/persistence"
)

const (
	sessionPruneInterval = 24 * time.Hour
	releaseCheckInterval = 12 * time.Hour
)

// StartMaintenance schedules background housekeeping: periodic pruning of the
// replay session catalog and, when checkUpdates is set, release checks that
// report newer versions as status messages.
func (r *Runtime) StartMaintenance(checkUpdates bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(r.Ctx)
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Every(sessionPruneInterval).WaitForSchedule().Name("prune_sessions").Do(r.enqueueSessionPrune); err != nil {
		cancel()

		return fmt.Errorf("schedule session pruning: %w", err)
	}
	if checkUpdates {
		checker := NewReleaseChecker(r.LogManager.Logger("app.releases"), r.releaseEndpoint, nil)
		if _, err := scheduler.Every(releaseCheckInterval).Name("release_check").Do(r.checkRelease, ctx, checker); err != nil {
			cancel()

			return fmt.Errorf("schedule release check: %w", err)
		}
	}

	scheduler.StartAsync()
	r.scheduler = scheduler
	r.maintenanceCancel = cancel

	return nil
}

func (r *Runtime) enqueueSessionPrune() {
	if r.WriterQueue == nil || r.DB == nil {
		return
	}
	r.WriterQueue.Enqueue("prune_sessions", func(ctx context.Context) error {
		_, err := persistence.PruneSessions(ctx, r.DB, KeepSessions)

		return err
	})
}

func (r *Runtime) checkRelease(parent context.Context, checker *ReleaseChecker) {
	ctx, cancel := context.WithTimeout(parent, releaseCheckTimeout)
	defer cancel()

	release, newer, err := checker.Check(ctx, BuildVersion())
	if err != nil {
		r.LogManager.Logger("app.releases").Warn("check for updates", "error", err)

		return
	}
	if !newer {
		return
	}

	text := fmt.Sprintf("A newer %s release is available: %s", Name, release.Version)
	if release.HTMLURL != "" {
		text += " (" + release.HTMLURL + ")"
	}
	r.Bus.Publish(connectors.TopicStatusMessage, connectors.StatusMessage{
		Text:      text,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
}

func (r *Runtime) stopMaintenance() {
	r.mu.Lock()
	scheduler := r.scheduler
	cancel := r.maintenanceCancel
	r.scheduler = nil
	r.maintenanceCancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
}
