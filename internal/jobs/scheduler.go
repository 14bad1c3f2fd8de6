// Package jobs runs the background maintenance schedule: the daily
// swipe-counter reset and the presence sweep that clears entries whose
// heartbeats have lapsed.
package jobs

import (
	"context"
	"time"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/service/presence"
	"github.com/go-co-op/gocron/v2"
)

// sweepInterval is how often lapsed presence entries are reaped.
const sweepInterval = 30 * time.Second

// Runner owns the gocron scheduler and its task dependencies.
type Runner struct {
	appCtx  *app.AppContext
	tracker *presence.Tracker
	sched   gocron.Scheduler
}

// NewRunner creates a stopped runner. Start registers and launches the
// jobs.
func NewRunner(appCtx *app.AppContext, tracker *presence.Tracker) *Runner {
	return &Runner{appCtx: appCtx, tracker: tracker}
}

// Start registers the maintenance jobs and launches the scheduler.
//
// Behavior:
//   - Daily at midnight UTC: reset the per-user swipe counters.
//   - Every sweepInterval: drop presence entries with no live heartbeat.
func (r *Runner) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(r.resetSwipeCounters),
	)
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(r.sweepPresence),
	)
	if err != nil {
		return err
	}

	sched.Start()
	r.sched = sched
	r.appCtx.Logger.Info("background jobs started", "sweep_interval", sweepInterval)
	return nil
}

// Stop shuts the scheduler down, waiting for in-flight tasks.
func (r *Runner) Stop() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}

func (r *Runner) resetSwipeCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.appCtx.Cache.ResetSwipeCounts(ctx); err != nil {
		r.appCtx.Logger.Error("swipe counter reset failed", "err", err)
		return
	}
	r.appCtx.Logger.Info("swipe counters reset")
}

func (r *Runner) sweepPresence() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	removed, err := r.tracker.Sweep(ctx)
	if err != nil {
		r.appCtx.Logger.Error("presence sweep failed", "err", err)
		return
	}
	if removed > 0 {
		r.appCtx.Logger.Info("presence sweep reaped entries", "removed", removed)
	}
}
