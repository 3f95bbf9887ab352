package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/desertthunder/wavecrawl/internal/tasks"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

const lockFileName = "wavecrawl.lock"

// Run reconciles pending jobs, once with --once or on the configured schedule until SIGINT/SIGTERM.
//
// Startup problems (config, credentials, store, lock) are returned; failed jobs and failed passes are only logged.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}
	if r.store == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}
	}

	lock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release lock", "path", lock.Path(), "error", err)
		}
	}()

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := pingStore(ctx, store); err != nil {
		return err
	}

	var progressCh chan tasks.ProgressUpdate
	if cmd.Bool("verbose") {
		progressCh = make(chan tasks.ProgressUpdate, 50)
		done := r.watchProgress(progressCh)
		defer func() {
			close(progressCh)
			<-done
		}()
	}

	reconciler := tasks.NewReconciler(tasks.ReconcilerOpts{
		Store:             store,
		Scraper:           r.newPipeline(progressCh),
		DefaultMaxRetries: r.config.Jobs.DefaultMaxRetries,
		Logger:            r.logger,
		Progress:          progressCh,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Bool("once") {
		return r.runOnce(ctx, stop, reconciler)
	}

	scheduler := tasks.NewScheduler(reconciler, tasks.SchedulerOpts{
		Interval:   r.config.Scheduler.Interval.Duration,
		Tick:       r.config.Scheduler.Tick.Duration,
		RunOnStart: r.config.Scheduler.RunOnStart,
		Logger:     r.logger,
	})
	return scheduler.Run(ctx)
}

// runOnce runs a single pass that a signal cannot cut short. After the first signal the default handlers are
// restored, so a second one terminates the process.
func (r *Runner) runOnce(ctx context.Context, stop context.CancelFunc, reconciler *tasks.Reconciler) error {
	finished := make(chan struct{})
	defer close(finished)

	go func() {
		select {
		case <-ctx.Done():
			stop()
			r.logger.Warn("interrupt received, finishing current pass")
		case <-finished:
		}
	}()

	summary, err := reconciler.Reconcile(context.WithoutCancel(ctx))
	if err != nil {
		r.logger.Error("pass failed", "error", err)
		return nil
	}

	r.writePlainHeader("Reconciliation pass")
	r.writePlain("Listed:    %d\n", summary.Listed)
	r.writePlain("Completed: %s\n", r.paint(styles.ok, fmt.Sprint(summary.Completed)))
	r.writePlain("Retried:   %s\n", r.paint(styles.warn, fmt.Sprint(summary.Retried)))
	r.writePlain("Failed:    %s\n", r.paint(styles.err, fmt.Sprint(summary.Failed)))
	if summary.Errored > 0 {
		r.writePlain("Errored:   %s\n", r.paint(styles.err, fmt.Sprint(summary.Errored)))
	}
	r.writePlain("Duration:  %s\n", summary.Duration.Round(time.Millisecond))
	return nil
}

// acquireLock takes the exclusive process lock so only one scheduler works a store at a time.
func (r *Runner) acquireLock() (*flock.Flock, error) {
	path := r.lockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrLockHeld, path)
	}
	r.logger.Debug("lock acquired", "path", path)
	return lock, nil
}

// lockPath is scheduler.lock_path, else a file beside the SQLite database, else one in the temp dir.
func (r *Runner) lockPath() string {
	if p := r.config.Scheduler.LockPath; p != "" {
		return p
	}
	if r.config.Database.Driver == shared.DriverSQLite && r.config.Database.Path != "" && r.config.Database.Path != ":memory:" {
		return r.config.Database.Path + ".lock"
	}
	return filepath.Join(os.TempDir(), lockFileName)
}
