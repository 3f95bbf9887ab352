package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

const (
	DefaultInterval = 2 * time.Hour
	DefaultTick     = 60 * time.Second
)

// Pass is one unit of scheduled work.
type Pass interface {
	Reconcile(ctx context.Context) (PassSummary, error)
}

// SchedulerOpts configures a [Scheduler].
type SchedulerOpts struct {
	Interval   time.Duration // time between passes (default: 2h)
	Tick       time.Duration // how often the schedule is checked (default: 60s)
	RunOnStart bool          // trigger a pass on the first tick instead of after one interval
	Logger     *log.Logger
}

// Scheduler triggers passes on a fixed interval, checked once per tick.
type Scheduler struct {
	pass       Pass
	interval   time.Duration
	tick       time.Duration
	runOnStart bool
	logger     *log.Logger
	wg         sync.WaitGroup
}

// NewScheduler creates a Scheduler for pass.
func NewScheduler(pass Pass, opts SchedulerOpts) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		pass:       pass,
		interval:   opts.Interval,
		tick:       opts.Tick,
		runOnStart: opts.RunOnStart,
		logger:     opts.Logger,
	}
}

// Run blocks until ctx is done, then waits for any in-flight pass and returns nil.
//
// Passes run detached from ctx so a shutdown signal stops new triggers without aborting a pass midway.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	next := time.Now().Add(s.interval)
	if s.runOnStart {
		next = time.Now()
	}
	s.logger.Info("scheduler started", "interval", s.interval, "tick", s.tick, "next_run", next.Format(time.RFC3339))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight pass")
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return nil
		case now := <-ticker.C:
			if now.Before(next) {
				continue
			}
			s.trigger(ctx)
			next = now.Add(s.interval)
			s.logger.Debug("next pass scheduled", "next_run", next.Format(time.RFC3339))
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	passCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary, err := s.pass.Reconcile(passCtx)
		switch {
		case err != nil:
			s.logger.Error("scheduled pass failed", "error", err)
		case summary.Skipped:
			s.logger.Warn("scheduled pass skipped, previous pass still running")
		}
	}()
}
