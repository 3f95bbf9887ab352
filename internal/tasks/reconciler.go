package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

// JobStore is the persistence the reconciler needs.
type JobStore interface {
	// ListPending returns pending jobs whose retry count is below their max retries.
	// maxRetries applies to jobs stored without their own bound.
	ListPending(ctx context.Context, maxRetries int) ([]models.PlaylistJob, error)

	// UpdateStatus applies a partial status mutation to one job.
	UpdateStatus(ctx context.Context, jobID string, update models.StatusUpdate) error

	// ReplaceTracks swaps the job's stored tracks for tracks atomically.
	ReplaceTracks(ctx context.Context, jobID string, tracks []models.MusicTrack) error

	// SaveResultRecord writes the normalized playlist for a completed job.
	SaveResultRecord(ctx context.Context, bundle *models.ResultBundle, job models.PlaylistJob) error
}

// Scraper crawls one page address.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (*models.ResultBundle, error)
}

// PassSummary counts job outcomes of one reconciliation pass.
type PassSummary struct {
	Listed    int
	Completed int
	Retried   int
	Failed    int
	Errored   int // jobs whose status could not be written
	Skipped   bool
	Duration  time.Duration
}

type outcome int

const (
	outcomeErrored outcome = iota
	outcomeCompleted
	outcomeRetried
	outcomeFailed
)

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Store             JobStore
	Scraper           Scraper
	DefaultMaxRetries int // bound for jobs without one (default: 3)
	Logger            *log.Logger
	Progress          chan<- ProgressUpdate
}

// Reconciler moves pending jobs through the crawl state machine.
//
// Only one pass runs at a time per Reconciler; overlapping calls return immediately with Skipped set.
type Reconciler struct {
	store      JobStore
	scraper    Scraper
	maxRetries int
	logger     *log.Logger
	progress   chan<- ProgressUpdate
	running    atomic.Bool
}

// NewReconciler creates a Reconciler with opts.
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.DefaultMaxRetries <= 0 {
		opts.DefaultMaxRetries = models.DefaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		store:      opts.Store,
		scraper:    opts.Scraper,
		maxRetries: opts.DefaultMaxRetries,
		logger:     opts.Logger,
		progress:   opts.Progress,
	}
}

// Running reports whether a pass is in flight.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Reconcile runs one pass over the pending jobs.
//
// Job failures become state transitions and never fail the pass. The returned error is non-nil
// only when the pending list could not be read; it wraps [shared.ErrPassLevel].
func (r *Reconciler) Reconcile(ctx context.Context) (PassSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("reconciliation pass already running, skipping")
		return PassSummary{Skipped: true}, nil
	}
	defer r.running.Store(false)

	start := time.Now()
	summary := PassSummary{}

	jobs, err := r.store.ListPending(ctx, r.maxRetries)
	if err != nil {
		err = fmt.Errorf("%w: list pending jobs: %w", shared.ErrPassLevel, err)
		r.logger.Error("reconciliation pass aborted", "error", err)
		summary.Duration = time.Since(start)
		return summary, err
	}

	summary.Listed = len(jobs)
	sendProgress(r.progress, listedJobsUpdate(len(jobs)))
	if len(jobs) == 0 {
		r.logger.Info("no pending jobs")
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			r.logger.Warn("pass interrupted, remaining jobs stay pending", "remaining", len(jobs)-i)
			break
		}

		switch r.processJob(ctx, i+1, len(jobs), job) {
		case outcomeCompleted:
			summary.Completed++
		case outcomeRetried:
			summary.Retried++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Errored++
		}
	}

	summary.Duration = time.Since(start)
	r.logger.Info("reconciliation pass finished",
		"listed", summary.Listed,
		"completed", summary.Completed,
		"retried", summary.Retried,
		"failed", summary.Failed,
		"errored", summary.Errored,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

// processJob runs one job to its next state. Panics are contained to the job.
func (r *Reconciler) processJob(ctx context.Context, step, total int, job models.PlaylistJob) (out outcome) {
	logger := shared.WithLogger(r.logger, "job_id", job.ID, "url", job.URL)

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = r.maxRetries
	}

	claimed := false
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic while processing job: %v", rec)
			logger.Error("job panicked", "error", err)
			if !claimed {
				out = outcomeErrored
				return
			}
			out = r.finish(ctx, logger, step, total, job, models.Fail(err), err)
		}
	}()

	sendProgress(r.progress, processJobUpdate(step, total, job))

	if err := r.store.UpdateStatus(ctx, job.ID, models.Processing()); err != nil {
		logger.Error("failed to claim job, leaving it pending", "error", err)
		return outcomeErrored
	}
	claimed = true

	bundle, err := r.scraper.Scrape(ctx, job.URL)
	if err == nil && (bundle == nil || len(bundle.Tracks) == 0) {
		err = fmt.Errorf("%w: %s", shared.ErrNoTracks, job.URL)
	}
	if err != nil {
		return r.finish(ctx, logger, step, total, job, models.Retry(job.RetryCount, maxRetries, err), err)
	}

	sendProgress(r.progress, saveResultsUpdate(job, len(bundle.Tracks)))
	if err := r.persist(ctx, job, bundle); err != nil {
		return r.finish(ctx, logger, step, total, job, models.Fail(err), err)
	}

	logger.Info("job completed", "tracks", len(bundle.Tracks), "resolved", bundle.ResolvedCount(), "source", bundle.Source)
	return r.finish(ctx, logger, step, total, job, models.Completed(), nil)
}

func (r *Reconciler) persist(ctx context.Context, job models.PlaylistJob, bundle *models.ResultBundle) error {
	if err := r.store.ReplaceTracks(ctx, job.ID, bundle.Tracks); err != nil {
		return fmt.Errorf("failed to save tracks: %w", err)
	}
	if err := r.store.SaveResultRecord(ctx, bundle, job); err != nil {
		return fmt.Errorf("failed to save result record: %w", err)
	}
	return nil
}

// finish writes the job's next state and maps it to a pass outcome.
func (r *Reconciler) finish(ctx context.Context, logger *log.Logger, step, total int, job models.PlaylistJob, update models.StatusUpdate, cause error) outcome {
	if err := r.store.UpdateStatus(ctx, job.ID, update); err != nil {
		if !errors.Is(err, shared.ErrRepository) {
			err = fmt.Errorf("%w: %w", shared.ErrRepository, err)
		}
		logger.Error("failed to record job outcome", "status", update.Status, "cause", cause, "error", err)
		sendProgress(r.progress, finishJobUpdate(step, total, job, models.StatusProcessing, err))
		return outcomeErrored
	}

	sendProgress(r.progress, finishJobUpdate(step, total, job, update.Status, cause))

	switch update.Status {
	case models.StatusCompleted:
		return outcomeCompleted
	case models.StatusPending:
		logger.Warn("job failed, will retry", "retry_count", *update.RetryCount, "error", cause)
		return outcomeRetried
	default:
		logger.Error("job failed permanently", "error", cause)
		return outcomeFailed
	}
}
