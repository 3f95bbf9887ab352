package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

// jobView is the JSON shape of a job for CLI output.
type jobView struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	URL          string     `json:"url"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage string     `json:"error_message,omitempty"`
	OwnerID      string     `json:"owner_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

func newJobView(job models.PlaylistJob) jobView {
	return jobView{
		ID:           job.ID,
		Sequence:     job.Sequence,
		URL:          job.URL,
		Status:       job.Status.String(),
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ErrorMessage: job.ErrorMessage,
		OwnerID:      job.OwnerID,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		ProcessedAt:  job.ProcessedAt,
	}
}

// jobStatusView is the JSON shape of "jobs status".
type jobStatusView struct {
	Job    jobView                `json:"job"`
	Tracks []models.MusicTrack    `json:"tracks"`
	Record *models.PlaylistRecord `json:"record,omitempty"`
}

// JobsAdd queues one pending job per address argument.
func (r *Runner) JobsAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one url is required", shared.ErrMissingArgument)
	}
	for _, u := range urls {
		if err := validatePageURL(u); err != nil {
			return err
		}
	}

	maxRetries := int(cmd.Int("max-retries"))
	if maxRetries <= 0 {
		maxRetries = r.config.Jobs.DefaultMaxRetries
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, u := range urls {
		job := models.NewPlaylistJob(u, cmd.String("owner"), maxRetries)
		if err := store.CreateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to create job for %s: %w", u, err)
		}
		r.logger.Debug("job created", "job_id", job.ID, "url", u)
		r.writePlain("%s %s\n", r.paint(styles.ok, "✓"), job.ID)
	}
	return nil
}

// JobsList prints jobs in queue order, optionally filtered by status.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	var status models.JobStatus
	if s := cmd.String("status"); s != "" {
		parsed, err := models.ParseJobStatus(s)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
		}
		status = parsed
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs, err := store.ListJobs(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if cmd.Bool("json") {
		views := make([]jobView, len(jobs))
		for i, job := range jobs {
			views[i] = newJobView(job)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(jobs) == 0 {
		r.writePlain("%s\n", r.paint(styles.help, "No jobs found"))
		return nil
	}

	r.writePlain("%s\n", r.jobsTable(jobs))
	r.writePlain("%d job(s)\n", len(jobs))
	return nil
}

func (r *Runner) jobsTable(jobs []models.PlaylistJob) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "ID", "Status", "Retries", "URL", "Updated"})

	for _, job := range jobs {
		tw.AppendRow(table.Row{
			job.Sequence,
			shortID(job.ID),
			r.paint(styles.statusStyle(job.Status), job.Status.String()),
			fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
			job.URL,
			job.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 60},
	})
	return tw.Render()
}

// JobsStatus prints one job with its stored tracks and result record.
func (r *Runner) JobsStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := store.GetJob(ctx, id)
	if err != nil {
		return err
	}

	tracks, err := store.ListTracks(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	view := jobStatusView{Job: newJobView(*job), Tracks: tracks}
	if job.Status == models.StatusCompleted {
		if view.Record, err = store.GetResultRecord(ctx, id); err != nil {
			r.logger.Warn("no result record for completed job", "job_id", id, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Job #%d", job.Sequence))
	r.writePlain("ID:       %s\n", job.ID)
	r.writePlain("URL:      %s\n", job.URL)
	r.writePlain("Status:   %s\n", r.paint(styles.statusStyle(job.Status), job.Status.String()))
	r.writePlain("Retries:  %d/%d\n", job.RetryCount, job.MaxRetries)
	if job.OwnerID != "" {
		r.writePlain("Owner:    %s\n", job.OwnerID)
	}
	if job.ErrorMessage != "" {
		r.writePlain("Error:    %s\n", r.paint(styles.err, job.ErrorMessage))
	}
	if job.ProcessedAt != nil {
		r.writePlain("Finished: %s\n", job.ProcessedAt.Local().Format(time.RFC3339))
	}

	if view.Record != nil {
		r.writePlainln("Playlist: %s", view.Record.Title)
		if view.Record.ChannelTitle != "" {
			r.writePlain("Channel:  %s\n", view.Record.ChannelTitle)
		}
	}

	if len(tracks) > 0 {
		r.writePlainln("Tracks (%d)", len(tracks))
		for _, t := range tracks {
			line := fmt.Sprintf("%3d. %s %s - %s", t.TrackNumber, t.Timestamp, t.Artist, t.Title)
			if t.Resolved() {
				line += " " + r.paint(styles.help, t.ResolvedURL)
			}
			r.writePlain("%s\n", line)
		}
	}
	return nil
}

// JobsRetry moves failed jobs back to pending. Without ids every failed job is requeued.
func (r *Runner) JobsRetry(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.RetryFailed(ctx, cmd.Args().Slice()...)
	if err != nil {
		return fmt.Errorf("failed to requeue jobs: %w", err)
	}

	r.logger.Info("failed jobs requeued", "count", n)
	r.writePlain("%s %d job(s) requeued\n", r.paint(styles.ok, "✓"), n)
	return nil
}

// JobsCleanup deletes completed jobs older than --days.
func (r *Runner) JobsCleanup(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	days := cmd.Int("days")
	if days <= 0 {
		return fmt.Errorf("%w: --days must be positive", shared.ErrInvalidArgument)
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.Cleanup(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to clean up jobs: %w", err)
	}

	r.logger.Info("old jobs deleted", "count", n, "days", days)
	r.writePlain("%s %d job(s) deleted\n", r.paint(styles.ok, "✓"), n)
	return nil
}

// validatePageURL accepts absolute http(s) addresses only.
func validatePageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q is not an http(s) url", shared.ErrInvalidArgument, raw)
	}
	return nil
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
