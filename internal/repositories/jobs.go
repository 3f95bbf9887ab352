package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

const jobColumns = `id, sequence, url, status, retry_count, max_retries, error_message, owner_id, created_at, updated_at, processed_at`

// JobRepository stores playlist jobs, processed tracks, and result records in one SQL database.
type JobRepository struct {
	db      *sql.DB
	dialect shared.Dialect
}

// NewJobRepository creates a JobRepository for db. The dialect selects the placeholder style.
func NewJobRepository(db *sql.DB, dialect shared.Dialect) *JobRepository {
	return &JobRepository{db: db, dialect: dialect}
}

// CreateJob inserts a new job with generated ID and sequence.
func (r *JobRepository) CreateJob(ctx context.Context, job *models.PlaylistJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, r.dialect, "playlist_jobs")
	if err != nil {
		return repoErr("generate sequence", err)
	}

	job.ID = shared.GenerateID()
	job.Sequence = sequence
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()

	query := r.dialect.Rebind(`
		INSERT INTO playlist_jobs (id, sequence, url, status, retry_count, max_retries, error_message, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Sequence,
		job.URL,
		string(job.Status),
		job.RetryCount,
		job.MaxRetries,
		nullString(job.ErrorMessage),
		job.OwnerID,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return repoErr("insert job", err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.PlaylistJob, error) {
	query := r.dialect.Rebind(`SELECT ` + jobColumns + ` FROM playlist_jobs WHERE id = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListJobs returns jobs in submission order. An empty status lists every job.
func (r *JobRepository) ListJobs(ctx context.Context, status models.JobStatus) ([]models.PlaylistJob, error) {
	query := `SELECT ` + jobColumns + ` FROM playlist_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY sequence`

	return r.queryJobs(ctx, r.dialect.Rebind(query), args...)
}

// ListPending returns pending jobs below their retry bound in submission order.
//
// A row's own max_retries wins; maxRetries applies to rows stored without a positive bound.
func (r *JobRepository) ListPending(ctx context.Context, maxRetries int) ([]models.PlaylistJob, error) {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	query := r.dialect.Rebind(`
		SELECT ` + jobColumns + `
		FROM playlist_jobs
		WHERE status = ?
		  AND retry_count < CASE WHEN max_retries > 0 THEN max_retries ELSE ? END
		ORDER BY sequence
	`)

	return r.queryJobs(ctx, query, string(models.StatusPending), maxRetries)
}

// UpdateStatus applies update to the job. processed_at is stamped when the job reaches a terminal status.
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, update models.StatusUpdate) error {
	if _, err := models.ParseJobStatus(string(update.Status)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(update.Status), now}

	if update.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, nullString(*update.ErrorMessage))
	}
	if update.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *update.RetryCount)
	}
	if update.Status.Terminal() {
		sets = append(sets, "processed_at = ?")
		args = append(args, now)
	}
	args = append(args, jobID)

	query := r.dialect.Rebind(`UPDATE playlist_jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return repoErr("update job status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return repoErr("get affected rows", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
	}

	return nil
}

// RetryFailed moves failed jobs back to pending with a fresh retry budget.
// With no ids every failed job is requeued. Returns the number of jobs requeued.
func (r *JobRepository) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	query := `
		UPDATE playlist_jobs
		SET status = ?, retry_count = 0, error_message = NULL, processed_at = NULL, updated_at = ?
		WHERE status = ?`
	args := []any{string(models.StatusPending), time.Now().UTC(), string(models.StatusFailed)}

	if len(ids) > 0 {
		query += ` AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return 0, repoErr("requeue failed jobs", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("get affected rows", err)
	}
	return int(rows), nil
}

// Cleanup deletes completed jobs processed before now-olderThan along with their tracks.
// Result records are kept. Returns the number of jobs deleted.
func (r *JobRepository) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := r.dialect.Rebind(`DELETE FROM playlist_jobs WHERE status = ? AND processed_at < ?`)

	result, err := r.db.ExecContext(ctx, query, string(models.StatusCompleted), cutoff)
	if err != nil {
		return 0, repoErr("delete old jobs", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("get affected rows", err)
	}
	return int(rows), nil
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]models.PlaylistJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, repoErr("query jobs", err)
	}
	defer rows.Close()

	jobs := []models.PlaylistJob{}
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, repoErr("row iteration", err)
	}

	return jobs, nil
}

// scanOne scans a single [sql.Row] into a [models.PlaylistJob]
func (r *JobRepository) scanOne(row *sql.Row) (*models.PlaylistJob, error) {
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrJobNotFound
	}
	return job, err
}

// scanRow scans a row from [sql.Rows] into a [models.PlaylistJob]
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.PlaylistJob, error) {
	return scanJob(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.PlaylistJob, error) {
	var (
		job          models.PlaylistJob
		status       string
		errorMessage sql.NullString
		processedAt  sql.NullTime
	)

	err := s.Scan(
		&job.ID, &job.Sequence, &job.URL, &status, &job.RetryCount, &job.MaxRetries,
		&errorMessage, &job.OwnerID, &job.CreatedAt, &job.UpdatedAt, &processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, repoErr("scan job", err)
	}

	if job.Status, err = models.ParseJobStatus(status); err != nil {
		return nil, repoErr("scan job", err)
	}
	job.ErrorMessage = errorMessage.String
	if processedAt.Valid {
		t := processedAt.Time
		job.ProcessedAt = &t
	}

	return &job, nil
}
