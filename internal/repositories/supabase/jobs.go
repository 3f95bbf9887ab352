package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

const (
	jobsTable     = "playlist_jobs"
	sequenceTable = "playlist_jobs_sequence"
	tracksTable   = "processed_tracks"
	recordsTable  = "station_playlists"

	returnRows    = "return=representation"
	returnMinimal = "return=minimal"
	mergeOnUpsert = "resolution=merge-duplicates"

	sequenceAttempts = 5
)

var errSequenceContention = errors.New("sequence contention")

type jobRow struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	URL          string     `json:"url"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage *string    `json:"error_message"`
	OwnerID      string     `json:"owner_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

func (r jobRow) model() (models.PlaylistJob, error) {
	status, err := models.ParseJobStatus(r.Status)
	if err != nil {
		return models.PlaylistJob{}, fmt.Errorf("%w: %v", shared.ErrRepository, err)
	}
	job := models.PlaylistJob{
		ID:          r.ID,
		Sequence:    r.Sequence,
		URL:         r.URL,
		Status:      status,
		RetryCount:  r.RetryCount,
		MaxRetries:  r.MaxRetries,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ProcessedAt: r.ProcessedAt,
	}
	if r.ErrorMessage != nil {
		job.ErrorMessage = *r.ErrorMessage
	}
	return job, nil
}

type trackRow struct {
	JobID       string    `json:"job_id"`
	TrackNumber int       `json:"track_number"`
	StartTime   string    `json:"start_time"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	YoutubeURL  *string   `json:"youtube_url"`
	VideoType   string    `json:"video_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type recordRow struct {
	ID           string              `json:"id"`
	JobID        string              `json:"job_id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	ThumbnailURL string              `json:"thumbnail_url"`
	ChannelTitle string              `json:"channel_title"`
	ChannelID    string              `json:"channel_id"`
	ChannelInfo  models.ChannelInfo  `json:"channel_info"`
	Tracks       []models.MusicTrack `json:"tracks"`
	OwnerID      string              `json:"owner_id"`
	CreatedAt    time.Time           `json:"created_at"`
}

type sequenceRow struct {
	ID    int `json:"id"`
	Value int `json:"value"`
}

// CreateJob inserts a new job with generated ID and sequence.
func (s *Store) CreateJob(ctx context.Context, job *models.PlaylistJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := s.nextSequence(ctx)
	if err != nil {
		return err
	}

	job.ID = shared.GenerateID()
	job.Sequence = sequence

	row := jobRow{
		ID:         job.ID,
		Sequence:   job.Sequence,
		URL:        job.URL,
		Status:     string(job.Status),
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		OwnerID:    job.OwnerID,
		CreatedAt:  job.CreatedAt.UTC(),
		UpdatedAt:  job.UpdatedAt.UTC(),
	}
	return s.do(ctx, request{method: http.MethodPost, table: jobsTable, body: row, prefer: []string{returnMinimal}}, nil)
}

// nextSequence increments the sequence row with a compare-and-set PATCH, retrying on contention.
func (s *Store) nextSequence(ctx context.Context) (int, error) {
	for range sequenceAttempts {
		var current []sequenceRow
		err := s.do(ctx, request{
			method: http.MethodGet,
			table:  sequenceTable,
			query:  url.Values{"id": {eq(1)}, "select": {"id,value"}},
		}, &current)
		if err != nil {
			return 0, err
		}
		if len(current) == 0 {
			return 0, fmt.Errorf("%w: %s has no row", shared.ErrRepository, sequenceTable)
		}

		next := current[0].Value + 1
		var updated []sequenceRow
		err = s.do(ctx, request{
			method: http.MethodPatch,
			table:  sequenceTable,
			query:  url.Values{"id": {eq(1)}, "value": {eq(current[0].Value)}},
			body:   map[string]int{"value": next},
			prefer: []string{returnRows},
		}, &updated)
		if err != nil {
			return 0, err
		}
		if len(updated) == 1 {
			return next, nil
		}
	}
	return 0, fmt.Errorf("%w: %w", shared.ErrRepository, errSequenceContention)
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*models.PlaylistJob, error) {
	jobs, err := s.queryJobs(ctx, url.Values{"id": {eq(id)}})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return &jobs[0], nil
}

// ListJobs returns jobs in submission order. An empty status lists every job.
func (s *Store) ListJobs(ctx context.Context, status models.JobStatus) ([]models.PlaylistJob, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", eq(status))
	}
	return s.queryJobs(ctx, q)
}

// ListPending returns pending jobs below their retry bound in submission order.
//
// PostgREST cannot compare two columns, so the per-row bound is applied after fetching pending rows.
func (s *Store) ListPending(ctx context.Context, maxRetries int) ([]models.PlaylistJob, error) {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	pending, err := s.queryJobs(ctx, url.Values{"status": {eq(models.StatusPending)}})
	if err != nil {
		return nil, err
	}

	jobs := []models.PlaylistJob{}
	for _, j := range pending {
		bound := j.MaxRetries
		if bound <= 0 {
			bound = maxRetries
		}
		if j.RetryCount < bound {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (s *Store) queryJobs(ctx context.Context, q url.Values) ([]models.PlaylistJob, error) {
	q.Set("select", "*")
	q.Set("order", "sequence.asc")

	var rows []jobRow
	if err := s.do(ctx, request{method: http.MethodGet, table: jobsTable, query: q}, &rows); err != nil {
		return nil, err
	}

	jobs := make([]models.PlaylistJob, 0, len(rows))
	for _, r := range rows {
		job, err := r.model()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateStatus applies update to the job. processed_at is stamped when the job reaches a terminal status.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, update models.StatusUpdate) error {
	if _, err := models.ParseJobStatus(string(update.Status)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	body := map[string]any{
		"status":     string(update.Status),
		"updated_at": now,
	}
	if update.ErrorMessage != nil {
		body["error_message"] = *update.ErrorMessage
	}
	if update.RetryCount != nil {
		body["retry_count"] = *update.RetryCount
	}
	if update.Status.Terminal() {
		body["processed_at"] = now
	}

	var rows []jobRow
	err := s.do(ctx, request{
		method: http.MethodPatch,
		table:  jobsTable,
		query:  url.Values{"id": {eq(jobID)}, "select": {"id"}},
		body:   body,
		prefer: []string{returnRows},
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
	}
	return nil
}

// ReplaceTracks deletes the job's stored tracks and inserts tracks.
//
// PostgREST has no cross-request transaction: a failed insert leaves the job without tracks,
// and the caller marks the job failed.
func (s *Store) ReplaceTracks(ctx context.Context, jobID string, tracks []models.MusicTrack) error {
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}

	err := s.do(ctx, request{
		method: http.MethodDelete,
		table:  tracksTable,
		query:  url.Values{"job_id": {eq(jobID)}},
		prefer: []string{returnMinimal},
	}, nil)
	if err != nil {
		return err
	}

	if len(tracks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]trackRow, 0, len(tracks))
	for _, t := range tracks {
		row := trackRow{
			JobID:       jobID,
			TrackNumber: t.TrackNumber,
			StartTime:   t.Timestamp,
			Artist:      t.Artist,
			Title:       t.Title,
			VideoType:   string(models.ParseVideoType(string(t.VideoType))),
			CreatedAt:   now,
		}
		if t.ResolvedURL != "" {
			u := t.ResolvedURL
			row.YoutubeURL = &u
		}
		rows = append(rows, row)
	}

	return s.do(ctx, request{method: http.MethodPost, table: tracksTable, body: rows, prefer: []string{returnMinimal}}, nil)
}

// ListTracks returns the job's stored tracks ordered by track number.
func (s *Store) ListTracks(ctx context.Context, jobID string) ([]models.MusicTrack, error) {
	var rows []trackRow
	err := s.do(ctx, request{
		method: http.MethodGet,
		table:  tracksTable,
		query:  url.Values{"job_id": {eq(jobID)}, "select": {"*"}, "order": {"track_number.asc"}},
	}, &rows)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.MusicTrack, 0, len(rows))
	for _, r := range rows {
		t := models.MusicTrack{
			TrackNumber: r.TrackNumber,
			Timestamp:   r.StartTime,
			Artist:      r.Artist,
			Title:       r.Title,
			VideoType:   models.ParseVideoType(r.VideoType),
		}
		if r.YoutubeURL != nil {
			t.ResolvedURL = *r.YoutubeURL
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// SaveResultRecord upserts the normalized record for job, keyed by [models.RecordID].
func (s *Store) SaveResultRecord(ctx context.Context, bundle *models.ResultBundle, job models.PlaylistJob) error {
	rec := models.NewPlaylistRecord(bundle, job)
	row := recordRow{
		ID:           rec.ID,
		JobID:        rec.JobID,
		Title:        rec.Title,
		Description:  rec.Description,
		ThumbnailURL: rec.ThumbnailURL,
		ChannelTitle: rec.ChannelTitle,
		ChannelID:    rec.ChannelID,
		ChannelInfo:  rec.Channel,
		Tracks:       rec.Tracks,
		OwnerID:      rec.OwnerID,
		CreatedAt:    rec.CreatedAt.UTC(),
	}
	if row.Tracks == nil {
		row.Tracks = []models.MusicTrack{}
	}

	return s.do(ctx, request{
		method: http.MethodPost,
		table:  recordsTable,
		query:  url.Values{"on_conflict": {"id"}},
		body:   row,
		prefer: []string{mergeOnUpsert, returnMinimal},
	}, nil)
}

// GetResultRecord retrieves the record written for jobID.
func (s *Store) GetResultRecord(ctx context.Context, jobID string) (*models.PlaylistRecord, error) {
	var rows []recordRow
	err := s.do(ctx, request{
		method: http.MethodGet,
		table:  recordsTable,
		query:  url.Values{"id": {eq(models.RecordID(jobID))}, "select": {"*"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no result record for %s", shared.ErrJobNotFound, jobID)
	}

	r := rows[0]
	return &models.PlaylistRecord{
		ID:           r.ID,
		JobID:        r.JobID,
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		ChannelTitle: r.ChannelTitle,
		ChannelID:    r.ChannelID,
		Channel:      r.ChannelInfo,
		Tracks:       r.Tracks,
		OwnerID:      r.OwnerID,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// RetryFailed moves failed jobs back to pending with a fresh retry budget.
// With no ids every failed job is requeued. Returns the number of jobs requeued.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	q := url.Values{"status": {eq(models.StatusFailed)}, "select": {"id"}}
	if len(ids) > 0 {
		q.Set("id", inList(ids))
	}

	body := map[string]any{
		"status":        string(models.StatusPending),
		"retry_count":   0,
		"error_message": nil,
		"processed_at":  nil,
		"updated_at":    time.Now().UTC(),
	}

	var rows []jobRow
	if err := s.do(ctx, request{method: http.MethodPatch, table: jobsTable, query: q, body: body, prefer: []string{returnRows}}, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Cleanup deletes completed jobs processed before now-olderThan. Tracks go with them through the foreign key.
// Returns the number of jobs deleted.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	q := url.Values{
		"status":       {eq(models.StatusCompleted)},
		"processed_at": {"lt." + cutoff},
		"select":       {"id"},
	}

	var rows []jobRow
	if err := s.do(ctx, request{method: http.MethodDelete, table: jobsTable, query: q, prefer: []string{returnRows}}, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
