package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
)

// ReplaceTracks deletes the job's stored tracks and inserts tracks in one transaction.
func (r *JobRepository) ReplaceTracks(ctx context.Context, jobID string, tracks []models.MusicTrack) error {
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repoErr("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM processed_tracks WHERE job_id = ?`), jobID); err != nil {
		return repoErr("delete tracks", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(`
		INSERT INTO processed_tracks (job_id, track_number, start_time, artist, title, youtube_url, video_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return repoErr("prepare track insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range tracks {
		_, err := stmt.ExecContext(ctx,
			jobID,
			t.TrackNumber,
			t.Timestamp,
			t.Artist,
			t.Title,
			nullString(t.ResolvedURL),
			string(models.ParseVideoType(string(t.VideoType))),
			now,
		)
		if err != nil {
			return repoErr(fmt.Sprintf("insert track %d", t.TrackNumber), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return repoErr("commit tracks", err)
	}

	return nil
}

// ListTracks returns the job's stored tracks ordered by track number.
func (r *JobRepository) ListTracks(ctx context.Context, jobID string) ([]models.MusicTrack, error) {
	query := r.dialect.Rebind(`
		SELECT track_number, start_time, artist, title, youtube_url, video_type
		FROM processed_tracks
		WHERE job_id = ?
		ORDER BY track_number
	`)

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, repoErr("query tracks", err)
	}
	defer rows.Close()

	tracks := []models.MusicTrack{}
	for rows.Next() {
		var (
			t         models.MusicTrack
			url       sql.NullString
			videoType string
		)
		if err := rows.Scan(&t.TrackNumber, &t.Timestamp, &t.Artist, &t.Title, &url, &videoType); err != nil {
			return nil, repoErr("scan track", err)
		}
		t.ResolvedURL = url.String
		t.VideoType = models.ParseVideoType(videoType)
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, repoErr("row iteration", err)
	}

	return tracks, nil
}

// SaveResultRecord upserts the normalized record for job, keyed by [models.RecordID].
func (r *JobRepository) SaveResultRecord(ctx context.Context, bundle *models.ResultBundle, job models.PlaylistJob) error {
	record := models.NewPlaylistRecord(bundle, job)

	channel, err := json.Marshal(record.Channel)
	if err != nil {
		return fmt.Errorf("failed to marshal channel info: %w", err)
	}
	tracks, err := json.Marshal(record.Tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal tracks: %w", err)
	}

	query := r.dialect.Rebind(`
		INSERT INTO station_playlists (
			id, job_id, title, description, thumbnail_url, channel_title, channel_id,
			channel_info, tracks, owner_id, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			thumbnail_url = excluded.thumbnail_url,
			channel_title = excluded.channel_title,
			channel_id = excluded.channel_id,
			channel_info = excluded.channel_info,
			tracks = excluded.tracks,
			owner_id = excluded.owner_id
	`)

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.JobID,
		record.Title,
		record.Description,
		record.ThumbnailURL,
		record.ChannelTitle,
		record.ChannelID,
		string(channel),
		string(tracks),
		record.OwnerID,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return repoErr("upsert result record", err)
	}

	return nil
}

// GetResultRecord retrieves the record written for jobID.
func (r *JobRepository) GetResultRecord(ctx context.Context, jobID string) (*models.PlaylistRecord, error) {
	query := r.dialect.Rebind(`
		SELECT id, job_id, title, description, thumbnail_url, channel_title, channel_id,
			channel_info, tracks, owner_id, created_at
		FROM station_playlists
		WHERE id = ?
	`)

	var (
		record  models.PlaylistRecord
		channel []byte
		tracks  []byte
	)

	err := r.db.QueryRowContext(ctx, query, models.RecordID(jobID)).Scan(
		&record.ID, &record.JobID, &record.Title, &record.Description, &record.ThumbnailURL,
		&record.ChannelTitle, &record.ChannelID, &channel, &tracks, &record.OwnerID, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no result record for %s", shared.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, repoErr("scan result record", err)
	}

	if err := json.Unmarshal(channel, &record.Channel); err != nil {
		return nil, fmt.Errorf("failed to decode channel info: %w", err)
	}
	if err := json.Unmarshal(tracks, &record.Tracks); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}

	return &record, nil
}
