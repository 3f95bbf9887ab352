package models

import (
	"fmt"
	"time"
)

// VideoType classifies a resolved media link.
type VideoType string

const (
	VideoTypeMusicVideo VideoType = "music_video"
	VideoTypeAudio      VideoType = "audio"
	VideoTypeLive       VideoType = "live"
	VideoTypeUnknown    VideoType = "unknown"
)

// ParseVideoType converts a persisted string into a [VideoType]; unrecognized values map to unknown.
func ParseVideoType(s string) VideoType {
	switch vt := VideoType(s); vt {
	case VideoTypeMusicVideo, VideoTypeAudio, VideoTypeLive:
		return vt
	default:
		return VideoTypeUnknown
	}
}

// MusicTrack is one entry of an extracted track list.
type MusicTrack struct {
	TrackNumber int       `json:"track_number"`
	Timestamp   string    `json:"timestamp"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	ResolvedURL string    `json:"youtube_url,omitempty"`
	VideoType   VideoType `json:"video_type"`
}

// Resolved reports whether the track has a media link.
func (t MusicTrack) Resolved() bool {
	return t.ResolvedURL != ""
}

// Validate checks the track's invariants.
func (t MusicTrack) Validate() error {
	if t.TrackNumber < 1 {
		return fmt.Errorf("track number must be positive, got %d", t.TrackNumber)
	}
	if t.Artist == "" || t.Title == "" {
		return fmt.Errorf("track %d: artist and title are required", t.TrackNumber)
	}
	return nil
}

// Resolution is the outcome of looking up one track.
type Resolution struct {
	URL       string
	VideoType VideoType
}

// Unresolved is the resolution recorded when a lookup finds nothing.
func Unresolved() Resolution {
	return Resolution{VideoType: VideoTypeUnknown}
}

// ChannelInfo describes the uploader of a crawled page.
type ChannelInfo struct {
	Name            string `json:"name"`
	Handle          string `json:"handle"`
	SubscriberCount string `json:"subscriber_count"`
	ProfileImageURL string `json:"profile_image_url"`
}

// TracklistSource names where a track list was read from.
type TracklistSource string

const (
	SourcePinnedComment TracklistSource = "pinned_comment"
	SourceDescription   TracklistSource = "description"
)

// ResultBundle is the full output of crawling one page.
type ResultBundle struct {
	SourceURL    string          `json:"source_url"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ThumbnailURL string          `json:"thumbnail_url"`
	Channel      ChannelInfo     `json:"channel_info"`
	Tracks       []MusicTrack    `json:"tracks"`
	Source       TracklistSource `json:"tracklist_source"`
}

// ResolvedCount returns the number of tracks with a media link.
func (b *ResultBundle) ResolvedCount() int {
	n := 0
	for _, t := range b.Tracks {
		if t.Resolved() {
			n++
		}
	}
	return n
}

// DefaultPlaylistTitle is used when the crawled page has no title.
const DefaultPlaylistTitle = "Unknown Playlist"

// PlaylistRecord is the persisted, normalized result of a completed job.
type PlaylistRecord struct {
	ID           string       `json:"id"`
	JobID        string       `json:"job_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	ThumbnailURL string       `json:"thumbnail_url"`
	ChannelTitle string       `json:"channel_title"`
	ChannelID    string       `json:"channel_id"`
	Channel      ChannelInfo  `json:"channel_info"`
	Tracks       []MusicTrack `json:"tracks"`
	OwnerID      string       `json:"user_id"`
	CreatedAt    time.Time    `json:"created_at"`
}

// RecordID returns the result record key for a job.
func RecordID(jobID string) string {
	return "batch_" + jobID
}

// NewPlaylistRecord normalizes a bundle into the record stored for job.
func NewPlaylistRecord(bundle *ResultBundle, job PlaylistJob) *PlaylistRecord {
	title := bundle.Title
	if title == "" {
		title = DefaultPlaylistTitle
	}
	return &PlaylistRecord{
		ID:           RecordID(job.ID),
		JobID:        job.ID,
		Title:        title,
		Description:  bundle.Description,
		ThumbnailURL: bundle.ThumbnailURL,
		ChannelTitle: bundle.Channel.Name,
		ChannelID:    bundle.Channel.Handle,
		Channel:      bundle.Channel,
		Tracks:       bundle.Tracks,
		OwnerID:      job.OwnerID,
		CreatedAt:    time.Now(),
	}
}
