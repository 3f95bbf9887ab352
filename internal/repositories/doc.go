// Package repositories persists crawl jobs, their extracted tracks, and the normalized playlist records.
//
// Tables:
//   - playlist_jobs: submitted page addresses and their lifecycle state
//   - processed_tracks: tracks of the latest successful crawl, keyed by (job_id, track_number)
//   - station_playlists: one record per completed job, keyed by "batch_" + job id
//
// [JobRepository] implements the reconciler's store over database/sql. The sibling supabase package implements the same
// contract over PostgREST.
//
// Timestamps are written in UTC so SQLite's text comparison orders them correctly.
package repositories
