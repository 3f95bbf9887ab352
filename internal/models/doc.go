// Package models defines domain entities for the wavecrawl playlist crawler.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: rows owned by a job store
//   - [PlaylistJob] : a submitted page address moving through [JobStatus] states
//   - [MusicTrack] : one ordered entry of an extracted track list, keyed by (job id, track number)
//   - [PlaylistRecord] : the normalized playlist written once a job completes
//
// 2. Value Objects: short-lived data passed between the crawler stages
//   - [ChannelInfo] : uploader metadata read from the rendered page
//   - [Resolution] : the outcome of resolving one track to a media link
//   - [ResultBundle] : everything a scrape produces for one job
//   - [StatusUpdate] : a partial job mutation with optional fields
package models
