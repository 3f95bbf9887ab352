// Package tracklist extracts timestamped "artist - title" lines from free-form text.
package tracklist

import (
	"regexp"
	"strings"

	"github.com/desertthunder/wavecrawl/internal/models"
)

var (
	timestampPattern = regexp.MustCompile(`\d{1,2}:\d{2}`)
	trackPattern     = regexp.MustCompile(`(\d{1,2}:\d{2})\s*(.+?)\s*-\s*(.+)`)
)

// Parse returns the qualifying track lines of text in order, numbered from 1.
//
// A line qualifies when it carries a clock timestamp followed by "artist - title".
// Lines that do not qualify are skipped; text with no qualifying line yields an empty slice.
// Returned tracks are unresolved.
func Parse(text string) []models.MusicTrack {
	tracks := []models.MusicTrack{}
	for _, line := range strings.Split(text, "\n") {
		track, ok := parseLine(line)
		if !ok {
			continue
		}
		track.TrackNumber = len(tracks) + 1
		tracks = append(tracks, track)
	}
	return tracks
}

func parseLine(line string) (models.MusicTrack, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.MusicTrack{}, false
	}

	stamp := timestampPattern.FindString(line)
	if stamp == "" {
		return models.MusicTrack{}, false
	}

	m := trackPattern.FindStringSubmatch(line)
	if m == nil {
		return models.MusicTrack{}, false
	}

	artist := strings.TrimSpace(m[2])
	title := strings.TrimSpace(m[3])
	if artist == "" || title == "" {
		return models.MusicTrack{}, false
	}

	return models.MusicTrack{
		Timestamp: stamp,
		Artist:    artist,
		Title:     title,
		VideoType: models.VideoTypeUnknown,
	}, true
}
