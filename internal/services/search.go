package services

import (
	"context"
	"strings"
)

// SearchResult is the top hit of a search.
type SearchResult struct {
	Title string
	URL   string
}

// Searcher finds the first video result for a free-text query.
//
// A search that completes with no hit returns ok == false and a nil error.
type Searcher interface {
	Search(ctx context.Context, query string) (result SearchResult, ok bool, err error)
}

// SearcherFunc adapts a function to [Searcher].
type SearcherFunc func(ctx context.Context, query string) (SearchResult, bool, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) (SearchResult, bool, error) {
	return f(ctx, query)
}

const watchURL = "https://www.youtube.com/watch?v="

// WatchURL returns the canonical watch page for a video id.
func WatchURL(videoID string) string {
	return watchURL + videoID
}

// absoluteURL turns a site-relative link from the results page into an absolute one.
func absoluteURL(href string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return "https://www.youtube.com" + href
	default:
		return "https://www.youtube.com/" + href
	}
}
