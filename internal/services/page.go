package services

import (
	"context"
	"net/url"
	"time"

	"github.com/desertthunder/wavecrawl/internal/browser"
)

const (
	resultsURL     = "https://www.youtube.com/results?search_query="
	firstResultSel = "#contents ytd-video-renderer:first-child h3 a"
)

// PageSearcher searches by loading the results page in an existing rendering session.
//
// The session is borrowed: the caller keeps ownership and closes it.
type PageSearcher struct {
	session browser.Session
	wait    time.Duration
}

// NewPageSearcher binds a searcher to session. wait bounds how long the first result may take to render.
func NewPageSearcher(session browser.Session, wait time.Duration) *PageSearcher {
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &PageSearcher{session: session, wait: wait}
}

// Search navigates to the results page and reads the first video link.
func (p *PageSearcher) Search(ctx context.Context, query string) (SearchResult, bool, error) {
	if err := p.session.Navigate(ctx, resultsURL+url.QueryEscape(query)); err != nil {
		return SearchResult{}, false, err
	}

	if !p.session.WaitFor(ctx, firstResultSel, p.wait) {
		return SearchResult{}, false, nil
	}

	href, ok := p.session.FindAttribute(ctx, firstResultSel, "href")
	if !ok || href == "" {
		return SearchResult{}, false, nil
	}

	title, ok := p.session.FindAttribute(ctx, firstResultSel, "title")
	if !ok || title == "" {
		title, _ = p.session.FindText(ctx, firstResultSel)
	}

	return SearchResult{Title: title, URL: absoluteURL(href)}, true, nil
}
