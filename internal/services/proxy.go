// YouTube Music proxy [Searcher] implementation
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/wavecrawl/internal/shared"
)

const defaultProxyURL string = "http://localhost:8080"

// ProxySearcher searches videos through the ytmusicapi proxy.
type ProxySearcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxySearcher creates a searcher for the proxy at baseURL.
func NewProxySearcher(baseURL string, client *http.Client) *ProxySearcher {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxySearcher{baseURL: baseURL, httpClient: client}
}

type proxyVideo struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

// Search calls GET /api/search?q={query}&filter=videos and returns the first hit.
func (p *ProxySearcher) Search(ctx context.Context, query string) (SearchResult, bool, error) {
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=videos", url.QueryEscape(query))

	var results []proxyVideo
	if err := p.doRequest(ctx, endpoint, &results); err != nil {
		return SearchResult{}, false, err
	}

	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		return SearchResult{Title: r.Title, URL: WatchURL(r.VideoID)}, true, nil
	}
	return SearchResult{}, false, nil
}

func (p *ProxySearcher) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: proxy status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: proxy status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
