package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/wavecrawl/internal/shared"
)

const defaultDataAPIURL = "https://www.googleapis.com/youtube/v3"

// DataAPISearcher searches videos with the YouTube Data API v3 search.list endpoint.
type DataAPISearcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDataAPISearcher creates a searcher authenticated with apiKey.
func NewDataAPISearcher(apiKey string, client *http.Client) *DataAPISearcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &DataAPISearcher{baseURL: defaultDataAPIURL, apiKey: apiKey, httpClient: client}
}

// WithBaseURL points the searcher at another API root, used by tests.
func (d *DataAPISearcher) WithBaseURL(u string) *DataAPISearcher {
	d.baseURL = u
	return d
}

type dataAPISearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns the first video of search.list for query.
func (d *DataAPISearcher) Search(ctx context.Context, query string) (SearchResult, bool, error) {
	if d.apiKey == "" {
		return SearchResult{}, false, fmt.Errorf("%w: data api key", shared.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", "1")
	params.Set("q", query)
	params.Set("key", d.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return SearchResult{}, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return SearchResult{}, false, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	var body dataAPISearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SearchResult{}, false, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if body.Error != nil {
			return SearchResult{}, false, fmt.Errorf("%w: data api status %d: %s", shared.ErrAPIRequest, resp.StatusCode, body.Error.Message)
		}
		return SearchResult{}, false, fmt.Errorf("%w: data api status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		return SearchResult{Title: item.Snippet.Title, URL: WatchURL(item.ID.VideoID)}, true, nil
	}
	return SearchResult{}, false, nil
}
