// Package supabase stores crawl jobs through a Supabase project's PostgREST endpoint.
//
// The project must already hold the tables created by the Postgres migrations (playlist_jobs, processed_tracks,
// station_playlists and playlist_jobs_sequence); this store never creates them. Requests authenticate with the
// service role key, sent both as the apikey header and as a bearer token.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/wavecrawl/internal/shared"
	"golang.org/x/oauth2"
)

const (
	restPath       = "/rest/v1/"
	defaultTimeout = 30 * time.Second
)

// PostgREST codes for a table missing from the schema cache (v12+) and from the database.
const (
	codeTableNotCached = "PGRST205"
	codeUndefinedTable = "42P01"
)

// StoreOpts configures a [Store].
type StoreOpts struct {
	URL            string // project URL, e.g. https://xyz.supabase.co
	ServiceRoleKey string
	HTTPClient     *http.Client // base client; bearer auth is layered on top (default: 30s timeout)
}

// Store implements the job store over PostgREST.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewStore creates a Store. Both the URL and the service role key are required.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.URL == "" || opts.ServiceRoleKey == "" {
		return nil, fmt.Errorf("%w: supabase url and service role key are required", shared.ErrMissingCredentials)
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: defaultTimeout}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.ServiceRoleKey, TokenType: "Bearer"})

	return &Store{
		baseURL: strings.TrimRight(opts.URL, "/") + restPath,
		apiKey:  opts.ServiceRoleKey,
		client:  oauth2.NewClient(ctx, src),
	}, nil
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// request describes one PostgREST call.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer []string
}

// do sends req and decodes a JSON response into result when non-nil.
func (s *Store) do(ctx context.Context, req request, result any) error {
	endpoint := s.baseURL + req.table
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("apikey", s.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if len(req.prefer) > 0 {
		httpReq.Header.Set("Prefer", strings.Join(req.prefer, ","))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrRepository, req.method, req.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			if apiErr.Code == codeTableNotCached || apiErr.Code == codeUndefinedTable {
				return fmt.Errorf("%w: %s %s: table missing, apply the postgres migrations to the supabase project: %s",
					shared.ErrRepository, req.method, req.table, apiErr.Message)
			}
			return fmt.Errorf("%w: %s %s: status %d: %s (%s)", shared.ErrRepository, req.method, req.table, resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrRepository, req.method, req.table, resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", shared.ErrRepository, req.table, err)
	}
	return nil
}

func eq(v any) string { return fmt.Sprintf("eq.%v", v) }

func inList(values []string) string {
	return "in.(" + strings.Join(values, ",") + ")"
}
