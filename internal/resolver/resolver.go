// Package resolver turns (artist, title) pairs into media links by asking a [services.Searcher] for its first result.
//
// Calls are paced: each search starts at least Delay after the previous one through the same [Resolver] finished.
// A failed or empty lookup never surfaces as an error; the track is recorded as unknown with no link.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/services"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"
)

const (
	DefaultDelay   = 2 * time.Second
	DefaultTimeout = 10 * time.Second
)

// Opts configures a [Resolver].
type Opts struct {
	Delay   time.Duration // minimum spacing between searches (default: 2s)
	Timeout time.Duration // per-search deadline (default: 10s)
	Logger  *log.Logger
}

// Resolver resolves tracks one at a time under a shared rate limit.
type Resolver struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	every   rate.Limit
	timeout time.Duration
	logger  *log.Logger
}

// New creates a Resolver. Zero options take their defaults.
func New(opts Opts) *Resolver {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	every := rate.Every(opts.Delay)
	return &Resolver{
		limiter: rate.NewLimiter(every, 1),
		every:   every,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// pace returns the limiter the next search waits on.
func (r *Resolver) pace() *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiter
}

// markDone restarts the spacing window at t with no token available, so the next search waits a full delay
// however long the last one took.
func (r *Resolver) markDone(t time.Time) {
	limiter := rate.NewLimiter(r.every, 1)
	limiter.AllowN(t, 1)

	r.mu.Lock()
	r.limiter = limiter
	r.mu.Unlock()
}

// Resolve looks up "artist title" with searcher and classifies the first hit.
//
// Any failure yields [models.Unresolved]; failures are logged at warn level.
func (r *Resolver) Resolve(ctx context.Context, searcher services.Searcher, artist, title string) models.Resolution {
	res, err := r.resolve(ctx, searcher, artist, title)
	if err != nil {
		r.logger.Warn("track unresolved", "artist", artist, "title", title, "error", err)
		return models.Unresolved()
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, searcher services.Searcher, artist, title string) (models.Resolution, error) {
	if err := r.pace().Wait(ctx); err != nil {
		return models.Resolution{}, fmt.Errorf("%w: %v", shared.ErrResolution, err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := strings.TrimSpace(artist + " " + title)
	hit, ok, err := searcher.Search(searchCtx, query)
	r.markDone(time.Now())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.Resolution{}, fmt.Errorf("%w: %w: %q", shared.ErrResolution, shared.ErrTimeout, query)
	case err != nil:
		return models.Resolution{}, fmt.Errorf("%w: %v", shared.ErrResolution, err)
	case !ok || hit.URL == "":
		return models.Resolution{}, fmt.Errorf("%w: no result for %q", shared.ErrResolution, query)
	}

	return models.Resolution{URL: hit.URL, VideoType: Classify(hit.Title)}, nil
}

// ResolveTracks resolves each track in order, filling ResolvedURL and VideoType in place.
//
// onTrack, when non-nil, is called after each track.
func (r *Resolver) ResolveTracks(ctx context.Context, searcher services.Searcher, tracks []models.MusicTrack, onTrack func(i int, t models.MusicTrack)) {
	for i := range tracks {
		res := r.Resolve(ctx, searcher, tracks[i].Artist, tracks[i].Title)
		tracks[i].ResolvedURL = res.URL
		tracks[i].VideoType = res.VideoType
		if onTrack != nil {
			onTrack(i, tracks[i])
		}
	}
}

var (
	fold          = cases.Fold()
	audioKeywords = []string{"audio", "오디오"}
	liveKeywords  = []string{"live", "라이브"}
)

// Classify derives a [models.VideoType] from a result title. Audio is checked before live.
func Classify(title string) models.VideoType {
	t := fold.String(title)
	switch {
	case containsAny(t, audioKeywords):
		return models.VideoTypeAudio
	case containsAny(t, liveKeywords):
		return models.VideoTypeLive
	default:
		return models.VideoTypeMusicVideo
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
