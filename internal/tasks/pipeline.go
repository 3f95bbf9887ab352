package tasks

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/browser"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/resolver"
	"github.com/desertthunder/wavecrawl/internal/services"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/desertthunder/wavecrawl/internal/tracklist"
)

// Page selectors. XPath selectors start with "//".
const (
	consentSel     = "//button[contains(., 'Reject all')]"
	channelSel     = "#owner-name a"
	subscriberSel  = "#owner-sub-count"
	avatarSel      = "#avatar img"
	titleMetaSel   = `meta[property="og:title"]`
	titleSel       = "h1.ytd-watch-metadata"
	thumbMetaSel   = `meta[property="og:image"]`
	descriptionSel = "#description"
	readMoreSel    = "//tp-yt-paper-button[contains(., 'Read more') or contains(., '더보기')]"
	commentSel     = "#content-text"
)

const (
	defaultWaitTimeout    = 10 * time.Second
	defaultConsentTimeout = 5 * time.Second
	commentScrollFraction = 0.5
)

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	Renderer       browser.Renderer
	Resolver       *resolver.Resolver
	Searcher       services.Searcher // nil searches through the page session
	WaitTimeout    time.Duration     // element waits (default: 10s)
	ConsentTimeout time.Duration     // consent dialog wait (default: 5s)
	Logger         *log.Logger
	Progress       chan<- ProgressUpdate
}

// Pipeline crawls one page into a [models.ResultBundle].
type Pipeline struct {
	renderer       browser.Renderer
	resolver       *resolver.Resolver
	searcher       services.Searcher
	waitTimeout    time.Duration
	consentTimeout time.Duration
	logger         *log.Logger
	progress       chan<- ProgressUpdate
}

// NewPipeline creates a Pipeline with opts.
func NewPipeline(opts PipelineOpts) *Pipeline {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.ConsentTimeout <= 0 {
		opts.ConsentTimeout = defaultConsentTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(resolver.Opts{Logger: opts.Logger})
	}
	return &Pipeline{
		renderer:       opts.Renderer,
		resolver:       opts.Resolver,
		searcher:       opts.Searcher,
		waitTimeout:    opts.WaitTimeout,
		consentTimeout: opts.ConsentTimeout,
		logger:         opts.Logger,
		progress:       opts.Progress,
	}
}

// Scrape renders pageURL, extracts channel data and a track list, and resolves every track.
//
// Errors are recoverable at the job level: navigation failures, [shared.ErrExtraction] when the channel is missing,
// and [shared.ErrNoTracks] when neither the pinned comment nor the description holds a track list.
func (p *Pipeline) Scrape(ctx context.Context, pageURL string) (*models.ResultBundle, error) {
	if p.renderer == nil {
		return nil, fmt.Errorf("%w: renderer not initialized", shared.ErrServiceUnavailable)
	}

	logger := shared.WithLogger(p.logger, "url", pageURL)

	session, err := p.renderer.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("failed to close session", "error", err)
		}
	}()

	sendProgress(p.progress, loadPageUpdate(pageURL))
	if err := session.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}

	p.dismissConsent(ctx, session, logger)

	channel, err := p.extractChannel(ctx, session)
	if err != nil {
		return nil, err
	}
	sendProgress(p.progress, channelUpdate(channel))

	bundle := &models.ResultBundle{SourceURL: pageURL, Channel: channel}
	p.extractMetadata(ctx, session, bundle)

	tracks, source, err := p.extractTracklist(ctx, session, bundle.Description, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, pageURL)
	}
	bundle.Tracks = tracks
	bundle.Source = source
	sendProgress(p.progress, tracklistUpdate(len(tracks), source))
	logger.Info("track list extracted", "source", source, "tracks", len(tracks))

	searcher := p.searcher
	if searcher == nil {
		searcher = services.NewPageSearcher(session, p.waitTimeout)
	}

	total := len(bundle.Tracks)
	p.resolver.ResolveTracks(ctx, searcher, bundle.Tracks, func(i int, t models.MusicTrack) {
		sendProgress(p.progress, resolveTrackUpdate(i+1, total, t))
	})

	logger.Info("tracks resolved", "resolved", bundle.ResolvedCount(), "total", total)
	return bundle, nil
}

// dismissConsent clicks "Reject all" on the cookie dialog when one shows up.
func (p *Pipeline) dismissConsent(ctx context.Context, s browser.Session, logger *log.Logger) {
	if !s.WaitFor(ctx, consentSel, p.consentTimeout) {
		return
	}
	if err := s.Click(ctx, consentSel); err != nil {
		logger.Debug("consent dialog not dismissed", "error", err)
	}
}

func (p *Pipeline) extractChannel(ctx context.Context, s browser.Session) (models.ChannelInfo, error) {
	if !s.WaitFor(ctx, channelSel, p.waitTimeout) {
		return models.ChannelInfo{}, fmt.Errorf("%w: channel link", shared.ErrExtraction)
	}

	name, ok := s.FindText(ctx, channelSel)
	if !ok || name == "" {
		return models.ChannelInfo{}, fmt.Errorf("%w: channel name", shared.ErrExtraction)
	}

	href, _ := s.FindAttribute(ctx, channelSel, "href")
	handle := channelHandle(href)
	if handle == "" {
		return models.ChannelInfo{}, fmt.Errorf("%w: channel handle", shared.ErrExtraction)
	}

	subs, _ := s.FindText(ctx, subscriberSel)
	avatar, _ := s.FindAttribute(ctx, avatarSel, "src")

	return models.ChannelInfo{
		Name:            name,
		Handle:          handle,
		SubscriberCount: subs,
		ProfileImageURL: avatar,
	}, nil
}

// extractMetadata fills the optional title, thumbnail and description.
func (p *Pipeline) extractMetadata(ctx context.Context, s browser.Session, bundle *models.ResultBundle) {
	if title, ok := s.FindAttribute(ctx, titleMetaSel, "content"); ok && title != "" {
		bundle.Title = title
	} else if title, ok := s.FindText(ctx, titleSel); ok {
		bundle.Title = title
	}
	bundle.ThumbnailURL, _ = s.FindAttribute(ctx, thumbMetaSel, "content")
	bundle.Description, _ = s.FindText(ctx, descriptionSel)
}

// extractTracklist prefers the pinned comment and falls back to the description when the
// comment is unavailable or holds no track lines.
func (p *Pipeline) extractTracklist(ctx context.Context, s browser.Session, description string, logger *log.Logger) ([]models.MusicTrack, models.TracklistSource, error) {
	if text, ok := p.pinnedComment(ctx, s, logger); ok {
		if tracks := tracklist.Parse(text); len(tracks) > 0 {
			return tracks, models.SourcePinnedComment, nil
		}
		logger.Debug("pinned comment has no track lines")
	}

	if tracks := tracklist.Parse(description); len(tracks) > 0 {
		return tracks, models.SourceDescription, nil
	}

	return nil, "", shared.ErrNoTracks
}

func (p *Pipeline) pinnedComment(ctx context.Context, s browser.Session, logger *log.Logger) (string, bool) {
	if err := s.ScrollToFraction(ctx, commentScrollFraction); err != nil {
		logger.Debug("scroll to comments failed", "error", err)
		return "", false
	}

	if !s.WaitFor(ctx, readMoreSel, p.waitTimeout) {
		logger.Debug("pinned comment expander not found")
		return "", false
	}

	if err := s.Click(ctx, readMoreSel); err != nil {
		logger.Debug("pinned comment expander not clickable", "error", err)
		return "", false
	}

	return s.FindText(ctx, commentSel)
}

// channelHandle returns the last path segment of a channel link, e.g. "/@station" -> "@station".
func channelHandle(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	href = strings.TrimRight(href, "/")
	if href == "" {
		return ""
	}
	return path.Base(href)
}
