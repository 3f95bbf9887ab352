package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wavecrawl/internal/browser"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/repositories"
	"github.com/desertthunder/wavecrawl/internal/repositories/supabase"
	"github.com/desertthunder/wavecrawl/internal/resolver"
	"github.com/desertthunder/wavecrawl/internal/services"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/desertthunder/wavecrawl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Store is the job store surface used by the commands: the reconciler's needs plus operator queries.
type Store interface {
	tasks.JobStore
	CreateJob(ctx context.Context, job *models.PlaylistJob) error
	GetJob(ctx context.Context, id string) (*models.PlaylistJob, error)
	ListJobs(ctx context.Context, status models.JobStatus) ([]models.PlaylistJob, error)
	ListTracks(ctx context.Context, jobID string) ([]models.MusicTrack, error)
	GetResultRecord(ctx context.Context, jobID string) (*models.PlaylistRecord, error)
	RetryFailed(ctx context.Context, ids ...string) (int, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

var (
	_ Store = (*repositories.JobRepository)(nil)
	_ Store = (*supabase.Store)(nil)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	store      Store
	renderer   browser.Renderer
	searcher   services.Searcher
	color      bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader         // read by "parse -"
	Store      Store             // replaces the configured driver
	Renderer   browser.Renderer  // replaces headless Chrome
	Searcher   services.Searcher // replaces the configured search provider
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		store:      opts.Store,
		renderer:   opts.Renderer,
		searcher:   opts.Searcher,
		color:      shared.IsTerminal(opts.Output),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, jobsCommand, parseCommand, scrapeCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// useConfig swaps in the file named by an explicit --config flag. Without the flag the config loaded at startup stays.
func (r *Runner) useConfig(cmd *cli.Command) error {
	if !cmd.IsSet("config") {
		return nil
	}

	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return err
	}
	if err := shared.ConfigureLogger(r.logger, os.Stderr, config.Log); err != nil {
		return err
	}

	r.config = config
	return nil
}

// openStore returns the injected store or connects the configured driver. SQL stores are migrated on open.
//
// The returned func releases the connection and is safe to call when nothing was opened.
func (r *Runner) openStore(ctx context.Context) (Store, func(), error) {
	noop := func() {}
	if r.store != nil {
		return r.store, noop, nil
	}

	switch r.config.Database.Driver {
	case shared.DriverSupabase:
		store, err := supabase.NewStore(supabase.StoreOpts{
			URL:            r.config.Supabase.URL,
			ServiceRoleKey: r.config.Supabase.ServiceRoleKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		db, dialect, err := shared.OpenDatabase(ctx, r.config.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %w", shared.ErrRepository, err)
		}
		if err := shared.RunMigrations(db, dialect); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}

		closeDB := func() {
			if err := db.Close(); err != nil {
				r.logger.Warn("failed to close database", "error", err)
			}
		}
		return repositories.NewJobRepository(db, dialect), closeDB, nil
	}
}

// newSearcher builds the configured search provider. The browser provider returns nil so the pipeline searches
// through its own page session.
func (r *Runner) newSearcher() services.Searcher {
	if r.searcher != nil {
		return r.searcher
	}

	client := &http.Client{Timeout: r.config.Search.Timeout.Duration}
	switch r.config.Search.Provider {
	case shared.SearchProxy:
		return services.NewProxySearcher(r.config.Search.ProxyURL, client)
	case shared.SearchDataAPI:
		return services.NewDataAPISearcher(r.config.Search.APIKey, client)
	default:
		return nil
	}
}

func (r *Runner) newRenderer() browser.Renderer {
	if r.renderer != nil {
		return r.renderer
	}
	return browser.NewChromeRenderer(browser.ChromeOpts{
		Headless:      r.config.Scraper.Headless,
		ExecPath:      r.config.Scraper.ChromePath,
		ActionTimeout: r.config.Scraper.WaitTimeout.Duration,
		Logger:        r.logger,
	})
}

func (r *Runner) newPipeline(progress chan<- tasks.ProgressUpdate) *tasks.Pipeline {
	return tasks.NewPipeline(tasks.PipelineOpts{
		Renderer: r.newRenderer(),
		Resolver: resolver.New(resolver.Opts{
			Delay:   r.config.Resolver.Delay.Duration,
			Timeout: r.config.Search.Timeout.Duration,
			Logger:  r.logger,
		}),
		Searcher:       r.newSearcher(),
		WaitTimeout:    r.config.Scraper.WaitTimeout.Duration,
		ConsentTimeout: r.config.Scraper.ConsentTimeout.Duration,
		Logger:         r.logger,
		Progress:       progress,
	})
}

// watchProgress prints updates until progressCh is closed. Wait on the returned channel after closing.
func (r *Runner) watchProgress(progressCh <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if update.Total > 0 {
				r.writePlain("[%s %d/%d] %s\n", update.Phase, update.Step, update.Total, update.Message)
			} else {
				r.writePlain("[%s] %s\n", update.Phase, update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.paint(styles.title, title))
	r.writePlain("═══════════════════════════════════════\n")
}
