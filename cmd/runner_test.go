package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/repositories"
	"github.com/desertthunder/wavecrawl/internal/services"
	"github.com/desertthunder/wavecrawl/internal/shared"
	tu "github.com/desertthunder/wavecrawl/internal/testing"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

const testTracklist = "00:01 Hearts2Hearts - Pretty Please\n03:25 NCT WISH - Baby Blue\n05:57 Red Velvet - Day 1"

// setupTestStore creates an in-memory SQLite job store with migrations applied
func setupTestStore(t *testing.T) *repositories.JobRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db, shared.DialectSQLite); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return repositories.NewJobRepository(db, shared.DialectSQLite)
}

// watchPage is a crawlable page whose track list sits in the description.
func watchPage() *tu.FakeSession {
	s := tu.NewFakeSession()
	s.Texts["#owner-name a"] = "K-Pop Station"
	s.SetAttr("#owner-name a", "href", "/@kpopstation")
	s.SetAttr(`meta[property="og:title"]`, "content", "Spring playlist")
	s.Texts["#description"] = testTracklist
	return s
}

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Resolver.Delay = shared.Duration{Duration: time.Millisecond}
	config.Scraper.WaitTimeout = shared.Duration{Duration: 10 * time.Millisecond}
	config.Scraper.ConsentTimeout = shared.Duration{Duration: 10 * time.Millisecond}
	config.Scheduler.LockPath = filepath.Join(t.TempDir(), "wavecrawl.lock")
	return config
}

type testEnv struct {
	runner  *Runner
	store   *repositories.JobRepository
	output  *bytes.Buffer
	session *tu.FakeSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   setupTestStore(t),
		output:  &bytes.Buffer{},
		session: watchPage(),
	}
	env.runner = NewRunner(RunnerOpts{
		Config:   testConfig(t),
		Logger:   shared.NewLogger(io.Discard),
		Output:   env.output,
		Store:    env.store,
		Renderer: &tu.FakeRenderer{Session: env.session},
		Searcher: services.SearcherFunc(func(_ context.Context, q string) (services.SearchResult, bool, error) {
			return services.SearchResult{Title: q + " (Official MV)", URL: "https://www.youtube.com/watch?v=abc"}, true, nil
		}),
	})
	return env
}

// run executes args against the full command tree.
func (e *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	app := &cli.Command{
		Name:     "wavecrawl",
		Commands: e.runner.register(),
		Writer:   io.Discard,
	}
	return app.Run(context.Background(), append([]string{"wavecrawl"}, args...))
}

func (e *testEnv) addJob(t *testing.T, url string) *models.PlaylistJob {
	t.Helper()
	job := models.NewPlaylistJob(url, "", 0)
	if err := e.store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")
			httpClient := &http.Client{}
			renderer := &tu.FakeRenderer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				Input:      input,
				HTTPClient: httpClient,
				Renderer:   renderer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.newRenderer() != renderer {
				t.Error("expected injected renderer to be used")
			}
			if runner.color {
				t.Error("expected color to be off for a buffer")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "run", "jobs", "parse", "scrape"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("paint", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if got := runner.paint(styles.ok, "done"); got != "done" {
			t.Errorf("expected plain text without a terminal, got %q", got)
		}
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("injected store is returned as is", func(t *testing.T) {
		env := newTestEnv(t)

		store, closeStore, err := env.runner.openStore(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer closeStore()

		if store != Store(env.store) {
			t.Error("expected injected store")
		}
	})

	t.Run("sqlite file is created and migrated", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(t.TempDir(), "jobs.db")
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

		store, closeStore, err := runner.openStore(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer closeStore()

		if err := pingStore(ctx, store); err != nil {
			t.Errorf("expected migrated store, got %v", err)
		}
		tu.AssertFileExists(t, config.Database.Path)
	})

	t.Run("supabase without credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Driver = shared.DriverSupabase
		runner := NewRunner(RunnerOpts{Config: config})

		_, closeStore, err := runner.openStore(ctx)
		closeStore()
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantNil  bool
	}{
		{name: "browser searches through the page", provider: shared.SearchBrowser, wantNil: true},
		{name: "proxy", provider: shared.SearchProxy},
		{name: "data api", provider: shared.SearchDataAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Search.Provider = tt.provider
			config.Search.APIKey = "key"
			runner := NewRunner(RunnerOpts{Config: config})

			if got := runner.newSearcher(); (got == nil) != tt.wantNil {
				t.Errorf("newSearcher() = %v, want nil: %v", got, tt.wantNil)
			}
		})
	}
}

func TestJobsCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("add queues pending jobs", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.run(t, "jobs", "add", "--owner", "user-1", "--max-retries", "5",
			"https://www.youtube.com/watch?v=a", "https://www.youtube.com/watch?v=b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		jobs, err := env.store.ListJobs(ctx, models.StatusPending)
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].OwnerID != "user-1" || jobs[0].MaxRetries != 5 {
			t.Errorf("unexpected job fields: %+v", jobs[0])
		}
		if !strings.Contains(env.output.String(), jobs[1].ID) {
			t.Errorf("expected job id in output, got %q", env.output.String())
		}
	})

	t.Run("add uses the configured retry bound", func(t *testing.T) {
		env := newTestEnv(t)
		env.runner.config.Jobs.DefaultMaxRetries = 7

		if err := env.run(t, "jobs", "add", "https://www.youtube.com/watch?v=a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		jobs, _ := env.store.ListJobs(ctx, "")
		if len(jobs) != 1 || jobs[0].MaxRetries != 7 {
			t.Errorf("expected one job with max retries 7, got %+v", jobs)
		}
	})

	t.Run("add rejects bad input", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run(t, "jobs", "add"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := env.run(t, "jobs", "add", "ftp://example.com/x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}

		jobs, _ := env.store.ListJobs(ctx, "")
		if len(jobs) != 0 {
			t.Errorf("expected no jobs created, got %d", len(jobs))
		}
	})

	t.Run("list renders a table", func(t *testing.T) {
		env := newTestEnv(t)
		job := env.addJob(t, "https://www.youtube.com/watch?v=a")

		if err := env.run(t, "jobs", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := env.output.String()
		for _, want := range []string{shortID(job.ID), "pending", "0/3", "1 job(s)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
	})

	t.Run("list as JSON filtered by status", func(t *testing.T) {
		env := newTestEnv(t)
		env.addJob(t, "https://www.youtube.com/watch?v=a")
		failed := env.addJob(t, "https://www.youtube.com/watch?v=b")
		if err := env.store.UpdateStatus(ctx, failed.ID, models.Fail(errors.New("boom"))); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		if err := env.run(t, "jobs", "list", "--status", "failed", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var views []jobView
		if err := json.Unmarshal(env.output.Bytes(), &views); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(views) != 1 || views[0].ID != failed.ID || views[0].ErrorMessage != "boom" {
			t.Errorf("unexpected jobs: %+v", views)
		}
	})

	t.Run("list with unknown status", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "jobs", "list", "--status", "done"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("list with no jobs", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "jobs", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.output.String(), "No jobs found") {
			t.Errorf("expected empty message, got %q", env.output.String())
		}
	})

	t.Run("status shows tracks", func(t *testing.T) {
		env := newTestEnv(t)
		job := env.addJob(t, "https://www.youtube.com/watch?v=a")
		tracks := []models.MusicTrack{
			{TrackNumber: 1, Timestamp: "00:01", Artist: "Hearts2Hearts", Title: "Pretty Please", ResolvedURL: "https://www.youtube.com/watch?v=pp", VideoType: models.VideoTypeMusicVideo},
		}
		if err := env.store.ReplaceTracks(ctx, job.ID, tracks); err != nil {
			t.Fatalf("failed to save tracks: %v", err)
		}

		if err := env.run(t, "jobs", "status", job.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := env.output.String()
		for _, want := range []string{job.ID, "Tracks (1)", "Hearts2Hearts - Pretty Please", "watch?v=pp"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
	})

	t.Run("status of unknown job", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "jobs", "status", "missing"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if err := env.run(t, "jobs", "status"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("retry requeues failed jobs", func(t *testing.T) {
		env := newTestEnv(t)
		job := env.addJob(t, "https://www.youtube.com/watch?v=a")
		if err := env.store.UpdateStatus(ctx, job.ID, models.Fail(errors.New("boom"))); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		if err := env.run(t, "jobs", "retry"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, _ := env.store.GetJob(ctx, job.ID)
		if got.Status != models.StatusPending || got.RetryCount != 0 {
			t.Errorf("expected pending job with reset retries, got %+v", got)
		}
		if !strings.Contains(env.output.String(), "1 job(s) requeued") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("cleanup rejects non-positive days", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "jobs", "cleanup", "--days", "0"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("cleanup keeps recent jobs", func(t *testing.T) {
		env := newTestEnv(t)
		job := env.addJob(t, "https://www.youtube.com/watch?v=a")
		if err := env.store.UpdateStatus(ctx, job.ID, models.Completed()); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		if err := env.run(t, "jobs", "cleanup"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := env.store.GetJob(ctx, job.ID); err != nil {
			t.Errorf("expected recent job to survive, got %v", err)
		}
		if !strings.Contains(env.output.String(), "0 job(s) deleted") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})
}

func TestParseCommand(t *testing.T) {
	t.Run("reads stdin", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Input: strings.NewReader(testTracklist)})
		env := &testEnv{runner: runner, output: output}

		if err := env.run(t, "parse", "--json", "-"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var tracks []models.MusicTrack
		if err := json.Unmarshal(output.Bytes(), &tracks); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(tracks) != 3 || tracks[2].Artist != "Red Velvet" || tracks[2].TrackNumber != 3 {
			t.Errorf("unexpected tracks: %+v", tracks)
		}
	})

	t.Run("reads a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.txt")
		if err := os.WriteFile(path, []byte(testTracklist), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		output := &bytes.Buffer{}
		env := &testEnv{runner: NewRunner(RunnerOpts{Output: output}), output: output}

		if err := env.run(t, "parse", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "NCT WISH") {
			t.Errorf("expected table with tracks, got:\n%s", output.String())
		}
	})

	t.Run("no tracks", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Input: strings.NewReader("Subscribe!\n")})
		env := &testEnv{runner: runner}

		if err := env.run(t, "parse", "-"); !errors.Is(err, shared.ErrNoTracks) {
			t.Errorf("expected ErrNoTracks, got %v", err)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		env := &testEnv{runner: NewRunner(RunnerOpts{Output: &bytes.Buffer{}})}
		if err := env.run(t, "parse"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestScrapeCommand(t *testing.T) {
	pageURL := "https://www.youtube.com/watch?v=station"

	t.Run("exports JSON to stdout", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run(t, "scrape", pageURL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var bundle models.ResultBundle
		if err := json.Unmarshal(env.output.Bytes(), &bundle); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(bundle.Tracks) != 3 || bundle.Channel.Handle != "@kpopstation" {
			t.Errorf("unexpected bundle: %+v", bundle)
		}
		if bundle.Source != models.SourceDescription {
			t.Errorf("expected description source, got %q", bundle.Source)
		}

		jobs, _ := env.store.ListJobs(context.Background(), "")
		if len(jobs) != 0 {
			t.Errorf("expected nothing persisted, got %d jobs", len(jobs))
		}
	})

	t.Run("writes CSV files", func(t *testing.T) {
		env := newTestEnv(t)
		base := filepath.Join(t.TempDir(), "station")

		if err := env.run(t, "scrape", "--format", "csv", "--output", base, pageURL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, base+"_tracks.csv")
		tu.AssertFileExists(t, base+"_metadata.json")
		if !strings.Contains(tu.MustReadFile(t, base+"_tracks.csv"), "Red Velvet") {
			t.Error("expected tracks in CSV")
		}
	})

	t.Run("verbose prints progress", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run(t, "scrape", "--verbose", "--format", "txt", pageURL); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.output.String(), "Playlist: Spring playlist") {
			t.Errorf("expected text export, got:\n%s", env.output.String())
		}
	})

	t.Run("page without tracks", func(t *testing.T) {
		env := newTestEnv(t)
		env.session.Texts["#description"] = "no timestamps here"

		if err := env.run(t, "scrape", pageURL); !errors.Is(err, shared.ErrNoTracks) {
			t.Errorf("expected ErrNoTracks, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run(t, "scrape", "--format", "xml", pageURL); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("once completes pending jobs", func(t *testing.T) {
		env := newTestEnv(t)
		job := env.addJob(t, "https://www.youtube.com/watch?v=station")

		if err := env.run(t, "run", "--once"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := env.store.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.Status != models.StatusCompleted {
			t.Errorf("expected completed job, got %s (%s)", got.Status, got.ErrorMessage)
		}

		tracks, _ := env.store.ListTracks(ctx, job.ID)
		if len(tracks) != 3 {
			t.Errorf("expected 3 stored tracks, got %d", len(tracks))
		}
		if !strings.Contains(env.output.String(), "Completed: 1") {
			t.Errorf("expected pass summary, got:\n%s", env.output.String())
		}
	})

	t.Run("once with a failing page still exits cleanly", func(t *testing.T) {
		env := newTestEnv(t)
		env.session.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
		job := env.addJob(t, "https://www.youtube.com/watch?v=gone")

		if err := env.run(t, "run", "--once"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, _ := env.store.GetJob(ctx, job.ID)
		if got.Status != models.StatusPending || got.RetryCount != 1 {
			t.Errorf("expected job requeued with one retry, got %+v", got)
		}
	})

	t.Run("lock held by another process", func(t *testing.T) {
		env := newTestEnv(t)

		other := flock.New(env.runner.config.Scheduler.LockPath)
		if ok, err := other.TryLock(); err != nil || !ok {
			t.Fatalf("failed to take lock: %v", err)
		}
		defer other.Unlock()

		if err := env.run(t, "run", "--once"); !errors.Is(err, shared.ErrLockHeld) {
			t.Errorf("expected ErrLockHeld, got %v", err)
		}
	})

	t.Run("invalid config fails at startup", func(t *testing.T) {
		config := testConfig(t)
		config.Database.Driver = shared.DriverPostgres
		config.Database.DSN = ""
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		env := &testEnv{runner: runner}

		if err := env.run(t, "run", "--once"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "absent.toml")

		if err := env.run(t, "run", "--once", "--config", path); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestLockPath(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *shared.Config)
		want   string
	}{
		{
			name:   "configured path wins",
			mutate: func(c *shared.Config) { c.Scheduler.LockPath = "/var/run/wavecrawl.lock" },
			want:   "/var/run/wavecrawl.lock",
		},
		{
			name:   "beside the sqlite database",
			mutate: func(c *shared.Config) { c.Database.Path = "/data/wavecrawl.db" },
			want:   "/data/wavecrawl.db.lock",
		},
		{
			name:   "temp dir for remote stores",
			mutate: func(c *shared.Config) { c.Database.Driver = shared.DriverSupabase },
			want:   filepath.Join(os.TempDir(), lockFileName),
		},
		{
			name:   "temp dir for in-memory sqlite",
			mutate: func(c *shared.Config) { c.Database.Path = ":memory:" },
			want:   filepath.Join(os.TempDir(), lockFileName),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := shared.DefaultConfig()
			tt.mutate(config)
			runner := NewRunner(RunnerOpts{Config: config})

			if got := runner.lockPath(); got != tt.want {
				t.Errorf("lockPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	wd := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	defer tu.MustChdir(t, wd)

	env := &testEnv{runner: NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})}
	if err := env.run(t, "setup", "database"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, filepath.Join(dir, "wavecrawl.db"))
}

func TestValidatePageURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{url: "https://www.youtube.com/watch?v=abc"},
		{url: "http://example.com/page"},
		{url: "ftp://example.com/file", wantErr: true},
		{url: "www.youtube.com/watch?v=abc", wantErr: true},
		{url: "://broken", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validatePageURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePageURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("3f2b1c9a-1111-2222-3333-444455556666"); got != "3f2b1c9a" {
		t.Errorf("expected uuid prefix, got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("expected short id untouched, got %q", got)
	}
}
