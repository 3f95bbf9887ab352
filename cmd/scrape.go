package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/wavecrawl/internal/formatter"
	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/desertthunder/wavecrawl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Scrape crawls one page through the pipeline and exports the bundle. Nothing is written to the job store.
func (r *Runner) Scrape(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	pageURL := cmd.Args().First()
	if pageURL == "" {
		return fmt.Errorf("%w: url is required", shared.ErrMissingArgument)
	}
	if err := validatePageURL(pageURL); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var progressCh chan tasks.ProgressUpdate
	var done <-chan struct{}
	if cmd.Bool("verbose") {
		progressCh = make(chan tasks.ProgressUpdate, 50)
		done = r.watchProgress(progressCh)
	}

	bundle, err := r.newPipeline(progressCh).Scrape(ctx, pageURL)
	if progressCh != nil {
		close(progressCh)
		<-done
	}
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	r.logger.Info("page crawled",
		"tracks", len(bundle.Tracks),
		"resolved", bundle.ResolvedCount(),
		"source", bundle.Source,
	)

	output := cmd.String("output")
	if output == "" {
		data, err := formatter.Export(bundle, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	return r.writeExport(ctx, bundle, format, output, cmd.Bool("cover"))
}

func (r *Runner) writeExport(ctx context.Context, bundle *models.ResultBundle, format formatter.Format, output string, cover bool) error {
	switch format {
	case formatter.FormatCSV:
		result, err := formatter.WriteCSVExport(bundle, output)
		if err != nil {
			return err
		}
		r.writePlain("%s Tracks written to %s\n", r.paint(styles.ok, "✓"), result.TracksFile)
		r.writePlain("%s Metadata written to %s\n", r.paint(styles.ok, "✓"), result.MetadataFile)
	case formatter.FormatMarkdown:
		result, err := formatter.WriteMarkdownExport(ctx, bundle, output, formatter.MarkdownOpts{
			Cover:  cover,
			Client: r.httpClient,
			Logger: r.logger,
		})
		if err != nil {
			return err
		}
		r.writePlain("%s Markdown written to %s\n", r.paint(styles.ok, "✓"), result.Directory)
	case formatter.FormatText:
		path, err := formatter.WriteTextExport(bundle, output)
		if err != nil {
			return err
		}
		r.writePlain("%s Track list written to %s\n", r.paint(styles.ok, "✓"), path)
	default:
		path, err := formatter.WriteJSONExport(bundle, output)
		if err != nil {
			return err
		}
		r.writePlain("%s Playlist written to %s\n", r.paint(styles.ok, "✓"), path)
	}
	return nil
}
