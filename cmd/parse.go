package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/desertthunder/wavecrawl/internal/tracklist"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// Parse runs the track list parser over a file, or stdin for "-", and prints the tracks it finds.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	source := cmd.Args().First()
	if source == "" {
		return fmt.Errorf("%w: a file path or - is required", shared.ErrMissingArgument)
	}

	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(r.input)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	tracks := tracklist.Parse(string(data))

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return fmt.Errorf("%w in %s", shared.ErrNoTracks, source)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Time", "Artist", "Title"})
	for _, t := range tracks {
		tw.AppendRow(table.Row{t.TrackNumber, t.Timestamp, t.Artist, t.Title})
	}
	r.writePlain("%s\n", tw.Render())
	return nil
}
