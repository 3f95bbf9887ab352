// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/wavecrawl/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and job store",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml from the template when missing and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// runCommand starts the reconciliation scheduler
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reconcile pending jobs on a schedule",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single pass and exit",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print pass progress",
			},
		},
		Action: r.Run,
	}
}

// jobsCommand handles job store operations
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage crawl jobs",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Queue page addresses for crawling",
				ArgsUsage: "<url>...",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner recorded on the job and its result",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Attempts before the job fails (default: jobs.default_max_retries)",
					},
				},
				Action: r.JobsAdd,
			},
			{
				Name:  "list",
				Usage: "List jobs in queue order",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Only jobs in this status (pending, processing, completed, failed)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:      "status",
				Usage:     "Show a job with its tracks and result record",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JobsStatus,
			},
			{
				Name:      "retry",
				Usage:     "Move failed jobs back to pending",
				ArgsUsage: "[id...]",
				Flags:     []cli.Flag{configFlag()},
				Action:    r.JobsRetry,
			},
			{
				Name:  "cleanup",
				Usage: "Delete completed jobs older than the given age",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "days",
						Usage: "Age in days",
						Value: 7,
					},
				},
				Action: r.JobsCleanup,
			},
		},
	}
}

func parseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a track list from a file or stdin without crawling",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Parse,
	}
}

func scrapeCommand(r *Runner) *cli.Command {
	formats := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		formats[i] = string(f)
	}

	return &cli.Command{
		Name:      "scrape",
		Usage:     "Crawl one page and export the result without saving it",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Export format (%s)", strings.Join(formats, ", ")),
				Value:   string(formatter.FormatJSON),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path; markdown writes a directory (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "cover",
				Usage: "Download the thumbnail as cover.jpg with markdown output",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print crawl progress",
			},
		},
		Action: r.Scrape,
	}
}
