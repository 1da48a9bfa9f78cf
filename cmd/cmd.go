// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// organizeCommand runs the full locate, convert and sanitize pass.
func organizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "organize",
		Aliases: []string{"run"},
		Usage:   "Convert every archive under the input tree into a volume in the output tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input root (group/date/unit layout)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output root",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "nprocs",
				Aliases: []string{"n"},
				Usage:   "Number of units processed concurrently (default from config)",
			},
			configFlag(),
			&cli.BoolFlag{
				Name:  "skip-sanitize",
				Usage: "Leave the output tree as produced, without the final sweep",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a per-unit report to this path",
			},
			&cli.StringFlag{
				Name:  "report-format",
				Usage: "Report format: json or csv (inferred from --report when empty)",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view",
			},
			&cli.BoolFlag{
				Name:  "no-ledger",
				Usage: "Do not record the run in the database",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Units started per second, 0 for unlimited (default from config)",
			},
			&cli.DurationFlag{
				Name:  "unit-timeout",
				Usage: "Per-unit deadline, e.g. 90s (default from config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error (default from config)",
			},
		},
		Action: r.Organize,
	}
}

// scanCommand lists units without touching the output tree.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "List the units found under an input tree (dry run)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input root (group/date/unit layout)",
				Required: true,
			},
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Scan,
	}
}

// sanitizeCommand runs the final sweep on its own.
func sanitizeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sanitize",
		Usage: "Remove files outside the allow-list and empty directories from an output tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output root to sweep",
				Required: true,
			},
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Sanitize,
	}
}

// setupCommand handles setup operations for configuration and the run ledger.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Destination of the configuration file",
						Value: defaultConfigPath,
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// historyCommand reads past runs from the ledger.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded runs",
		Commands: []*cli.Command{
			{
				Name:  "runs",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryRuns,
			},
			{
				Name:  "show",
				Usage: "Show the unit outcomes of one run",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "run",
						Usage:    "Run ID or sequence number",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include completed units without warnings",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}
