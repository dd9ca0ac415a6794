package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/selim-create/kg-growth/internal/config"
	"github.com/selim-create/kg-growth/internal/probe"
)

var cmdProbe = &cli.Command{
	Name:  "probe",
	Usage: "Submit synthetic visits to a running service and verify the results",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "url", Value: probe.DefaultBaseURL, Usage: "base URL of the service"},
		&cli.IntFlag{Name: "visits", Value: probe.DefaultVisits, Usage: "number of visits to submit"},
		&cli.IntFlag{Name: "children", Value: probe.DefaultChildren, Usage: "number of distinct children"},
		&cli.IntFlag{Name: "workers", Usage: "concurrent submitters (default CPU cores * 2)"},
		&cli.IntFlag{Name: "duplicates", Value: probe.DefaultDuplicates, Usage: "visits to re-submit as duplicates"},
		&cli.IntFlag{Name: "seed", Usage: "generator seed; 0 picks one"},
		&cli.DurationFlag{Name: "timeout", Value: probe.DefaultTimeout, Usage: "HTTP request timeout"},
		&cli.BoolFlag{Name: "history", Value: true, Usage: "read every child's history back"},
		&cli.DurationFlag{Name: "history-wait", Value: probe.DefaultHistoryWait, Usage: "how long to wait for history writes"},
		&cli.BoolFlag{Name: "verbose", Usage: "log every visit"},
	},
	Action: runProbe,
}

func runProbe(ctx context.Context, cmd *cli.Command) error {
	cfg := probe.DefaultConfig()
	cfg.BaseURL = cmd.String("url")
	cfg.Visits = cmd.Int("visits")
	cfg.Children = cmd.Int("children")
	if n := cmd.Int("workers"); n > 0 {
		cfg.Workers = n
	}
	cfg.Duplicates = cmd.Int("duplicates")
	cfg.Seed = uint64(cmd.Int("seed")) //nolint:gosec // seed only
	cfg.Timeout = cmd.Duration("timeout")
	cfg.CheckHistory = cmd.Bool("history")
	cfg.HistoryWait = cmd.Duration("history-wait")
	cfg.Verbose = cmd.Bool("verbose")
	// Classification cut-offs follow the same GROWTH_ configuration as the service.
	if sc, err := config.Load(ctx); err == nil {
		cfg.Thresholds, cfg.Policy = sc.Thresholds(), sc.Policy()
	}

	stats, err := probe.Run(ctx, cfg)
	if stats != nil {
		if perr := printJSON(cmd.Root().Writer, stats); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}
