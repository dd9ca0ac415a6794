// Command growthctl assesses measurements offline, validates reference data
// and probes a running growth service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/selim-create/kg-growth/internal/adapters/refdata"
	"github.com/selim-create/kg-growth/internal/config"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		os.Stderr.WriteString("growthctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "growthctl",
		Usage:  "WHO growth percentile tooling",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "debug, info, warn or error",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
				return ctx, err
			}
			return ctx, logger.SetLevelString(cmd.String("log-level"))
		},
		Commands: []*cli.Command{
			cmdAssess,
			cmdValidate,
			cmdProbe,
		},
	}
}

var refdataFlag = &cli.StringFlag{
	Name:    "refdata",
	Usage:   "directory of WHO LMS tables; overrides the configured source",
	Sources: cli.EnvVars("GROWTH_REFDATA__ROOT"),
}

// loadConfig reads GROWTH_ configuration and applies the --refdata override.
func loadConfig(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if dir := cmd.String("refdata"); dir != "" {
		cfg.RefData.Driver = config.RefDataDriverFS
		cfg.RefData.Root = dir
	}
	return cfg, nil
}

// loadCatalog builds a catalog from the configured reference source.
func loadCatalog(ctx context.Context, cfg *config.Config) (*reference.Catalog, error) {
	src, err := refdata.Open(ctx, refdata.Config{
		Driver: refdata.Driver(cfg.RefData.Driver),
		Root:   cfg.RefData.Root,
		S3: refdata.S3Config{
			Bucket:          cfg.RefData.S3.Bucket,
			Region:          cfg.RefData.S3.Region,
			Endpoint:        cfg.RefData.S3.Endpoint,
			PathStyle:       cfg.RefData.S3.PathStyle,
			AccessKeyID:     cfg.RefData.S3.AccessKeyID,
			SecretAccessKey: cfg.RefData.S3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open reference source: %w", err)
	}
	return refdata.NewLoader(src, refdata.WithPrefix(cfg.RefData.Prefix)).Load(ctx)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
