package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/selim-create/kg-growth/internal/domain/assessment"
	"github.com/selim-create/kg-growth/internal/domain/model"
)

var cmdAssess = &cli.Command{
	Name:  "assess",
	Usage: "Assess one measurement against local reference tables",
	Flags: []cli.Flag{
		refdataFlag,
		&cli.StringFlag{
			Name:     "type",
			Usage:    "weight_for_age, height_for_age, head_circumference_for_age or weight_for_length (wfa, lhfa, hcfa, wfl)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "sex",
			Usage:    "male or female",
			Required: true,
		},
		&cli.FloatFlag{
			Name:     "breakpoint",
			Aliases:  []string{"at"},
			Usage:    "age in days, or length in cm for weight_for_length",
			Required: true,
		},
		&cli.FloatFlag{
			Name:     "observed",
			Usage:    "measured value in kg or cm",
			Required: true,
		},
	},
	Action: assess,
}

func assess(ctx context.Context, cmd *cli.Command) error {
	mt, err := model.ParseMeasurementType(cmd.String("type"))
	if err != nil {
		return err
	}
	sex, err := model.ParseSex(cmd.String("sex"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	engine, err := assessment.NewEngine(
		assessment.WithCatalog(catalog),
		assessment.WithThresholds(cfg.Thresholds()),
		assessment.WithPolicy(cfg.Policy()),
		assessment.WithExtendedZ(cfg.Engine.ExtendedZ),
	)
	if err != nil {
		return err
	}

	res, err := engine.Assess(model.Measurement{
		Type:       mt,
		Sex:        sex,
		Breakpoint: cmd.Float("breakpoint"),
		Observed:   cmd.Float("observed"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, res)
}
