package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

var cmdValidate = &cli.Command{
	Name:  "validate",
	Usage: "Load the configured reference data and list its tables",
	Flags: []cli.Flag{
		refdataFlag,
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the summary as JSON",
		},
	},
	Action: validate,
}

func validate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	summary := catalog.Summary()
	if cmd.Bool("json") {
		return printJSON(out, summary)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tSEX\tAXIS\tROWS\tMIN\tMAX")
	for _, t := range summary {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\t%g\n", t.MeasurementType, t.Sex, t.Axis, t.Rows, t.Min, t.Max)
	}
	fmt.Fprintf(tw, "\n%d tables, %d rows\n", catalog.Len(), catalog.RowCount())
	return tw.Flush()
}
