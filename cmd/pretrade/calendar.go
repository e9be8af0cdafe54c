package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repo-pretrade/internal/export"
	"repo-pretrade/internal/logger"
)

func calendarCmd() *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "calendar [\"ISIN | AMOUNT\"...]",
		Short: "Build the position-weighted coupon and redemption calendar",
		Long: `Each position is one "ISIN | AMOUNT" line; the amount defaults to 1.
Repeated ISINs are summed.

Examples:
  pretrade calendar "RU000A0JX0J2 | 100" "SU26238RMFS4 | 50"
  pretrade calendar --file positions.txt --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			text := strings.Join(args, "\n")
			if file != "" {
				body, err := readInput(file)
				if err != nil {
					return err
				}
				text += "\n" + string(body)
			}

			svc := initializeServices(ctx, cfg)
			res := svc.calendar.Build(ctx, text)

			if len(res.Invalid) > 0 {
				logger.Warn(ctx, "Invalid position lines skipped", "invalid", res.Invalid)
			}
			if len(res.Failed) > 0 {
				logger.Warn(ctx, "No schedule for some positions", "isins", res.Failed)
			}
			return export.Calendar(os.Stdout, f, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one \"ISIN | AMOUNT\" per line (\"-\" for stdin)")
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, csv or json")

	return cmd
}
