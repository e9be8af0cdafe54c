package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repo-pretrade/internal/export"
	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/isin"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/risk"
)

func bondsCmd() *cobra.Command {
	var (
		file        string
		workers     int
		overnight   bool
		extraDays   int
		format      string
		onlyFlagged bool
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "bonds [ISIN...]",
		Short: "Resolve bonds and flag key dates inside the REPO horizon",
		Long: `Resolve each ISIN on MOEX ISS, collect maturity, offer and coupon dates,
and flag bonds with any key date inside the horizon.

Examples:
  pretrade bonds RU000A0JX0J2 SU26238RMFS4 --overnight
  pretrade bonds --file basket.csv --extra-days 7 --format csv > out.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			raw := isin.Split(strings.Join(args, " "))
			if file != "" {
				ids, err := identifiersFromFile(file)
				if err != nil {
					return err
				}
				raw = append(raw, ids...)
			}
			if len(raw) == 0 {
				return fmt.Errorf("no identifiers: pass ISINs as arguments or use --file")
			}

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("extra-days") {
				extraDays = cfg.Risk.DefaultExtraDays
			}
			horizon, err := risk.Horizon(overnight, extraDays, cfg)
			if err != nil {
				return err
			}

			opts := []interfaces.RunOption{interfaces.WithHorizon(horizon), interfaces.WithWorkers(workers)}
			if progress {
				opts = append(opts, interfaces.WithProgress(func(done, total int) {
					fmt.Fprintf(os.Stderr, "\rprocessed %d/%d", done, total)
					if done == total {
						fmt.Fprintln(os.Stderr)
					}
				}))
			}

			svc := initializeServices(ctx, cfg)
			res := svc.engine.Run(ctx, raw, opts...)

			if err := export.Records(os.Stdout, f, res, onlyFlagged); err != nil {
				return err
			}
			if f == export.FormatTable {
				if err := export.Summary(os.Stdout, res); err != nil {
					return err
				}
			}
			if rejected := len(res.Malformed) + len(res.BadChecksum); rejected > 0 {
				logger.Warn(ctx, "Some identifiers were rejected",
					"malformed", res.Malformed,
					"bad_checksum", res.BadChecksum,
				)
			}
			if res.Cancelled {
				return ctx.Err()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or text file with identifiers (\"-\" for stdin)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent lookups (config value when 0)")
	cmd.Flags().BoolVar(&overnight, "overnight", false, "use the overnight horizon")
	cmd.Flags().IntVar(&extraDays, "extra-days", 0, "horizon is 1 + extra days when not overnight")
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, csv or json")
	cmd.Flags().BoolVar(&onlyFlagged, "only-flagged", false, "only output bonds inside the horizon")
	cmd.Flags().BoolVar(&progress, "progress", false, "report progress on stderr")

	return cmd
}
