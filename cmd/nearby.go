package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/export"
	"github.com/sells-group/zipcode-cli/internal/model"
	"github.com/sells-group/zipcode-cli/internal/radius"
)

var (
	nearbyZip     string
	nearbyKm      float64
	nearbyAll     bool
	nearbyWorkers int
	nearbyFormat  string
	nearbyOutput  string
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List postal codes within a radius of a zip",
	Long:  "Finds every zip within --km of --zip, nearest first. With --all, computes the neighbor list of every zip in the dataset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		if !nearbyAll && nearbyZip == "" {
			return eris.New("nearby: --zip or --all is required")
		}
		format, err := export.ParseFormat(nearbyFormat)
		if err != nil {
			return err
		}
		if nearbyAll && format.Tabular() {
			return eris.Errorf("nearby: --all writes json or yaml, not %s", format)
		}

		km := nearbyKm
		if km == 0 {
			km = cfg.Radius.DefaultKm
		}
		workers := nearbyWorkers
		if workers == 0 {
			workers = cfg.Radius.Workers
		}

		ctx := cmd.Context()
		accessor, closeFn, err := openAccessor(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		records, err := accessor.Fetch(ctx)
		if err != nil {
			return err
		}
		ix := radius.NewIndex(records)

		w := cmd.OutOrStdout()
		if nearbyOutput != "" {
			f, err := os.Create(nearbyOutput)
			if err != nil {
				return eris.Wrap(err, "nearby: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if nearbyAll {
			all, err := ix.All(ctx, km, workers)
			if err != nil {
				return err
			}
			zap.L().Info("neighbor lists computed",
				zap.Int("zips", len(all)),
				zap.Float64("km", km),
				zap.Int("workers", workers),
			)
			return export.WriteValue(w, format, all)
		}

		matches, err := ix.Within(nearbyZip, km)
		if err != nil {
			return err
		}
		return export.Write(w, format, model.OK(matches))
	},
}

func init() {
	nearbyCmd.Flags().StringVar(&nearbyZip, "zip", "", "origin zip")
	nearbyCmd.Flags().Float64Var(&nearbyKm, "km", 0, "search radius in kilometres (default from config)")
	nearbyCmd.Flags().BoolVar(&nearbyAll, "all", false, "compute neighbors for every zip")
	nearbyCmd.Flags().IntVar(&nearbyWorkers, "workers", 0, "parallel workers for --all (default from config)")
	nearbyCmd.Flags().StringVar(&nearbyFormat, "format", "json", "output format: json, yaml, csv or xlsx")
	nearbyCmd.Flags().StringVarP(&nearbyOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(nearbyCmd)
}
