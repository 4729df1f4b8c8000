package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/config"
	"github.com/sells-group/zipcode-cli/internal/export"
	"github.com/sells-group/zipcode-cli/internal/model"
	"github.com/sells-group/zipcode-cli/internal/store"
)

// Import modes.
const (
	importReplace = "replace"
	importMerge   = "merge"
)

var (
	importTo     string
	importMode   string
	statsFormat  string
	statusStore  string
	statusFormat string
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage the postal-code dataset",
}

var datasetImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the configured source into SQLite or Postgres",
	Long:  "Reads the configured dataset source and writes its records into the --to store, replacing or merging with what is there.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		if importMode != importReplace && importMode != importMerge {
			return eris.Errorf("dataset import: unknown mode %q (want replace or merge)", importMode)
		}
		if importTo == cfg.Dataset.Source {
			return eris.Errorf("dataset import: source and destination are both %s", importTo)
		}
		ctx := cmd.Context()

		src, closeSrc, err := openSource(ctx, cfg.Dataset)
		if err != nil {
			return err
		}
		defer closeSrc()

		records, err := src.Fetch(ctx)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, importTo, cfg.Dataset)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var imp *store.Import
		if importMode == importMerge {
			imp, err = st.MergeRecords(ctx, src.Name(), records)
		} else {
			imp, err = st.ReplaceRecords(ctx, src.Name(), records)
		}
		if err != nil {
			return err
		}

		zap.L().Info("dataset imported",
			zap.String("import_id", imp.ID),
			zap.String("source", imp.Source),
			zap.String("to", importTo),
			zap.String("mode", importMode),
			zap.Int("records", imp.Records),
		)
		return export.WriteValue(cmd.OutOrStdout(), export.FormatJSON, imp)
	},
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		format, err := export.ParseFormat(statsFormat)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		accessor, closeFn, err := openSource(ctx, cfg.Dataset)
		if err != nil {
			return err
		}
		defer closeFn()

		records, err := accessor.Fetch(ctx)
		if err != nil {
			return err
		}
		return export.WriteValue(cmd.OutOrStdout(), format, model.Summarize(records))
	},
}

var datasetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest import into a store",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(statusFormat)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx, statusStore, cfg.Dataset)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		imp, err := st.LatestImport(ctx)
		if err != nil {
			return err
		}
		if imp == nil {
			return eris.Errorf("dataset status: no imports in %s", statusStore)
		}
		return export.WriteValue(cmd.OutOrStdout(), format, imp)
	},
}

func init() {
	datasetImportCmd.Flags().StringVar(&importTo, "to", config.SourceSQLite, "destination store: sqlite or postgres")
	datasetImportCmd.Flags().StringVar(&importMode, "mode", importReplace, "replace the stored dataset or merge into it")
	datasetStatsCmd.Flags().StringVar(&statsFormat, "format", "json", "output format: json or yaml")
	datasetStatusCmd.Flags().StringVar(&statusStore, "store", config.SourceSQLite, "store to inspect: sqlite or postgres")
	datasetStatusCmd.Flags().StringVar(&statusFormat, "format", "json", "output format: json or yaml")

	datasetCmd.AddCommand(datasetImportCmd, datasetStatsCmd, datasetStatusCmd)
	rootCmd.AddCommand(datasetCmd)
}
