package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/export"
	"github.com/sells-group/zipcode-cli/internal/lookup"
	"github.com/sells-group/zipcode-cli/internal/model"
	"github.com/sells-group/zipcode-cli/internal/monitoring"
	"github.com/sells-group/zipcode-cli/internal/query"
)

var (
	queryFormat string
	queryOutput string
)

// queryFlags maps CLI flag names onto lookup parameters.
var queryFlags = []struct {
	flag  string
	param string
	usage string
}{
	{"zipcode", query.ParamZipcode, "zip substring to match"},
	{"city-name", query.ParamCityName, "city substring to match, case-insensitive"},
	{"latitude", query.ParamLatitude, "latitude of the nearest-zip search"},
	{"longitude", query.ParamLongitude, "longitude of the nearest-zip search"},
	{"type", query.ParamType, "filter: zip type substring"},
	{"state", query.ParamState, "filter: state substring"},
	{"county", query.ParamCounty, "filter: county substring"},
	{"country", query.ParamCountry, "filter: country substring"},
	{"timezone", query.ParamTimezone, "filter: timezone substring"},
	{"population-greater-than", query.ParamPopulationGreaterThan, "filter: minimum estimated population (exclusive)"},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Look up postal codes",
	Long:  "Runs one lookup against the configured dataset. The first of zipcode, city-name, latitude/longitude, or the filter flags selects the mode.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}
		format, err := export.ParseFormat(queryFormat)
		if err != nil {
			return err
		}

		params := query.Params{}
		for _, f := range queryFlags {
			if v, _ := cmd.Flags().GetString(f.flag); v != "" {
				params[f.param] = v
			}
		}

		resp, err := runLookup(cmd.Context(), func(h *lookup.Handler) model.Response {
			return h.Handle(cmd.Context(), params)
		})
		if err != nil {
			return err
		}
		return writeResponse(cmd.OutOrStdout(), queryOutput, format, resp)
	},
}

// runLookup opens the dataset, installs tracing and runs fn with a handler.
func runLookup(ctx context.Context, fn func(*lookup.Handler) model.Response) (model.Response, error) {
	shutdown, err := monitoring.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return model.Response{}, err
	}
	defer monitoring.ShutdownTracing(context.WithoutCancel(ctx), shutdown)

	accessor, closeFn, err := openAccessor(ctx, cfg)
	if err != nil {
		return model.Response{}, err
	}
	defer closeFn()

	return fn(lookup.NewHandler(accessor)), nil
}

// writeResponse encodes resp to path, or to stdout when path is empty. A
// non-200 response is written and then reported as an error.
func writeResponse(stdout io.Writer, path string, format export.Format, resp model.Response) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "query: create output")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	if err := export.Write(w, format, resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		zap.L().Error("lookup failed", zap.String("error", resp.ErrorMessage))
		return eris.Errorf("query: lookup returned status %d", resp.StatusCode)
	}
	return nil
}

func init() {
	for _, f := range queryFlags {
		queryCmd.Flags().String(f.flag, "", f.usage)
	}
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "output format: json, yaml, csv or xlsx")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(queryCmd)
}
