package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zipcode-cli/internal/export"
	"github.com/sells-group/zipcode-cli/internal/lookup"
	"github.com/sells-group/zipcode-cli/internal/model"
)

var invokeEvent string

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Handle an invocation event document",
	Long:  `Reads an event such as {"queryStringParameters":{"zipcode":"802"}} from a file, or stdin with "-", and prints the response document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		ev, err := readEvent(cmd.InOrStdin(), invokeEvent)
		if err != nil {
			return err
		}

		resp, err := runLookup(cmd.Context(), func(h *lookup.Handler) model.Response {
			return h.Invoke(cmd.Context(), ev)
		})
		if err != nil {
			return err
		}
		// The response document is the result even when it carries a 400.
		return export.Write(cmd.OutOrStdout(), export.FormatJSON, resp)
	},
}

// readEvent decodes an event from path, or from stdin when path is "-".
func readEvent(stdin io.Reader, path string) (lookup.Event, error) {
	var r io.Reader
	switch path {
	case "":
		return lookup.Event{}, eris.New("invoke: --event is required")
	case "-":
		r = stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return lookup.Event{}, eris.Wrap(err, "invoke: open event")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var ev lookup.Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return lookup.Event{}, eris.Wrap(err, "invoke: decode event")
	}
	return ev, nil
}

func init() {
	invokeCmd.Flags().StringVar(&invokeEvent, "event", "", `event JSON file, or "-" for stdin`)
	rootCmd.AddCommand(invokeCmd)
}
