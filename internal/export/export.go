// Package export writes lookup responses as JSON, YAML, CSV or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by the XLSX format.
const SheetName = "zipcodes"

// Columns is the header of the tabular formats.
var Columns = []string{
	"zip", "type", "primary_city", "acceptable_cities", "state", "county",
	"timezone", "area_codes", "country", "latitude", "longitude",
	"estimated_population", "distance",
}

// ParseFormat validates a format name. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatCSV, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Tabular reports whether the format writes rows rather than the response
// document.
func (f Format) Tabular() bool {
	return f == FormatCSV || f == FormatXLSX
}

// Write encodes resp to w. JSON and YAML write the whole response document;
// CSV and XLSX write one row per matched record.
func Write(w io.Writer, f Format, resp model.Response) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, resp)
	case FormatYAML:
		return writeYAML(w, resp)
	case FormatCSV:
		return writeCSV(w, resp.Matches())
	case FormatXLSX:
		return writeXLSX(w, resp.Matches())
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// WriteValue encodes an arbitrary document in a non-tabular format.
func WriteValue(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatYAML:
		return writeYAML(w, v)
	default:
		return eris.Errorf("export: format %q cannot encode this document", f)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "export: flush yaml")
	}
	return nil
}

func row(m model.Match) []string {
	return []string{
		m.Zip,
		m.Type,
		m.PrimaryCity,
		m.AcceptableCities,
		m.State,
		m.County,
		m.Timezone,
		m.AreaCodes,
		m.Country,
		formatFloat(float64(m.Latitude)),
		formatFloat(float64(m.Longitude)),
		string(m.EstimatedPopulation),
		formatFloat(m.Distance),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeCSV(w io.Writer, matches []model.Match) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, m := range matches {
		if err := cw.Write(row(m)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", m.Zip)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// numericColumns are written as number cells in XLSX output.
var numericColumns = map[int]bool{9: true, 10: true, 12: true}

func writeXLSX(w io.Writer, matches []model.Match) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for _, m := range matches {
		r := sheet.AddRow()
		for i, v := range row(m) {
			cell := r.AddCell()
			if numericColumns[i] {
				n, _ := strconv.ParseFloat(v, 64)
				cell.SetFloat(n)
				continue
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}
