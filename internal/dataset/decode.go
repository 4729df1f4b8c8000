package dataset

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcode-cli/internal/fetcher"
	"github.com/sells-group/zipcode-cli/internal/model"
)

// Format is the serialization of a dataset file.
type Format string

const (
	FormatAuto     Format = ""
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatGeoNames Format = "geonames"
	FormatXLSX     Format = "xlsx"
	FormatXML      Format = "xml"
)

// xmlRecordElement is the element holding one record in an XML dataset.
const xmlRecordElement = "record"

// geoNamesColumns is the column count of a GeoNames postal-code dump (US.txt).
const geoNamesColumns = 12

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatJSON, FormatCSV, FormatGeoNames, FormatXLSX, FormatXML:
		return f, nil
	default:
		return "", eris.Errorf("dataset: unknown format %q", s)
	}
}

// DetectFormat infers the format from a file name, defaulting to JSON.
func DetectFormat(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".txt", ".tsv":
		return FormatGeoNames
	case ".xlsx":
		return FormatXLSX
	case ".xml":
		return FormatXML
	default:
		return FormatJSON
	}
}

// isDataEntry selects the data file inside a ZIP archive.
func isDataEntry(name string) bool {
	base := strings.ToLower(path.Base(name))
	if strings.HasPrefix(base, "readme") {
		return false
	}
	switch path.Ext(base) {
	case ".json", ".csv", ".txt", ".tsv", ".xlsx", ".xml":
		return true
	}
	return false
}

// Read decodes a dataset stream. The name drives compression and, when format
// is FormatAuto, format detection: "US.zip", "zips.csv.gz", "zips.json".
func Read(ctx context.Context, r io.Reader, name string, format Format) ([]model.Record, error) {
	codec, base := fetcher.DetectCompression(name)
	rc, err := fetcher.Decompress(r, codec)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	var body io.Reader = rc
	if strings.EqualFold(path.Ext(base), ".zip") {
		entry, entryName, err := fetcher.ReadZIPEntry(rc, isDataEntry)
		if err != nil {
			return nil, err
		}
		defer entry.Close() //nolint:errcheck
		body = entry
		base = entryName
	}

	if format == FormatAuto {
		format = DetectFormat(base)
	}
	return Decode(ctx, body, format)
}

// Decode parses records in the given format, preserving file order.
func Decode(ctx context.Context, r io.Reader, format Format) ([]model.Record, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch format {
	case FormatJSON, FormatAuto:
		return decodeJSON(ctx, r)
	case FormatCSV:
		return decodeCSV(ctx, r)
	case FormatGeoNames:
		return decodeGeoNames(ctx, r)
	case FormatXLSX:
		return decodeXLSX(r)
	case FormatXML:
		return decodeXML(ctx, r)
	default:
		return nil, eris.Errorf("dataset: unknown format %q", format)
	}
}

func decodeJSON(ctx context.Context, r io.Reader) ([]model.Record, error) {
	s := fetcher.DecodeJSONArray[model.Record](ctx, r)
	records := []model.Record{}
	for rec := range s.Items {
		records = append(records, rec)
	}
	if err := <-s.Errs; err != nil {
		return nil, err
	}
	return records, nil
}

type csvSetter func(r *model.Record, v string) error

func setString(dst func(*model.Record) *string) csvSetter {
	return func(r *model.Record, v string) error {
		*dst(r) = v
		return nil
	}
}

func setCoordinate(field string, dst func(*model.Record) *model.Coordinate) csvSetter {
	return func(r *model.Record, v string) error {
		if strings.TrimSpace(v) == "" {
			*dst(r) = 0
			return nil
		}
		f, err := model.ParseNumber(field, v)
		if err != nil {
			return err
		}
		*dst(r) = model.Coordinate(f)
		return nil
	}
}

// csvColumns maps accepted header names to record fields.
var csvColumns = map[string]csvSetter{
	"zip":                      setString(func(r *model.Record) *string { return &r.Zip }),
	"zipcode":                  setString(func(r *model.Record) *string { return &r.Zip }),
	"zip_code":                 setString(func(r *model.Record) *string { return &r.Zip }),
	"type":                     setString(func(r *model.Record) *string { return &r.Type }),
	"primary_city":             setString(func(r *model.Record) *string { return &r.PrimaryCity }),
	"city":                     setString(func(r *model.Record) *string { return &r.PrimaryCity }),
	"acceptable_cities":        setString(func(r *model.Record) *string { return &r.AcceptableCities }),
	"state":                    setString(func(r *model.Record) *string { return &r.State }),
	"county":                   setString(func(r *model.Record) *string { return &r.County }),
	"timezone":                 setString(func(r *model.Record) *string { return &r.Timezone }),
	"area_codes":               setString(func(r *model.Record) *string { return &r.AreaCodes }),
	"country":                  setString(func(r *model.Record) *string { return &r.Country }),
	"latitude":                 setCoordinate("latitude", func(r *model.Record) *model.Coordinate { return &r.Latitude }),
	"lat":                      setCoordinate("latitude", func(r *model.Record) *model.Coordinate { return &r.Latitude }),
	"longitude":                setCoordinate("longitude", func(r *model.Record) *model.Coordinate { return &r.Longitude }),
	"lon":                      setCoordinate("longitude", func(r *model.Record) *model.Coordinate { return &r.Longitude }),
	"lng":                      setCoordinate("longitude", func(r *model.Record) *model.Coordinate { return &r.Longitude }),
	"estimated_population":     setPopulation,
	"irs_estimated_population": setPopulation,
	"population":               setPopulation,
}

func setPopulation(r *model.Record, v string) error {
	r.EstimatedPopulation = model.Population(v)
	return nil
}

// tableDecoder maps header-addressed rows onto records.
type tableDecoder struct {
	setters []csvSetter
}

func newTableDecoder(format string, header []string) (*tableDecoder, error) {
	d := &tableDecoder{setters: make([]csvSetter, len(header))}
	hasZip := false
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		d.setters[i] = csvColumns[key]
		if key == "zip" || key == "zipcode" || key == "zip_code" {
			hasZip = true
		}
	}
	if !hasZip {
		return nil, eris.Errorf("%s: header has no zip column", format)
	}
	return d, nil
}

func (d *tableDecoder) record(row []string) (model.Record, error) {
	var rec model.Record
	for i, v := range row {
		if i >= len(d.setters) || d.setters[i] == nil {
			continue
		}
		if err := d.setters[i](&rec, v); err != nil {
			return model.Record{}, err
		}
	}
	return rec, nil
}

func decodeCSV(ctx context.Context, r io.Reader) ([]model.Record, error) {
	s := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})

	header, ok := <-s.Header
	if !ok {
		for range s.Rows {
		}
		if err := <-s.Errs; err != nil {
			return nil, err
		}
		return []model.Record{}, nil
	}

	d, err := newTableDecoder("csv", header)
	if err != nil {
		return nil, err
	}

	records := []model.Record{}
	line := 1
	for row := range s.Rows {
		line++
		rec, err := d.record(row)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
		records = append(records, rec)
	}
	if err := <-s.Errs; err != nil {
		return nil, err
	}
	return records, nil
}

// decodeXLSX reads the first sheet of a workbook laid out like the CSV format.
func decodeXLSX(r io.Reader) ([]model.Record, error) {
	rows, err := fetcher.ReadXLSX(r, fetcher.XLSXOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []model.Record{}, nil
	}

	d, err := newTableDecoder("xlsx", rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := d.record(row)
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: row %d", i+2)
		}
		records = append(records, rec)
	}
	return records, nil
}

// xmlRecord is the element layout of an XML dataset record.
type xmlRecord struct {
	Zip                 string `xml:"zip"`
	Type                string `xml:"type"`
	PrimaryCity         string `xml:"primary_city"`
	AcceptableCities    string `xml:"acceptable_cities"`
	State               string `xml:"state"`
	County              string `xml:"county"`
	Timezone            string `xml:"timezone"`
	AreaCodes           string `xml:"area_codes"`
	Country             string `xml:"country"`
	Latitude            string `xml:"latitude"`
	Longitude           string `xml:"longitude"`
	EstimatedPopulation string `xml:"estimated_population"`
}

func decodeXML(ctx context.Context, r io.Reader) ([]model.Record, error) {
	s := fetcher.DecodeXMLElements[xmlRecord](ctx, r, xmlRecordElement)

	records := []model.Record{}
	var firstErr error
	for x := range s.Items {
		if firstErr != nil {
			continue
		}
		rec := model.Record{
			Zip:                 x.Zip,
			Type:                x.Type,
			PrimaryCity:         x.PrimaryCity,
			AcceptableCities:    x.AcceptableCities,
			State:               x.State,
			County:              x.County,
			Timezone:            x.Timezone,
			AreaCodes:           x.AreaCodes,
			Country:             x.Country,
			EstimatedPopulation: model.Population(strings.TrimSpace(x.EstimatedPopulation)),
		}
		if err := csvColumns["latitude"](&rec, x.Latitude); err != nil {
			firstErr = eris.Wrapf(err, "xml: record %d", len(records)+1)
			continue
		}
		if err := csvColumns["longitude"](&rec, x.Longitude); err != nil {
			firstErr = eris.Wrapf(err, "xml: record %d", len(records)+1)
			continue
		}
		records = append(records, rec)
	}
	if err := <-s.Errs; err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// decodeGeoNames parses the tab-separated GeoNames postal-code export:
// country, postal code, place, admin1 name, admin1 code, admin2 name, admin2
// code, admin3 name, admin3 code, latitude, longitude, accuracy.
func decodeGeoNames(ctx context.Context, r io.Reader) ([]model.Record, error) {
	s := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:       '\t',
		FieldsPerRecord: geoNamesColumns,
		LazyQuotes:      true,
	})

	records := []model.Record{}
	line := 0
	for row := range s.Rows {
		line++
		lat, err := model.ParseNumber("latitude", row[9])
		if err != nil {
			return nil, eris.Wrapf(err, "geonames: line %d", line)
		}
		lon, err := model.ParseNumber("longitude", row[10])
		if err != nil {
			return nil, eris.Wrapf(err, "geonames: line %d", line)
		}
		records = append(records, model.Record{
			Zip:         row[1],
			PrimaryCity: row[2],
			State:       row[4],
			County:      row[5],
			Country:     row[0],
			Latitude:    model.Coordinate(lat),
			Longitude:   model.Coordinate(lon),
		})
	}
	if err := <-s.Errs; err != nil {
		return nil, err
	}
	return records, nil
}
