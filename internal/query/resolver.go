package query

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// Mode identifies the query strategy selected for a parameter set.
type Mode string

const (
	ModeZip     Mode = "zipcode"
	ModeCity    Mode = "city"
	ModeNearest Mode = "nearest"
	ModeFilter  Mode = "filter"
	ModeNone    Mode = "none"
)

// NearestUnit is the unit used to rank and report nearest-neighbor distances.
const NearestUnit = Kilometers

// Classify selects the single mode a parameter set runs in. The first present
// group wins even if a later group is also supplied.
func Classify(p Params) Mode {
	switch {
	case p.Has(ParamZipcode):
		return ModeZip
	case p.Has(ParamCityName):
		return ModeCity
	case p.hasAny(ParamLatitude, ParamLongitude):
		return ModeNearest
	case p.hasAny(filterParams...):
		return ModeFilter
	default:
		return ModeNone
	}
}

// Resolve runs the mode selected by p against records. Errors are wrapped in a
// *QueryExecutionError; records are never modified.
func Resolve(p Params, records []model.Record) (model.Response, error) {
	mode := Classify(p)

	data, err := execute(mode, p, records)
	if err != nil {
		return model.Response{}, &QueryExecutionError{Mode: mode, Err: err}
	}
	return model.OK(data), nil
}

func execute(mode Mode, p Params, records []model.Record) (any, error) {
	switch mode {
	case ModeZip:
		return MatchZip(records, p.Get(ParamZipcode)), nil

	case ModeCity:
		return MatchCity(records, p.Get(ParamCityName)), nil

	case ModeNearest:
		lat, err := coordinateParam(p, ParamLatitude)
		if err != nil {
			return nil, err
		}
		lon, err := coordinateParam(p, ParamLongitude)
		if err != nil {
			return nil, err
		}
		m, ok := Nearest(records, lat, lon, NearestUnit)
		if !ok {
			return nil, nil
		}
		return m, nil

	case ModeFilter:
		flt, err := NewFilter(p)
		if err != nil {
			return nil, err
		}
		return flt.Apply(records)

	default:
		return []model.Record{}, nil
	}
}

// coordinateParam parses a latitude or longitude parameter. An absent value is 0.
func coordinateParam(p Params, name string) (float64, error) {
	if !p.Has(name) {
		return 0, nil
	}
	return model.ParseNumber(name, p.Get(name))
}

// MatchZip returns the records whose zip contains needle, case-sensitively.
func MatchZip(records []model.Record, needle string) []model.Record {
	out := []model.Record{}
	for _, r := range records {
		if strings.Contains(r.Zip, needle) {
			out = append(out, r)
		}
	}
	return out
}

// MatchCity returns the records whose primary city contains the trimmed,
// lowercased needle. A blank needle matches every record.
func MatchCity(records []model.Record, needle string) []model.Record {
	f := newFolder()
	needle = f.normalize(needle)

	out := []model.Record{}
	for _, r := range records {
		if f.contains(r.PrimaryCity, needle) {
			out = append(out, r)
		}
	}
	return out
}

// Nearest returns a copy of the record closest to (lat, lon) annotated with its
// distance. The first record in dataset order wins ties. ok is false when
// records is empty.
func Nearest(records []model.Record, lat, lon float64, unit Unit) (m model.Match, ok bool) {
	for i, r := range records {
		d := Distance(float64(r.Latitude), float64(r.Longitude), lat, lon, unit)
		if i == 0 || d < m.Distance {
			m = model.Match{Record: r, Distance: d}
		}
	}
	return m, len(records) > 0
}

// Resolver is the top-level entry point that always yields a well-formed
// Response, converting errors and panics into the 400 shape.
type Resolver struct {
	log *zap.Logger
}

// NewResolver creates a Resolver logging through the global zap logger.
func NewResolver() *Resolver {
	return &Resolver{log: zap.L().With(zap.String("component", "query.resolver"))}
}

// Resolve runs the query and never fails.
func (r *Resolver) Resolve(p Params, records []model.Record) (resp model.Response) {
	mode := Classify(p)

	defer func() {
		if rec := recover(); rec != nil {
			err := &QueryExecutionError{Mode: mode, Err: eris.Errorf("panic: %v", rec)}
			r.log.Error("query panicked", zap.String("mode", string(mode)), zap.Error(err))
			resp = ErrorResponse(err)
		}
	}()

	resp, err := Resolve(p, records)
	if err != nil {
		r.log.Warn("query failed", zap.String("mode", string(mode)), zap.Error(err))
		return ErrorResponse(err)
	}

	r.log.Debug("query resolved",
		zap.String("mode", string(mode)),
		zap.Int("matches", len(resp.Matches())),
	)
	return resp
}
