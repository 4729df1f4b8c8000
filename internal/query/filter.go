package query

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// folder lowercases text for case-insensitive matching. A cases.Caser is
// stateful, so each resolution builds its own.
type folder struct {
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{caser: cases.Lower(language.Und)}
}

func (f *folder) fold(s string) string {
	return f.caser.String(s)
}

// normalize trims and lowercases a parameter value.
func (f *folder) normalize(s string) string {
	return f.fold(strings.TrimSpace(s))
}

// contains reports whether the lowercased field contains needle, which must
// already be normalized.
func (f *folder) contains(field, needle string) bool {
	return strings.Contains(f.fold(field), needle)
}

// check is one conjunct of a Filter.
type check struct {
	param string
	match func(model.Record) (bool, error)
}

// Filter is the conjunctive field predicate of the filter mode. Only supplied
// parameters contribute a check; checks run in the fixed order type, state,
// county, country, timezone, populationGreaterThan and stop at the first miss.
type Filter struct {
	checks []check
}

// NewFilter builds a Filter from the supplied parameters. A non-numeric
// populationGreaterThan is rejected with a *model.ParseError.
func NewFilter(p Params) (*Filter, error) {
	return newFilter(p, newFolder())
}

func newFilter(p Params, f *folder) (*Filter, error) {
	textField := map[string]func(model.Record) string{
		ParamType:     func(r model.Record) string { return r.Type },
		ParamState:    func(r model.Record) string { return r.State },
		ParamCounty:   func(r model.Record) string { return r.County },
		ParamCountry:  func(r model.Record) string { return r.Country },
		ParamTimezone: func(r model.Record) string { return r.Timezone },
	}

	flt := &Filter{}
	for _, name := range filterParams {
		if !p.Has(name) {
			continue
		}

		if name == ParamPopulationGreaterThan {
			threshold, err := model.ParseNumber(name, p.Get(name))
			if err != nil {
				return nil, err
			}
			flt.checks = append(flt.checks, check{
				param: name,
				match: func(r model.Record) (bool, error) {
					pop, err := r.EstimatedPopulation.Float64()
					if err != nil {
						return false, eris.Wrapf(err, "query: zip %s", r.Zip)
					}
					return pop > threshold, nil
				},
			})
			continue
		}

		needle := f.normalize(p.Get(name))
		field := textField[name]
		flt.checks = append(flt.checks, check{
			param: name,
			match: func(r model.Record) (bool, error) {
				return f.contains(field(r), needle), nil
			},
		})
	}
	return flt, nil
}

// Params lists the parameters that produced a check, in evaluation order.
func (flt *Filter) Params() []string {
	out := make([]string, len(flt.checks))
	for i, c := range flt.checks {
		out[i] = c.param
	}
	return out
}

// Match reports whether r passes every check.
func (flt *Filter) Match(r model.Record) (bool, error) {
	for _, c := range flt.checks {
		ok, err := c.match(r)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Apply returns the records passing the filter, in dataset order.
func (flt *Filter) Apply(records []model.Record) ([]model.Record, error) {
	out := []model.Record{}
	for _, r := range records {
		ok, err := flt.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
