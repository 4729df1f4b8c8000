// Package query resolves postal-code lookups against an in-memory record set.
//
// A parameter set selects exactly one mode, checked in priority order:
// zipcode, cityName, latitude/longitude, then the field filter. A parameter
// counts as present when its raw value is non-empty.
package query

import "net/url"

// Recognized parameter names.
const (
	ParamZipcode               = "zipcode"
	ParamCityName              = "cityName"
	ParamLatitude              = "latitude"
	ParamLongitude             = "longitude"
	ParamType                  = "type"
	ParamState                 = "state"
	ParamCounty                = "county"
	ParamCountry               = "country"
	ParamTimezone              = "timezone"
	ParamPopulationGreaterThan = "populationGreaterThan"
)

// ParamNames lists every recognized parameter in declaration order.
var ParamNames = []string{
	ParamZipcode,
	ParamCityName,
	ParamLatitude,
	ParamLongitude,
	ParamType,
	ParamState,
	ParamCounty,
	ParamCountry,
	ParamTimezone,
	ParamPopulationGreaterThan,
}

// filterParams are the filter-mode parameters in evaluation order.
var filterParams = []string{
	ParamType,
	ParamState,
	ParamCounty,
	ParamCountry,
	ParamTimezone,
	ParamPopulationGreaterThan,
}

// Params is the raw parameter mapping of one invocation. Missing keys and empty
// values are both treated as absent.
type Params map[string]string

// ParamsFromValues keeps the first value of every recognized parameter.
func ParamsFromValues(v url.Values) Params {
	p := make(Params, len(ParamNames))
	for _, name := range ParamNames {
		if vals, ok := v[name]; ok && len(vals) > 0 {
			p[name] = vals[0]
		}
	}
	return p
}

// Has reports whether the parameter is present.
func (p Params) Has(name string) bool {
	return p[name] != ""
}

// Get returns the raw parameter value, or "" when absent.
func (p Params) Get(name string) string {
	return p[name]
}

func (p Params) hasAny(names ...string) bool {
	for _, n := range names {
		if p.Has(n) {
			return true
		}
	}
	return false
}
