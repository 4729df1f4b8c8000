// Package model defines the postal-code record and the response shapes shared by
// the dataset sources, the query resolver, and the output sinks.
package model

// Record is a single postal-code entry. Records are read-only once loaded; any
// per-query annotation is applied to a Match copy.
type Record struct {
	Zip                 string     `json:"zip" yaml:"zip"`
	Type                string     `json:"type" yaml:"type"`
	PrimaryCity         string     `json:"primary_city" yaml:"primary_city"`
	AcceptableCities    string     `json:"acceptable_cities,omitempty" yaml:"acceptable_cities,omitempty"`
	State               string     `json:"state" yaml:"state"`
	County              string     `json:"county" yaml:"county"`
	Timezone            string     `json:"timezone" yaml:"timezone"`
	AreaCodes           string     `json:"area_codes,omitempty" yaml:"area_codes,omitempty"`
	Country             string     `json:"country" yaml:"country"`
	Latitude            Coordinate `json:"latitude" yaml:"latitude"`
	Longitude           Coordinate `json:"longitude" yaml:"longitude"`
	EstimatedPopulation Population `json:"estimated_population" yaml:"estimated_population"`
}

// Match is a working copy of a Record annotated with its distance from a query point.
type Match struct {
	Record   `yaml:",inline"`
	Distance float64 `json:"distance" yaml:"distance"`
}

// Stats summarizes a loaded dataset.
type Stats struct {
	Records   int            `json:"records" yaml:"records"`
	States    map[string]int `json:"states" yaml:"states"`
	Countries map[string]int `json:"countries" yaml:"countries"`
}

// Summarize counts records per state and per country.
func Summarize(records []Record) Stats {
	s := Stats{
		Records:   len(records),
		States:    make(map[string]int),
		Countries: make(map[string]int),
	}
	for _, r := range records {
		s.States[r.State]++
		s.Countries[r.Country]++
	}
	return s
}
