package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errEmptyNumber     = errors.New("empty value")
	errNonFiniteNumber = errors.New("value is not a finite number")
)

// ParseError reports a value that could not be coerced to a number.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: invalid number %q", e.Field, e.Value)
	}
	return fmt.Sprintf("parse %s: invalid number %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseNumber converts a raw parameter or field value to a float64. Surrounding
// whitespace is ignored. Empty, non-numeric, NaN and infinite values are rejected
// with a *ParseError naming field.
func ParseNumber(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &ParseError{Field: field, Value: raw, Err: errEmptyNumber}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Field: field, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Field: field, Value: raw, Err: errNonFiniteNumber}
	}
	return v, nil
}

// Coordinate is a latitude or longitude in degrees. It decodes from either a JSON
// number or a numeric string; an empty string or null decodes to 0.
type Coordinate float64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return &ParseError{Field: "coordinate", Value: string(b), Err: err}
		}
		if strings.TrimSpace(raw) == "" {
			*c = 0
			return nil
		}
	}

	v, err := ParseNumber("coordinate", raw)
	if err != nil {
		return err
	}
	*c = Coordinate(v)
	return nil
}

// Population is an estimated population kept in its stored text form. Datasets
// carry it as either a number or a string, so it is only coerced when compared.
type Population string

// Float64 coerces the population to a number. An empty population counts as 0.
func (p Population) Float64() (float64, error) {
	if strings.TrimSpace(string(p)) == "" {
		return 0, nil
	}
	return ParseNumber("estimated_population", string(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Population) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*p = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return &ParseError{Field: "estimated_population", Value: string(b), Err: err}
		}
		*p = Population(s)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*p = Population(b)
	default:
		return &ParseError{Field: "estimated_population", Value: string(b)}
	}
	return nil
}

// MarshalJSON writes numeric populations as JSON numbers and anything else as a string.
func (p Population) MarshalJSON() ([]byte, error) {
	s := string(p)
	if s != "" && s == strings.TrimSpace(s) && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}
