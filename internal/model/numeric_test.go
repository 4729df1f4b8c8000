package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"integer", "1000", 1000, false},
		{"decimal", "39.7392", 39.7392, false},
		{"negative", "-104.9903", -104.9903, false},
		{"padded", "  42 ", 42, false},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"word", "abc", 0, true},
		{"nan", "NaN", 0, true},
		{"inf", "Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseNumber("field", tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var pe *ParseError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, "field", pe.Field)
				assert.Equal(t, tt.raw, pe.Value)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Coordinate `json:"a"`
		B Coordinate `json:"b"`
		C Coordinate `json:"c"`
		D Coordinate `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 40.5, "b": "-73.25", "c": "", "d": null}`), &v)
	require.NoError(t, err)
	assert.InDelta(t, 40.5, float64(v.A), 1e-9)
	assert.InDelta(t, -73.25, float64(v.B), 1e-9)
	assert.Zero(t, v.C)
	assert.Zero(t, v.D)
}

func TestCoordinate_UnmarshalJSON_Invalid(t *testing.T) {
	t.Parallel()

	var v struct {
		A Coordinate `json:"a"`
	}
	err := json.Unmarshal([]byte(`{"a": "north"}`), &v)
	require.Error(t, err)
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestPopulation_Float64(t *testing.T) {
	t.Parallel()

	v, err := Population("1001").Float64()
	require.NoError(t, err)
	assert.Equal(t, 1001.0, v)

	v, err = Population("").Float64()
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = Population("lots").Float64()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimated_population")
}

func TestPopulation_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	var v struct {
		N Population `json:"n"`
		S Population `json:"s"`
		E Population `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"n": 2500, "s": "999", "e": null}`), &v))
	assert.Equal(t, Population("2500"), v.N)
	assert.Equal(t, Population("999"), v.S)
	assert.Equal(t, Population(""), v.E)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 2500, "s": 999, "e": ""}`, string(out))
}

func TestPopulation_UnmarshalJSON_RejectsBool(t *testing.T) {
	t.Parallel()

	var p Population
	err := p.UnmarshalJSON([]byte("true"))
	require.Error(t, err)
}
