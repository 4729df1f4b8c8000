package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipcode-cli/internal/model"
)

func sampleRecords() []model.Record {
	return []model.Record{
		{Zip: "80202", Type: "STANDARD", PrimaryCity: "Denver", State: "CO", County: "Denver County", Country: "US", Timezone: "America/Denver", Latitude: 39.75, Longitude: -105.0, EstimatedPopulation: "1001"},
		{Zip: "80203", Type: "STANDARD", PrimaryCity: "Denver", State: "CO", County: "Denver County", Country: "US", Timezone: "America/Denver", Latitude: 39.73, Longitude: -104.98, EstimatedPopulation: "999"},
		{Zip: "80401", Type: "PO BOX", PrimaryCity: "Golden", State: "CO", County: "Jefferson County", Country: "US", Timezone: "America/Denver", Latitude: 39.75, Longitude: -105.22, EstimatedPopulation: "25000"},
		{Zip: "10001", Type: "STANDARD", PrimaryCity: "New York", State: "NY", County: "New York County", Country: "US", Timezone: "America/New_York", Latitude: 40.75, Longitude: -73.99, EstimatedPopulation: "21102"},
		{Zip: "06101", Type: "UNIQUE", PrimaryCity: "Hartford", State: "CT", County: "Hartford County", Country: "US", Timezone: "America/New_York", Latitude: 41.76, Longitude: -72.68, EstimatedPopulation: ""},
	}
}

func zips(t *testing.T, resp model.Response) []string {
	t.Helper()
	recs, ok := resp.Data.([]model.Record)
	require.True(t, ok, "expected []model.Record, got %T", resp.Data)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Zip
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
		want   Mode
	}{
		{"zip", Params{ParamZipcode: "802"}, ModeZip},
		{"zip beats geo", Params{ParamZipcode: "802", ParamLatitude: "39"}, ModeZip},
		{"city beats geo", Params{ParamCityName: "denver", ParamLongitude: "-105"}, ModeCity},
		{"latitude only", Params{ParamLatitude: "39"}, ModeNearest},
		{"longitude only", Params{ParamLongitude: "-105"}, ModeNearest},
		{"geo beats filter", Params{ParamLatitude: "39", ParamState: "co"}, ModeNearest},
		{"filter", Params{ParamTimezone: "denver"}, ModeFilter},
		{"population filter", Params{ParamPopulationGreaterThan: "10"}, ModeFilter},
		{"empty values are absent", Params{ParamZipcode: "", ParamCityName: ""}, ModeNone},
		{"whitespace city is present", Params{ParamCityName: "  "}, ModeCity},
		{"unknown only", Params{"foo": "bar"}, ModeNone},
		{"nil", nil, ModeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.params))
		})
	}
}

func TestResolve_ZipSubstring(t *testing.T) {
	t.Parallel()

	recs := sampleRecords()

	resp, err := Resolve(Params{ParamZipcode: "802"}, recs)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"80202", "80203"}, zips(t, resp))

	resp, err = Resolve(Params{ParamZipcode: "10001"}, recs)
	require.NoError(t, err)
	assert.Equal(t, []string{"10001"}, zips(t, resp))

	resp, err = Resolve(Params{ParamZipcode: "99999"}, recs)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, zips(t, resp))
}

func TestResolve_ZipIgnoresGeo(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamZipcode: "061", ParamLatitude: "39.75", ParamLongitude: "-105"}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{"06101"}, zips(t, resp))
}

func TestResolve_CityCaseInsensitive(t *testing.T) {
	t.Parallel()

	recs := sampleRecords()
	lower, err := Resolve(Params{ParamCityName: "denver"}, recs)
	require.NoError(t, err)
	upper, err := Resolve(Params{ParamCityName: "  DENVER "}, recs)
	require.NoError(t, err)

	assert.Equal(t, []string{"80202", "80203"}, zips(t, lower))
	assert.Equal(t, zips(t, lower), zips(t, upper))
}

func TestResolve_CityBlankMatchesAll(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamCityName: "   "}, sampleRecords())
	require.NoError(t, err)
	assert.Len(t, zips(t, resp), len(sampleRecords()))
}

func TestResolve_NearestExactPoint(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamLatitude: "40.75", ParamLongitude: "-73.99"}, sampleRecords())
	require.NoError(t, err)

	m, ok := resp.Data.(model.Match)
	require.True(t, ok, "nearest mode returns a single match, got %T", resp.Data)
	assert.Equal(t, "10001", m.Zip)
	assert.Equal(t, 0.0, m.Distance)
}

func TestResolve_NearestTieFirstWins(t *testing.T) {
	t.Parallel()

	recs := []model.Record{
		{Zip: "A", Latitude: 1, Longitude: 1},
		{Zip: "B", Latitude: 0, Longitude: 1},
		{Zip: "C", Latitude: 0, Longitude: -1},
		{Zip: "D", Latitude: 0, Longitude: 1},
	}

	resp, err := Resolve(Params{ParamLatitude: "0", ParamLongitude: "0"}, recs)
	require.NoError(t, err)
	m := resp.Data.(model.Match)
	assert.Equal(t, "B", m.Zip)
}

func TestResolve_NearestMissingCoordinateDefaultsToZero(t *testing.T) {
	t.Parallel()

	recs := []model.Record{
		{Zip: "north", Latitude: 10, Longitude: 0},
		{Zip: "origin-east", Latitude: 0, Longitude: 5},
		{Zip: "far", Latitude: 10, Longitude: 50},
	}

	// Only latitude given: longitude is 0, so (10, 0) is an exact hit.
	resp, err := Resolve(Params{ParamLatitude: "10"}, recs)
	require.NoError(t, err)
	assert.Equal(t, "north", resp.Data.(model.Match).Zip)

	// Only longitude given: latitude is 0.
	resp, err = Resolve(Params{ParamLongitude: "5"}, recs)
	require.NoError(t, err)
	assert.Equal(t, "origin-east", resp.Data.(model.Match).Zip)
}

func TestResolve_NearestReportsKilometers(t *testing.T) {
	t.Parallel()

	recs := []model.Record{{Zip: "eq", Latitude: 0, Longitude: 1}}
	resp, err := Resolve(Params{ParamLatitude: "0", ParamLongitude: "0"}, recs)
	require.NoError(t, err)
	assert.InDelta(t, Distance(0, 1, 0, 0, Kilometers), resp.Data.(model.Match).Distance, 1e-9)
}

func TestResolve_NearestDoesNotMutateRecords(t *testing.T) {
	t.Parallel()

	recs := sampleRecords()
	before := sampleRecords()

	_, err := Resolve(Params{ParamLatitude: "40", ParamLongitude: "-100"}, recs)
	require.NoError(t, err)
	assert.Equal(t, before, recs)
}

func TestResolve_NearestEmptyDataset(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamLatitude: "1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, resp.Data)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statusCode": 200}`, string(out))
}

func TestResolve_NearestInvalidCoordinate(t *testing.T) {
	t.Parallel()

	_, err := Resolve(Params{ParamLatitude: "north"}, sampleRecords())
	require.Error(t, err)

	var qe *QueryExecutionError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ModeNearest, qe.Mode)

	var pe *model.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ParamLatitude, pe.Field)
}

func TestResolve_FilterState(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamState: " co "}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{"80202", "80203", "80401"}, zips(t, resp))
}

func TestResolve_FilterStateAndPopulation(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamState: "co", ParamPopulationGreaterThan: "1000"}, sampleRecords())
	require.NoError(t, err)
	// 80203 has 999 and is excluded; 80202 has 1001 and is included.
	assert.Equal(t, []string{"80202", "80401"}, zips(t, resp))
}

func TestResolve_FilterPopulationIsNumeric(t *testing.T) {
	t.Parallel()

	// String comparison would put "999" above "25000".
	resp, err := Resolve(Params{ParamPopulationGreaterThan: "5000"}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{"80401", "10001"}, zips(t, resp))
}

func TestResolve_FilterConjunction(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{
		ParamType:     "standard",
		ParamCounty:   "denver",
		ParamCountry:  "us",
		ParamTimezone: "america/denver",
	}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{"80202", "80203"}, zips(t, resp))
}

func TestResolve_FilterNoMatch(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{ParamState: "tx"}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, zips(t, resp))
}

func TestResolve_FilterInvalidThreshold(t *testing.T) {
	t.Parallel()

	_, err := Resolve(Params{ParamPopulationGreaterThan: "many"}, sampleRecords())
	require.Error(t, err)
	var qe *QueryExecutionError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ModeFilter, qe.Mode)
}

func TestResolve_FilterMalformedRecordPopulation(t *testing.T) {
	t.Parallel()

	recs := []model.Record{{Zip: "1", State: "CO", EstimatedPopulation: "n/a"}}
	_, err := Resolve(Params{ParamPopulationGreaterThan: "1"}, recs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimated_population")
}

func TestResolve_FilterShortCircuits(t *testing.T) {
	t.Parallel()

	// The malformed population is never coerced because the state check fails first.
	recs := []model.Record{{Zip: "1", State: "TX", EstimatedPopulation: "n/a"}}
	resp, err := Resolve(Params{ParamState: "co", ParamPopulationGreaterThan: "1"}, recs)
	require.NoError(t, err)
	assert.Empty(t, zips(t, resp))
}

func TestResolve_NoParams(t *testing.T) {
	t.Parallel()

	resp, err := Resolve(Params{}, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []model.Record{}, resp.Data)
	assert.Empty(t, resp.ErrorMessage)
}

func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()

	recs := sampleRecords()
	for _, p := range []Params{
		{ParamZipcode: "80"},
		{ParamCityName: "new"},
		{ParamLatitude: "39.7", ParamLongitude: "-105.1"},
		{ParamState: "co", ParamPopulationGreaterThan: "500"},
	} {
		first, err := Resolve(p, recs)
		require.NoError(t, err)
		second, err := Resolve(p, recs)
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestFilter_ParamsInEvaluationOrder(t *testing.T) {
	t.Parallel()

	flt, err := NewFilter(Params{
		ParamPopulationGreaterThan: "1",
		ParamTimezone:              "x",
		ParamType:                  "y",
		ParamState:                 "z",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ParamType, ParamState, ParamTimezone, ParamPopulationGreaterThan}, flt.Params())
}

func TestParamsFromValues(t *testing.T) {
	t.Parallel()

	v := url.Values{}
	v.Add("zipcode", "802")
	v.Add("zipcode", "100")
	v.Set("cityName", "Denver")
	v.Set("ignored", "x")

	p := ParamsFromValues(v)
	assert.Equal(t, "802", p.Get(ParamZipcode))
	assert.Equal(t, "Denver", p.Get(ParamCityName))
	_, ok := p["ignored"]
	assert.False(t, ok)
}

func TestResolver_ShapesErrors(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	resp := r.Resolve(Params{ParamLongitude: "east"}, sampleRecords())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []model.Record{}, resp.Data)
	assert.Contains(t, resp.ErrorMessage, "longitude")
}

func TestResolver_Success(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	resp := r.Resolve(Params{ParamZipcode: "80202"}, sampleRecords())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"80202"}, zips(t, resp))
}

func TestErrorResponse_Fallback(t *testing.T) {
	t.Parallel()

	resp := ErrorResponse(errors.New(""))
	assert.Equal(t, model.FallbackErrorMessage, resp.ErrorMessage)

	resp = ErrorResponse(nil)
	assert.Equal(t, model.FallbackErrorMessage, resp.ErrorMessage)
}
