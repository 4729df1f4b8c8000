package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_CountsPerStateAndCountry(t *testing.T) {
	t.Parallel()

	stats := Summarize([]Record{
		{Zip: "80202", State: "CO", Country: "US"},
		{Zip: "80203", State: "CO", Country: "US"},
		{Zip: "00601", State: "PR", Country: "US"},
		{Zip: "T2P", State: "AB", Country: "CA"},
	})

	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, map[string]int{"CO": 2, "PR": 1, "AB": 1}, stats.States)
	assert.Equal(t, map[string]int{"US": 3, "CA": 1}, stats.Countries)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	stats := Summarize(nil)
	assert.Zero(t, stats.Records)
	assert.Empty(t, stats.States)
	assert.NotNil(t, stats.States)
}

func TestMatch_JSONFlattensRecord(t *testing.T) {
	t.Parallel()

	m := Match{Record: Record{Zip: "80202", PrimaryCity: "Denver"}, Distance: 1.5}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "80202", doc["zip"])
	assert.Equal(t, "Denver", doc["primary_city"])
	assert.InDelta(t, 1.5, doc["distance"], 1e-9)
	assert.NotContains(t, doc, "Record")
}
