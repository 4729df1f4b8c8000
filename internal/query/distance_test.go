package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_CoincidentPointsAreZero(t *testing.T) {
	t.Parallel()

	for _, u := range []Unit{Miles, Kilometers, NauticalMiles, ""} {
		assert.Equal(t, 0.0, Distance(39.7392, -104.9903, 39.7392, -104.9903, u))
	}
}

func TestDistance_OneDegreeOfLongitudeAtEquator(t *testing.T) {
	t.Parallel()

	miles := Distance(0, 0, 0, 1, "")
	assert.InDelta(t, 60*1.1515, miles, 1e-3)
	assert.InDelta(t, miles*1.609344, Distance(0, 0, 0, 1, Kilometers), 1e-9)
	assert.InDelta(t, miles*0.8684, Distance(0, 0, 0, 1, NauticalMiles), 1e-9)
}

func TestDistance_UnknownUnitIsMiles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Distance(10, 10, 11, 11, Miles), Distance(10, 10, 11, 11, "X"))
}

func TestDistance_DenverToNewYork(t *testing.T) {
	t.Parallel()

	km := Distance(39.7392, -104.9903, 40.7128, -74.0060, Kilometers)
	assert.InDelta(t, 2620, km, 15)
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	a := Distance(34.05, -118.24, 47.61, -122.33, Kilometers)
	b := Distance(47.61, -122.33, 34.05, -118.24, Kilometers)
	assert.InDelta(t, a, b, 1e-9)
}

func TestDistance_AntipodalDoesNotNaN(t *testing.T) {
	t.Parallel()

	d := Distance(0, 0, 0, 180, Miles)
	assert.InDelta(t, 180*60*1.1515, d, 1e-6)
}
