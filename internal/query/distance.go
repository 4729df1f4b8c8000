package query

import "math"

// Unit selects the output unit of Distance.
type Unit string

const (
	Miles         Unit = "M"
	Kilometers    Unit = "K"
	NauticalMiles Unit = "N"
)

const (
	kmPerMile       = 1.609344
	nauticalPerMile = 0.8684
)

// Distance returns the great-circle distance between two points given in
// degrees, using the spherical law of cosines. Kilometers and NauticalMiles
// convert the result; any other unit returns statute miles. Coincident points
// return exactly 0.
func Distance(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	const rad = math.Pi / 180
	theta := lon1 - lon2
	dist := math.Sin(lat1*rad)*math.Sin(lat2*rad) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Cos(theta*rad)
	dist = math.Acos(math.Max(-1, math.Min(1, dist)))
	dist = dist * 180 / math.Pi * 60 * 1.1515

	switch unit {
	case Kilometers:
		return dist * kmPerMile
	case NauticalMiles:
		return dist * nauticalPerMile
	default:
		return dist
	}
}
