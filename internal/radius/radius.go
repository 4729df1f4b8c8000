// Package radius finds postal codes within a distance of one another. An R-tree
// over record coordinates narrows each search to a bounding box, and the
// haversine distance decides membership.
package radius

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/umahmood/haversine"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zipcode-cli/internal/model"
)

const (
	kmPerDegreeLat = 111.19
	pointTolerance = 1e-7
	minChildren    = 25
	maxChildren    = 50
)

// ErrUnknownZip is returned when the origin zip is not in the index.
var ErrUnknownZip = eris.New("radius: unknown zip")

type item struct {
	rect   rtreego.Rect
	record model.Record
	order  int
}

func (it *item) Bounds() rtreego.Rect {
	return it.rect
}

// Index is an immutable spatial index over a record set. It is safe for
// concurrent use.
type Index struct {
	tree  *rtreego.Rtree
	items []*item
	byZip map[string]*item
}

// NewIndex builds an index. When a zip repeats, the first record wins the
// origin lookup; every record still appears in search results.
func NewIndex(records []model.Record) *Index {
	ix := &Index{
		items: make([]*item, 0, len(records)),
		byZip: make(map[string]*item, len(records)),
	}
	objs := make([]rtreego.Spatial, 0, len(records))
	for i, r := range records {
		point := rtreego.Point{float64(r.Longitude), float64(r.Latitude)}
		it := &item{rect: point.ToRect(pointTolerance), record: r, order: i}
		ix.items = append(ix.items, it)
		objs = append(objs, it)
		if _, ok := ix.byZip[r.Zip]; !ok {
			ix.byZip[r.Zip] = it
		}
	}
	ix.tree = rtreego.NewTree(2, minChildren, maxChildren, objs...)
	return ix
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.items)
}

// Within returns the records within km of zip, nearest first, excluding the
// origin record itself.
func (ix *Index) Within(zip string, km float64) ([]model.Match, error) {
	origin, ok := ix.byZip[zip]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownZip, "zip %q", zip)
	}
	return ix.around(origin, float64(origin.record.Latitude), float64(origin.record.Longitude), km)
}

// Around returns the records within km of a point, nearest first.
func (ix *Index) Around(lat, lon, km float64) ([]model.Match, error) {
	return ix.around(nil, lat, lon, km)
}

func (ix *Index) around(origin *item, lat, lon, km float64) ([]model.Match, error) {
	if km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
		return nil, eris.Errorf("radius: distance must be positive, got %v", km)
	}
	boxes, err := searchBoxes(lat, lon, km)
	if err != nil {
		return nil, err
	}

	center := haversine.Coord{Lat: lat, Lon: lon}
	type hit struct {
		match model.Match
		order int
	}
	var hits []hit
	seen := make(map[*item]bool)
	for _, box := range boxes {
		for _, s := range ix.tree.SearchIntersect(box) {
			it := s.(*item)
			if it == origin || seen[it] {
				continue
			}
			seen[it] = true
			_, d := haversine.Distance(center, haversine.Coord{
				Lat: float64(it.record.Latitude),
				Lon: float64(it.record.Longitude),
			})
			if d > km {
				continue
			}
			hits = append(hits, hit{match: model.Match{Record: it.record, Distance: d}, order: it.order})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].match.Distance != hits[j].match.Distance {
			return hits[i].match.Distance < hits[j].match.Distance
		}
		return hits[i].order < hits[j].order
	})

	out := make([]model.Match, len(hits))
	for i, h := range hits {
		out[i] = h.match
	}
	return out, nil
}

// searchBoxes returns lon/lat rectangles that together contain every point
// within km of (lat, lon). Longitude spans widen toward the poles and cover the
// full range once the circle reaches one. A span crossing the antimeridian is
// split in two.
func searchBoxes(lat, lon, km float64) ([]rtreego.Rect, error) {
	dLat := km / kmPerDegreeLat
	minLat, maxLat := lat-dLat, lat+dLat

	spans := [][2]float64{{-180, 180}}
	if minLat > -90 && maxLat < 90 {
		cos := math.Cos(lat * math.Pi / 180)
		dLon := km / (kmPerDegreeLat * cos)
		if dLon < 180 {
			minLon, maxLon := lon-dLon, lon+dLon
			switch {
			case minLon < -180:
				spans = [][2]float64{{-180, maxLon}, {minLon + 360, 180}}
			case maxLon > 180:
				spans = [][2]float64{{minLon, 180}, {-180, maxLon - 360}}
			default:
				spans = [][2]float64{{minLon, maxLon}}
			}
		}
	}

	boxes := make([]rtreego.Rect, 0, len(spans))
	for _, sp := range spans {
		r, err := rtreego.NewRectFromPoints(rtreego.Point{sp[0], minLat}, rtreego.Point{sp[1], maxLat})
		if err != nil {
			return nil, eris.Wrap(err, "radius: search box")
		}
		boxes = append(boxes, r)
	}
	return boxes, nil
}

// Neighbors lists the zips within range of one zip.
type Neighbors struct {
	Zip    string   `json:"zip"`
	Nearby []string `json:"nearby"`
}

// All computes the neighbor list of every indexed record, in dataset order.
// workers <= 0 uses one worker per CPU.
func (ix *Index) All(ctx context.Context, km float64, workers int) ([]Neighbors, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]Neighbors, len(ix.items))
	if len(out) == 0 {
		return out, nil
	}
	chunk := (len(ix.items) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ix.items); start += chunk {
		end := min(start+chunk, len(ix.items))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "radius: neighbors")
				}
				it := ix.items[i]
				matches, err := ix.around(it, float64(it.record.Latitude), float64(it.record.Longitude), km)
				if err != nil {
					return err
				}
				zips := make([]string, len(matches))
				for j, m := range matches {
					zips[j] = m.Zip
				}
				out[i] = Neighbors{Zip: it.record.Zip, Nearby: zips}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
