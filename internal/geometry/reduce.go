// Package geometry reduces feature-service geometries to a single
// representative coordinate for assignment placement.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Sentinel errors for geometry reduction failures. Callers treat both as
// per-record transform errors: the record is skipped, the run continues.
var (
	ErrEmptyGeometry       = eris.New("geometry: empty geometry")
	ErrUnsupportedGeometry = eris.New("geometry: unsupported geometry type")
)

// Point is a reduced representative coordinate in the feature's spatial
// reference.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry is the wire shape of an ArcGIS JSON geometry. Exactly one of
// the coordinate fields is populated depending on the layer's geometry type.
type Geometry struct {
	X     *float64      `json:"x,omitempty"`
	Y     *float64      `json:"y,omitempty"`
	Rings [][][]float64 `json:"rings,omitempty"`
	Paths [][][]float64 `json:"paths,omitempty"`
}

// Geometry type discriminators as they appear in feature-service responses.
// The short forms are accepted for configuration convenience.
const (
	TypePoint    = "esriGeometryPoint"
	TypePolygon  = "esriGeometryPolygon"
	TypePolyline = "esriGeometryPolyline"
)

// Reduce computes the representative point for a geometry. Points pass
// through unchanged. Polygons and polylines reduce to the unweighted
// arithmetic mean of every vertex across all rings/paths, an intentional
// approximation rather than a true centroid.
func Reduce(geomType string, g Geometry) (Point, error) {
	switch geomType {
	case TypePoint, "point":
		if g.X == nil || g.Y == nil {
			return Point{}, eris.Wrapf(ErrEmptyGeometry, "point missing coordinates")
		}
		return Point{X: *g.X, Y: *g.Y}, nil

	case TypePolygon, "polygon":
		poly, err := buildPolygon(g.Rings)
		if err != nil {
			return Point{}, err
		}
		return meanOfFlatCoords(poly.FlatCoords(), poly.Stride())

	case TypePolyline, "polyline":
		mls, err := buildPolyline(g.Paths)
		if err != nil {
			return Point{}, err
		}
		return meanOfFlatCoords(mls.FlatCoords(), mls.Stride())

	default:
		return Point{}, eris.Wrapf(ErrUnsupportedGeometry, "type %q", geomType)
	}
}

// buildPolygon assembles a geom.Polygon from ArcGIS ring arrays.
func buildPolygon(rings [][][]float64) (*geom.Polygon, error) {
	coords, err := toCoords(rings)
	if err != nil {
		return nil, err
	}
	poly := geom.NewPolygon(geom.XY)
	for _, ring := range coords {
		if err := poly.Push(geom.NewLinearRing(geom.XY).MustSetCoords(ring)); err != nil {
			return nil, eris.Wrap(err, "geometry: push ring")
		}
	}
	return poly, nil
}

// buildPolyline assembles a geom.MultiLineString from ArcGIS path arrays.
func buildPolyline(paths [][][]float64) (*geom.MultiLineString, error) {
	coords, err := toCoords(paths)
	if err != nil {
		return nil, err
	}
	mls := geom.NewMultiLineString(geom.XY)
	for _, path := range coords {
		if err := mls.Push(geom.NewLineString(geom.XY).MustSetCoords(path)); err != nil {
			return nil, eris.Wrap(err, "geometry: push path")
		}
	}
	return mls, nil
}

// toCoords converts raw [[x,y],...] part arrays into geom coordinate parts,
// rejecting empty or malformed input before any arithmetic happens.
func toCoords(parts [][][]float64) ([][]geom.Coord, error) {
	total := 0
	out := make([][]geom.Coord, 0, len(parts))
	for _, part := range parts {
		coords := make([]geom.Coord, 0, len(part))
		for _, v := range part {
			if len(v) < 2 {
				return nil, eris.Wrapf(ErrEmptyGeometry, "vertex has %d ordinates", len(v))
			}
			coords = append(coords, geom.Coord{v[0], v[1]})
		}
		total += len(coords)
		out = append(out, coords)
	}
	if total == 0 {
		return nil, eris.Wrapf(ErrEmptyGeometry, "no vertices")
	}
	return out, nil
}

// meanOfFlatCoords averages the interleaved coordinate slice of a geometry.
func meanOfFlatCoords(flat []float64, stride int) (Point, error) {
	n := len(flat) / stride
	if n == 0 {
		return Point{}, eris.Wrapf(ErrEmptyGeometry, "no vertices")
	}
	var sumX, sumY float64
	for i := 0; i < len(flat); i += stride {
		sumX += flat[i]
		sumY += flat[i+1]
	}
	return Point{X: sumX / float64(n), Y: sumY / float64(n)}, nil
}
