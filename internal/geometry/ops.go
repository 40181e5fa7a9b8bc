package geometry

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// InvalidError reports a geometry rejected by validation.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return "invalid geometry: " + e.Reason }

// BBox is the configured metropolitan bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Validate fails when any coordinate lies outside the box or when the
// geometry type is not one of allowed (any type when allowed is empty).
func (b BBox) Validate(g Geometry, allowed ...Type) error {
	if g.IsNull() {
		return nil
	}
	if len(allowed) > 0 {
		ok := false
		for _, t := range allowed {
			if g.Type() == t {
				ok = true
				break
			}
		}
		if !ok {
			return &InvalidError{Reason: fmt.Sprintf("geometry type %s is not allowed here", g.Type())}
		}
	}
	if g.SRID() != DefaultSRID {
		return &InvalidError{Reason: fmt.Sprintf("expected SRID %d, got %d", DefaultSRID, g.SRID())}
	}
	for _, c := range Vertices(g) {
		if !b.Contains(c[0], c[1]) {
			return &InvalidError{Reason: fmt.Sprintf("coordinate (%g, %g) is outside the allowed area", c[0], c[1])}
		}
	}
	return nil
}

// Vertices returns every coordinate of g.
func Vertices(g Geometry) []geom.Coord {
	if g.IsNull() {
		return nil
	}
	if gc, ok := g.g.(*geom.GeometryCollection); ok {
		var out []geom.Coord
		for _, member := range gc.Geoms() {
			out = append(out, Vertices(Geometry{g: member})...)
		}
		return out
	}
	flat := g.g.FlatCoords()
	stride := g.g.Stride()
	if stride == 0 {
		return nil
	}
	out := make([]geom.Coord, 0, len(flat)/stride)
	for i := 0; i+stride <= len(flat); i += stride {
		c := make(geom.Coord, stride)
		copy(c, flat[i:i+stride])
		out = append(out, c)
	}
	return out
}

// ZOf returns the z coordinate of a point, or 0 when absent.
func ZOf(g Geometry) float64 {
	p, ok := g.g.(*geom.Point)
	if !ok || !g.HasZ() {
		return 0
	}
	return p.Z()
}

// SwapAxes returns [Y, X, Z?] for a single coordinate.
func SwapAxes(c []float64) []float64 {
	if len(c) < 2 {
		return c
	}
	out := make([]float64, len(c))
	copy(out, c)
	out[0], out[1] = c[1], c[0]
	return out
}

// Distance returns the planar distance between a and b, in reference-system
// units (metres for EPSG:3879). Lines are measured segment to segment and a
// geometry touching or inside a polygon is at distance 0, as ST_Distance.
func Distance(a, b Geometry) float64 {
	if a.IsNull() || b.IsNull() {
		return math.Inf(1)
	}
	pa, sa, polysA := split(a.g)
	pb, sb, polysB := split(b.g)
	if inside(polysA, pb, sb) || inside(polysB, pa, sa) {
		return 0
	}
	best := math.Inf(1)
	for _, p := range pa {
		for _, q := range pb {
			best = math.Min(best, math.Hypot(p[0]-q[0], p[1]-q[1]))
		}
		for _, s := range sb {
			best = math.Min(best, xy.DistanceFromPointToLine(p, s[0], s[1]))
		}
	}
	for _, s := range sa {
		for _, q := range pb {
			best = math.Min(best, xy.DistanceFromPointToLine(q, s[0], s[1]))
		}
		for _, o := range sb {
			best = math.Min(best, xy.DistanceFromLineToLine(s[0], s[1], o[0], o[1]))
		}
	}
	return best
}

type segment [2]geom.Coord

// split breaks t into isolated points and segments. Polygon rings become
// segments and the polygons are returned for containment tests.
func split(t geom.T) (points []geom.Coord, segs []segment, polys []*geom.Polygon) {
	line := func(cs []geom.Coord) {
		if len(cs) == 1 {
			points = append(points, cs[0])
		}
		for i := 0; i+1 < len(cs); i++ {
			segs = append(segs, segment{cs[i], cs[i+1]})
		}
	}
	switch v := t.(type) {
	case *geom.Point:
		if len(v.FlatCoords()) > 0 {
			points = append(points, v.Coords())
		}
	case *geom.MultiPoint:
		points = append(points, v.Coords()...)
	case *geom.LineString:
		line(v.Coords())
	case *geom.MultiLineString:
		for _, cs := range v.Coords() {
			line(cs)
		}
	case *geom.Polygon:
		for _, ring := range v.Coords() {
			line(ring)
		}
		polys = append(polys, v)
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			p, s, ps := split(v.Polygon(i))
			points, segs, polys = append(points, p...), append(segs, s...), append(polys, ps...)
		}
	case *geom.GeometryCollection:
		for _, member := range v.Geoms() {
			p, s, ps := split(member)
			points, segs, polys = append(points, p...), append(segs, s...), append(polys, ps...)
		}
	}
	return points, segs, polys
}

// inside reports whether any of points or segment ends lies in one of polys.
func inside(polys []*geom.Polygon, points []geom.Coord, segs []segment) bool {
	for _, p := range polys {
		g := Geometry{g: p}
		for _, c := range points {
			if Contains(g, c[0], c[1]) {
				return true
			}
		}
		for _, s := range segs {
			if Contains(g, s[0][0], s[0][1]) || Contains(g, s[1][0], s[1][1]) {
				return true
			}
		}
	}
	return false
}

// Centroid returns the centroid of g as a point with the same layout. Lines
// are weighted by length and polygons by area; z is the mean of the vertices.
func Centroid(g Geometry) Geometry {
	if g.IsNull() {
		return Geometry{}
	}
	if _, ok := g.g.(*geom.Point); ok {
		return g
	}
	verts := Vertices(g)
	if len(verts) == 0 {
		return Geometry{}
	}
	var cx, cy, zSum float64
	zIdx := g.g.Layout().ZIndex()
	for _, v := range verts {
		if zIdx >= 0 {
			zSum += v[zIdx]
		}
	}
	if c, err := xy.Centroid(g.g); err == nil && len(c) >= 2 && !math.IsNaN(c[0]) {
		cx, cy = c[0], c[1]
	} else {
		// Geometry collections and zero-length shapes.
		for _, v := range verts {
			cx += v[0]
			cy += v[1]
		}
		cx /= float64(len(verts))
		cy /= float64(len(verts))
	}
	var p *geom.Point
	if zIdx >= 0 {
		p = geom.NewPoint(geom.XYZ).MustSetCoords(geom.Coord{cx, cy, zSum / float64(len(verts))})
	} else {
		p = geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{cx, cy})
	}
	return Geometry{g: p.SetSRID(g.SRID())}
}

// Contains reports whether the point (x, y) lies inside any exterior ring
// of the polygonal geometry g and outside its holes.
func Contains(g Geometry, x, y float64) bool {
	var polys []*geom.Polygon
	switch v := g.g.(type) {
	case *geom.Polygon:
		polys = append(polys, v)
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			polys = append(polys, v.Polygon(i))
		}
	default:
		return false
	}
	for _, p := range polys {
		if p.NumLinearRings() == 0 || !inRing(p.LinearRing(0).Coords(), x, y) {
			continue
		}
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if inRing(p.LinearRing(i).Coords(), x, y) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func inRing(ring []geom.Coord, x, y float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Force3D lifts g to an XYZ layout, filling missing z with 0.
func Force3D(g Geometry) Geometry {
	if g.IsNull() || g.HasZ() {
		return g
	}
	lift := func(c geom.Coord) geom.Coord { return geom.Coord{c[0], c[1], 0} }
	liftAll := func(cs []geom.Coord) []geom.Coord {
		out := make([]geom.Coord, len(cs))
		for i, c := range cs {
			out[i] = lift(c)
		}
		return out
	}
	liftRings := func(rs [][]geom.Coord) [][]geom.Coord {
		out := make([][]geom.Coord, len(rs))
		for i, r := range rs {
			out[i] = liftAll(r)
		}
		return out
	}
	var t geom.T
	switch v := g.g.(type) {
	case *geom.Point:
		t = geom.NewPoint(geom.XYZ).MustSetCoords(lift(v.Coords()))
	case *geom.LineString:
		t = geom.NewLineString(geom.XYZ).MustSetCoords(liftAll(v.Coords()))
	case *geom.Polygon:
		t = geom.NewPolygon(geom.XYZ).MustSetCoords(liftRings(v.Coords()))
	case *geom.MultiPoint:
		t = geom.NewMultiPoint(geom.XYZ).MustSetCoords(liftAll(v.Coords()))
	case *geom.MultiLineString:
		t = geom.NewMultiLineString(geom.XYZ).MustSetCoords(liftRings(v.Coords()))
	case *geom.MultiPolygon:
		polys := v.Coords()
		out := make([][][]geom.Coord, len(polys))
		for i, p := range polys {
			out[i] = liftRings(p)
		}
		t = geom.NewMultiPolygon(geom.XYZ).MustSetCoords(out)
	default:
		return g
	}
	return Geometry{g: setSRID(t, g.SRID())}
}

// Multi promotes a Polygon to a single-member MultiPolygon.
func Multi(g Geometry) Geometry {
	p, ok := g.g.(*geom.Polygon)
	if !ok {
		return g
	}
	mp := geom.NewMultiPolygon(p.Layout()).MustSetCoords([][][]geom.Coord{p.Coords()})
	return Geometry{g: mp.SetSRID(g.SRID())}
}

// circleSegments matches the PostGIS default of 8 segments per quarter circle.
const circleSegments = 32

// DerivePlanLocation buffers every vertex of points by buffer, unions the
// buffers, takes the convex hull and lifts it to a MultiPolygon Z with z = 0.
// The union is subsumed by the hull so the circle vertices are hulled
// directly. Returns a null geometry when there are no vertices.
func DerivePlanLocation(points []Geometry, buffer float64) (Geometry, error) {
	if buffer <= 0 {
		return Geometry{}, fmt.Errorf("buffer must be positive, got %g", buffer)
	}
	var cloud []geom.Coord
	for _, p := range points {
		for _, v := range Vertices(p) {
			for i := 0; i < circleSegments; i++ {
				angle := 2 * math.Pi * float64(i) / circleSegments
				cloud = append(cloud, geom.Coord{v[0] + buffer*math.Cos(angle), v[1] + buffer*math.Sin(angle)})
			}
		}
	}
	if len(cloud) == 0 {
		return Geometry{}, nil
	}
	hull, ok := xy.ConvexHull(geom.NewMultiPoint(geom.XY).MustSetCoords(cloud)).(*geom.Polygon)
	if !ok || hull.NumLinearRings() == 0 {
		return Geometry{}, fmt.Errorf("convex hull of plan devices is degenerate")
	}
	ring := hull.LinearRing(0).Coords()
	lifted := make([]geom.Coord, 0, len(ring)+1)
	for _, c := range ring {
		lifted = append(lifted, geom.Coord{c[0], c[1], 0})
	}
	if first, last := lifted[0], lifted[len(lifted)-1]; first[0] != last[0] || first[1] != last[1] {
		lifted = append(lifted, geom.Coord{first[0], first[1], 0})
	}
	mp := geom.NewMultiPolygon(geom.XYZ).MustSetCoords([][][]geom.Coord{{lifted}})
	return Geometry{g: mp.SetSRID(DefaultSRID)}, nil
}

// Collect merges polygons and multipolygons into one MultiPolygon. Members
// must share a layout; use Force3D first when they may not.
func Collect(gs ...Geometry) (Geometry, error) {
	var (
		polys  [][][]geom.Coord
		layout geom.Layout
		srid   int
	)
	for _, g := range gs {
		if g.IsNull() {
			continue
		}
		if layout == geom.NoLayout {
			layout, srid = g.g.Layout(), g.SRID()
		} else if g.g.Layout() != layout {
			return Geometry{}, &InvalidError{Reason: "mixed coordinate layouts"}
		}
		switch v := g.g.(type) {
		case *geom.Polygon:
			polys = append(polys, v.Coords())
		case *geom.MultiPolygon:
			polys = append(polys, v.Coords()...)
		default:
			return Geometry{}, &InvalidError{Reason: fmt.Sprintf("expected a polygon, got %s", g.Type())}
		}
	}
	if len(polys) == 0 {
		return Geometry{}, nil
	}
	mp, err := geom.NewMultiPolygon(layout).SetCoords(polys)
	if err != nil {
		return Geometry{}, &InvalidError{Reason: err.Error()}
	}
	return Geometry{g: mp.SetSRID(srid)}, nil
}
