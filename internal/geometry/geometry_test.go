package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helsinki = BBox{MinX: 25487917.069, MinY: 6645439.04, MaxX: 25514074.208, MaxY: 6687278.424}

func TestParseEWKT(t *testing.T) {
	g, err := ParseEWKT("SRID=3879;POINT Z (25496751.5 6673129.5 1.5)")
	require.NoError(t, err)
	assert.Equal(t, TypePoint, g.Type())
	assert.Equal(t, 3879, g.SRID())
	assert.True(t, g.HasZ())
	assert.Equal(t, 1.5, ZOf(g))
	assert.Equal(t, "SRID=3879;POINT Z (25496751.5 6673129.5 1.5)", g.EWKT())
}

func TestParseEWKT_UntaggedZAndDefaultSRID(t *testing.T) {
	g, err := ParseEWKT("POINT (10 20 3)")
	require.NoError(t, err)
	assert.Equal(t, DefaultSRID, g.SRID())
	assert.Equal(t, 3.0, ZOf(g))

	flat, err := ParseEWKT("POINT (10 20)")
	require.NoError(t, err)
	assert.False(t, flat.HasZ())
	assert.Equal(t, 0.0, ZOf(flat))
}

func TestParseEWKT_Invalid(t *testing.T) {
	_, err := ParseEWKT("SRID=abc;POINT (1 2)")
	assert.Error(t, err)
	_, err = ParseEWKT("POINT (1 2")
	assert.Error(t, err)

	empty, err := ParseEWKT("  ")
	require.NoError(t, err)
	assert.True(t, empty.IsNull())
}

func TestScanAndValueRoundTrip(t *testing.T) {
	orig := NewPoint(25496751.5, 6673129.5, 1.5)
	hexValue, err := orig.HexEWKB()
	require.NoError(t, err)

	var scanned Geometry
	require.NoError(t, scanned.Scan([]byte(hexValue)))
	assert.True(t, orig.Equal(scanned))

	value, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, orig.EWKT(), value)

	var null Geometry
	require.NoError(t, null.Scan(nil))
	assert.True(t, null.IsNull())
	v, err := null.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestJSON(t *testing.T) {
	type wrapper struct {
		Location Geometry `json:"location"`
	}
	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"location":"SRID=3879;POINT Z (1 2 3)"}`), &w))
	assert.Equal(t, TypePoint, w.Location.Type())

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"location":"SRID=3879;POINT Z (1 2 3)"}`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`{"location":{"type":"Point","coordinates":[1,2,3]}}`), &w))
	assert.Equal(t, 3879, w.Location.SRID())
	assert.Equal(t, 3.0, ZOf(w.Location))

	require.NoError(t, json.Unmarshal([]byte(`{"location":null}`), &w))
	assert.True(t, w.Location.IsNull())
}

func TestBBoxValidate(t *testing.T) {
	inside := NewPoint(25496751.5, 6673129.5, 0)
	assert.NoError(t, helsinki.Validate(inside, TypePoint))

	outside := NewPoint(1, 0, 0)
	err := helsinki.Validate(outside, TypePoint)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)

	line, err := ParseEWKT("SRID=3879;LINESTRING Z (25496751 6673129 0, 25496760 6673140 0)")
	require.NoError(t, err)
	assert.Error(t, helsinki.Validate(line, TypePoint))
	assert.NoError(t, helsinki.Validate(line, TypePoint, TypeLineString))
	assert.NoError(t, helsinki.Validate(Geometry{}, TypePoint))
}

func TestSwapAxes(t *testing.T) {
	assert.Equal(t, []float64{6673129.5, 25496751.5, 1.5}, SwapAxes([]float64{25496751.5, 6673129.5, 1.5}))
	assert.Equal(t, []float64{2, 1}, SwapAxes([]float64{1, 2}))
}

func TestDerivePlanLocation(t *testing.T) {
	points := []Geometry{NewPoint(10, 10, 0), NewPoint(100, 100, 0)}
	loc, err := DerivePlanLocation(points, 5)
	require.NoError(t, err)

	assert.Equal(t, TypeMultiPolygon, loc.Type())
	assert.True(t, loc.HasZ())
	assert.True(t, Contains(loc, 10, 10))
	assert.True(t, Contains(loc, 100, 100))
	assert.True(t, Contains(loc, 55, 55))
	assert.True(t, Contains(loc, 13, 10), "buffer extends the hull")
	assert.False(t, Contains(loc, 150, 150))
	for _, v := range Vertices(loc) {
		assert.Equal(t, 0.0, v[2])
	}
}

func TestDerivePlanLocation_Empty(t *testing.T) {
	loc, err := DerivePlanLocation(nil, 5)
	require.NoError(t, err)
	assert.True(t, loc.IsNull())

	_, err = DerivePlanLocation([]Geometry{NewPoint(1, 1, 0)}, 0)
	assert.Error(t, err)
}

func TestCentroid(t *testing.T) {
	poly, err := ParseEWKT("SRID=3879;POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))")
	require.NoError(t, err)
	c := Centroid(poly)
	v := Vertices(c)
	require.Len(t, v, 1)
	assert.InDelta(t, 2.0, v[0][0], 1e-9)
	assert.InDelta(t, 2.0, v[0][1], 1e-9)

	line, err := ParseEWKT("SRID=3879;LINESTRING Z (0 0 2, 10 0 4)")
	require.NoError(t, err)
	lc := Vertices(Centroid(line))
	assert.Equal(t, []float64{5, 0, 3}, []float64(lc[0]))

	bent, err := ParseEWKT("SRID=3879;LINESTRING (0 0, 10 0, 10 1)")
	require.NoError(t, err)
	bc := Vertices(Centroid(bent))
	assert.InDelta(t, 60.0/11, bc[0][0], 1e-9)
	assert.InDelta(t, 0.5/11, bc[0][1], 1e-9)
}

func TestDistanceBetweenShapes(t *testing.T) {
	parse := func(s string) Geometry {
		g, err := ParseEWKT("SRID=3879;" + s)
		require.NoError(t, err)
		return g
	}
	road := parse("LINESTRING Z (25496700 6673100 0, 25496800 6673100 0)")
	crossing := parse("LINESTRING Z (25496750 6673101 0, 25496750 6673200 0)")
	island := parse("POLYGON ((25496740 6673090, 25496760 6673090, 25496760 6673095, 25496740 6673095, 25496740 6673090))")

	cases := []struct {
		name string
		a, b Geometry
		want float64
	}{
		{"line to line between vertices", road, crossing, 1},
		{"point to line interior", NewPoint(25496750, 6673103, 0), road, 3},
		{"crossing lines", road, parse("LINESTRING (25496750 6673050, 25496750 6673150)"), 0},
		{"line to polygon edge", road, island, 5},
		{"point inside polygon", NewPoint(25496750, 6673092, 0), island, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Distance(tc.a, tc.b), 1e-6)
			assert.InDelta(t, tc.want, Distance(tc.b, tc.a), 1e-6)
		})
	}
	assert.True(t, math.IsInf(Distance(Geometry{}, road), 1))
}

func TestDistanceAndForce3D(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(NewPoint(0, 0, 0), NewPoint(3, 4, 10)), 1e-9)

	poly, err := ParseEWKT("SRID=3879;POLYGON ((0 0, 4 0, 4 4, 0 0))")
	require.NoError(t, err)
	lifted := Force3D(Multi(poly))
	assert.Equal(t, TypeMultiPolygon, lifted.Type())
	assert.True(t, lifted.HasZ())
	assert.Equal(t, 3879, lifted.SRID())
}
