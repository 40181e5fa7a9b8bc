// Package geometry wraps go-geom values bound to the registry's spatial
// reference system (EPSG:3879 by default) and handles their database, JSON,
// EWKT and GeoJSON representations.
package geometry

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkbhex"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// DefaultSRID is applied to geometries parsed without an explicit SRID.
var DefaultSRID = 3879

// CRSURN is the OGC URN of the default reference system.
func CRSURN() string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", DefaultSRID)
}

type Type string

const (
	TypePoint           Type = "Point"
	TypeLineString      Type = "LineString"
	TypePolygon         Type = "Polygon"
	TypeMultiPoint      Type = "MultiPoint"
	TypeMultiLineString Type = "MultiLineString"
	TypeMultiPolygon    Type = "MultiPolygon"
	TypeCollection      Type = "GeometryCollection"
)

// Geometry is a nullable geometry value. The zero value is SQL NULL.
type Geometry struct {
	g geom.T
}

// New wraps g, applying DefaultSRID when g carries none.
func New(g geom.T) Geometry {
	if g == nil {
		return Geometry{}
	}
	if g.SRID() == 0 {
		g = setSRID(g, DefaultSRID)
	}
	return Geometry{g: g}
}

// NewPoint returns a 3D point in the default reference system.
func NewPoint(x, y, z float64) Geometry {
	return New(geom.NewPoint(geom.XYZ).MustSetCoords(geom.Coord{x, y, z}))
}

// NewPoint2D returns a 2D point in the default reference system.
func NewPoint2D(x, y float64) Geometry {
	return New(geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{x, y}))
}

func (g Geometry) IsNull() bool { return g.g == nil }

// T returns the underlying go-geom value (nil when null).
func (g Geometry) T() geom.T { return g.g }

func (g Geometry) SRID() int {
	if g.g == nil {
		return 0
	}
	return g.g.SRID()
}

func (g Geometry) HasZ() bool {
	return g.g != nil && g.g.Layout().ZIndex() != -1
}

func (g Geometry) Type() Type {
	switch g.g.(type) {
	case *geom.Point:
		return TypePoint
	case *geom.LineString:
		return TypeLineString
	case *geom.Polygon:
		return TypePolygon
	case *geom.MultiPoint:
		return TypeMultiPoint
	case *geom.MultiLineString:
		return TypeMultiLineString
	case *geom.MultiPolygon:
		return TypeMultiPolygon
	case *geom.GeometryCollection:
		return TypeCollection
	}
	return ""
}

// Equal compares type, SRID and coordinates.
func (g Geometry) Equal(o Geometry) bool {
	if g.IsNull() || o.IsNull() {
		return g.IsNull() == o.IsNull()
	}
	if g.Type() != o.Type() || g.SRID() != o.SRID() || g.g.Layout() != o.g.Layout() {
		return false
	}
	a, b := g.g.FlatCoords(), o.g.FlatCoords()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseEWKT parses "SRID=n;WKT" or plain WKT. Three-ordinate coordinates
// without a Z tag (PostGIS ST_AsEWKT output) are accepted.
func ParseEWKT(s string) (Geometry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Geometry{}, nil
	}
	srid := 0
	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		semi := strings.Index(s, ";")
		if semi < 0 {
			return Geometry{}, fmt.Errorf("invalid EWKT: missing ';' after SRID")
		}
		n, err := strconv.Atoi(strings.TrimSpace(s[5:semi]))
		if err != nil {
			return Geometry{}, fmt.Errorf("invalid EWKT SRID: %v", err)
		}
		srid = n
		s = strings.TrimSpace(s[semi+1:])
	}
	t, err := wkt.Unmarshal(s)
	if err != nil {
		retry, ok := tagZ(s)
		if !ok {
			return Geometry{}, fmt.Errorf("invalid WKT: %v", err)
		}
		if t, err = wkt.Unmarshal(retry); err != nil {
			return Geometry{}, fmt.Errorf("invalid WKT: %v", err)
		}
	}
	if srid != 0 {
		t = setSRID(t, srid)
	}
	return New(t), nil
}

// tagZ inserts the Z tag after the geometry keyword when it is missing.
func tagZ(s string) (string, bool) {
	open := strings.Index(s, "(")
	if open <= 0 {
		return "", false
	}
	head := strings.ToUpper(strings.TrimSpace(s[:open]))
	if strings.HasSuffix(head, " Z") || strings.HasSuffix(head, " M") || strings.HasSuffix(head, " ZM") {
		return "", false
	}
	return head + " Z " + s[open:], true
}

// EWKT renders "SRID=n;WKT", or "" for null.
func (g Geometry) EWKT() string {
	if g.g == nil {
		return ""
	}
	text, err := wkt.Marshal(g.g)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("SRID=%d;%s", g.SRID(), text)
}

func (g Geometry) String() string { return g.EWKT() }

// GeoJSON renders the geometry as a GeoJSON geometry object.
func (g Geometry) GeoJSON() (json.RawMessage, error) {
	if g.g == nil {
		return json.RawMessage("null"), nil
	}
	data, err := geojson.Marshal(g.g)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ParseGeoJSON parses a GeoJSON geometry object into the default SRID.
func ParseGeoJSON(data []byte) (Geometry, error) {
	var t geom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return Geometry{}, fmt.Errorf("invalid GeoJSON geometry: %v", err)
	}
	return New(t), nil
}

// Scan implements sql.Scanner for PostGIS hex EWKB (or EWKT text).
func (g *Geometry) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*g = Geometry{}
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("geometry: cannot scan %T", src)
	}
	if s == "" {
		*g = Geometry{}
		return nil
	}
	if isHex(s) {
		t, err := ewkbhex.Decode(s)
		if err != nil {
			return fmt.Errorf("geometry: %v", err)
		}
		*g = New(t)
		return nil
	}
	parsed, err := ParseEWKT(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Value implements driver.Valuer, writing EWKT which PostGIS accepts as input.
func (g Geometry) Value() (driver.Value, error) {
	if g.g == nil {
		return nil, nil
	}
	return g.EWKT(), nil
}

// HexEWKB returns the little-endian hex EWKB encoding.
func (g Geometry) HexEWKB() (string, error) {
	if g.g == nil {
		return "", nil
	}
	return ewkbhex.Encode(g.g, binary.LittleEndian)
}

// GormDataType keeps AutoMigrate from guessing a column type.
func (Geometry) GormDataType() string { return "geometry" }

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.g == nil {
		return []byte("null"), nil
	}
	return json.Marshal(g.EWKT())
}

// UnmarshalJSON accepts null, an EWKT string or a GeoJSON geometry object.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*g = Geometry{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseEWKT(s)
		if err != nil {
			return err
		}
		*g = parsed
		return nil
	}
	parsed, err := ParseGeoJSON(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func setSRID(t geom.T, srid int) geom.T {
	switch v := t.(type) {
	case *geom.Point:
		return v.SetSRID(srid)
	case *geom.LineString:
		return v.SetSRID(srid)
	case *geom.Polygon:
		return v.SetSRID(srid)
	case *geom.MultiPoint:
		return v.SetSRID(srid)
	case *geom.MultiLineString:
		return v.SetSRID(srid)
	case *geom.MultiPolygon:
		return v.SetSRID(srid)
	case *geom.GeometryCollection:
		return v.SetSRID(srid)
	}
	return t
}
