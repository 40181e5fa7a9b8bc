package wfs

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"

	"infra-registry/internal/geometry"
)

const (
	nsWFS = "http://www.opengis.net/wfs/2.0"
	nsGML = "http://www.opengis.net/gml/3.2"
	// AppNamespace qualifies the published feature types.
	AppNamespace = "http://www.opengis.net/infra-registry"
)

type gmlWriter struct {
	b    strings.Builder
	axis AxisOrder
	srs  string
}

// WriteGML renders sets as one GML 3.2 wfs:FeatureCollection.
func WriteGML(w io.Writer, sets []FeatureSet, axis AxisOrder, stamp time.Time) error {
	g := &gmlWriter{axis: axis, srs: geometry.CRSURN()}
	n := 0
	for _, set := range sets {
		n += len(set.Features)
	}

	g.b.WriteString(xml.Header)
	fmt.Fprintf(&g.b, `<wfs:FeatureCollection xmlns:wfs=%q xmlns:gml=%q xmlns:app=%q timeStamp=%q numberMatched="%d" numberReturned="%d">`,
		nsWFS, nsGML, AppNamespace, stamp.UTC().Format(time.RFC3339), n, n)
	g.envelope(sets)
	for _, set := range sets {
		for _, f := range set.Features {
			g.member(set.Type.Name, f)
		}
	}
	g.b.WriteString("</wfs:FeatureCollection>\n")

	_, err := io.WriteString(w, g.b.String())
	return err
}

func (g *gmlWriter) envelope(sets []FeatureSet) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, set := range sets {
		for _, f := range set.Features {
			for _, c := range geometry.Vertices(f.Geometry) {
				minX, maxX = math.Min(minX, c[0]), math.Max(maxX, c[0])
				minY, maxY = math.Min(minY, c[1]), math.Max(maxY, c[1])
			}
		}
	}
	if math.IsInf(minX, 1) {
		return
	}
	fmt.Fprintf(&g.b, `<gml:boundedBy><gml:Envelope srsName=%q srsDimension="2"><gml:lowerCorner>%s</gml:lowerCorner><gml:upperCorner>%s</gml:upperCorner></gml:Envelope></gml:boundedBy>`,
		g.srs, g.coords([]geom.Coord{{minX, minY}}), g.coords([]geom.Coord{{maxX, maxY}}))
}

func (g *gmlWriter) member(typeName string, f Feature) {
	id := typeName + "." + f.ID.String()
	fmt.Fprintf(&g.b, `<wfs:member><app:%s gml:id=%q>`, typeName, id)
	if !f.Geometry.IsNull() {
		g.b.WriteString("<app:location>")
		g.geometry(f.Geometry.T(), id+".geom", true)
		g.b.WriteString("</app:location>")
	}
	for _, p := range f.Properties {
		fmt.Fprintf(&g.b, "<app:%s>", p.Name)
		_ = xml.EscapeText(&g.b, []byte(propertyText(p.Value)))
		fmt.Fprintf(&g.b, "</app:%s>", p.Name)
	}
	fmt.Fprintf(&g.b, "</app:%s></wfs:member>", typeName)
}

func (g *gmlWriter) open(elem, id string, t geom.T, top bool) {
	fmt.Fprintf(&g.b, `<gml:%s gml:id=%q`, elem, id)
	if top {
		fmt.Fprintf(&g.b, ` srsName=%q`, g.srs)
	}
	fmt.Fprintf(&g.b, ` srsDimension="%d">`, t.Stride())
}

func (g *gmlWriter) geometry(t geom.T, id string, top bool) {
	switch v := t.(type) {
	case *geom.Point:
		g.open("Point", id, t, top)
		fmt.Fprintf(&g.b, "<gml:pos>%s</gml:pos></gml:Point>", g.coords([]geom.Coord{v.Coords()}))
	case *geom.LineString:
		g.open("LineString", id, t, top)
		fmt.Fprintf(&g.b, "<gml:posList>%s</gml:posList></gml:LineString>", g.coords(v.Coords()))
	case *geom.Polygon:
		g.open("Polygon", id, t, top)
		for i := 0; i < v.NumLinearRings(); i++ {
			boundary := "exterior"
			if i > 0 {
				boundary = "interior"
			}
			fmt.Fprintf(&g.b, "<gml:%s><gml:LinearRing><gml:posList>%s</gml:posList></gml:LinearRing></gml:%s>",
				boundary, g.coords(v.LinearRing(i).Coords()), boundary)
		}
		g.b.WriteString("</gml:Polygon>")
	default:
		g.open("MultiGeometry", id, t, top)
		for i, member := range members(t) {
			g.b.WriteString("<gml:geometryMember>")
			g.geometry(member, fmt.Sprintf("%s.%d", id, i), false)
			g.b.WriteString("</gml:geometryMember>")
		}
		g.b.WriteString("</gml:MultiGeometry>")
	}
}

func members(t geom.T) []geom.T {
	var out []geom.T
	switch v := t.(type) {
	case *geom.MultiPoint:
		for i := 0; i < v.NumPoints(); i++ {
			out = append(out, v.Point(i))
		}
	case *geom.MultiLineString:
		for i := 0; i < v.NumLineStrings(); i++ {
			out = append(out, v.LineString(i))
		}
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			out = append(out, v.Polygon(i))
		}
	case *geom.GeometryCollection:
		out = v.Geoms()
	}
	return out
}

// coords joins coordinates in the configured axis order.
func (g *gmlWriter) coords(cs []geom.Coord) string {
	parts := make([]string, 0, len(cs)*3)
	for _, c := range cs {
		if g.axis == AxisYX {
			c = geometry.SwapAxes(c)
		}
		for _, v := range c {
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return strings.Join(parts, " ")
}

// WriteCapabilities renders a minimal GetCapabilities document listing the
// published feature types.
func WriteCapabilities(w io.Writer, endpoint string) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<wfs:WFS_Capabilities xmlns:wfs=%q xmlns:ows="http://www.opengis.net/ows/1.1" xmlns:app=%q version="2.0.0">`, nsWFS, AppNamespace)
	b.WriteString(`<ows:OperationsMetadata>`)
	for _, op := range []string{OpGetCapabilities, OpGetFeature} {
		fmt.Fprintf(&b, `<ows:Operation name=%q><ows:DCP><ows:HTTP><ows:Get xlink:href=%q xmlns:xlink="http://www.w3.org/1999/xlink"/></ows:HTTP></ows:DCP></ows:Operation>`, op, endpoint)
	}
	b.WriteString(`</ows:OperationsMetadata><wfs:FeatureTypeList>`)
	for _, ft := range FeatureTypes() {
		fmt.Fprintf(&b, `<wfs:FeatureType><wfs:Name>app:%s</wfs:Name><wfs:Title>%s</wfs:Title><wfs:DefaultCRS>%s</wfs:DefaultCRS></wfs:FeatureType>`,
			ft.Name, ft.Name, geometry.CRSURN())
	}
	b.WriteString("</wfs:FeatureTypeList></wfs:WFS_Capabilities>\n")
	_, err := io.WriteString(w, b.String())
	return err
}
