package wfs

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository/memstore"
)

func seedMount(t *testing.T, store *memstore.Store, ewkt string) uuid.UUID {
	t.Helper()
	loc, err := geometry.ParseEWKT(ewkt)
	require.NoError(t, err)
	user := uuid.New()
	m := &models.MountReal{}
	m.ID = uuid.New()
	m.IsActive = true
	m.Location = loc
	m.CreatedByID = &user
	m.AdditionalInformation = "pole & bracket"
	require.NoError(t, store.Devices(models.MountRealKind).Create(context.Background(), m))
	return m.ID
}

func getFeature(t *testing.T, store *memstore.Store, params map[string]string) []FeatureSet {
	t.Helper()
	req, err := ParseRequest(params, 1000)
	require.NoError(t, err)
	sets, err := NewService(store, AxisYX, zap.NewNop()).GetFeature(context.Background(), req)
	require.NoError(t, err)
	return sets
}

func TestGMLSwapsAxes(t *testing.T) {
	store := memstore.New()
	id := seedMount(t, store, "SRID=3879;POINT Z (25496751.5 6673129.5 1.5)")
	sets := getFeature(t, store, map[string]string{"service": "WFS", "request": "GetFeature", "typenames": "mountreal"})

	var buf bytes.Buffer
	require.NoError(t, WriteGML(&buf, sets, AxisYX, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	out := buf.String()

	assert.Contains(t, out, `<gml:pos>6673129.5 25496751.5 1.5</gml:pos>`)
	assert.Contains(t, out, `srsName="urn:ogc:def:crs:EPSG::3879"`)
	assert.Contains(t, out, `<app:mountreal gml:id="mountreal.`+id.String()+`">`)
	assert.Contains(t, out, `<gml:lowerCorner>6673129.5 25496751.5</gml:lowerCorner>`)
	assert.Contains(t, out, `numberReturned="1"`)
	assert.Contains(t, out, `<app:additional_information>pole &amp; bracket</app:additional_information>`)
	assert.NotContains(t, out, "created_by")

	buf.Reset()
	require.NoError(t, WriteGML(&buf, sets, AxisXY, time.Now()))
	assert.Contains(t, buf.String(), `<gml:pos>25496751.5 6673129.5 1.5</gml:pos>`)
}

func TestGeoJSONKeepsCanonicalOrder(t *testing.T) {
	store := memstore.New()
	id := seedMount(t, store, "SRID=3879;POINT Z (25496751.5 6673129.5 1.5)")
	sets := getFeature(t, store, map[string]string{"service": "wfs", "request": "getfeature", "typenames": "app:mountreal", "outputformat": "geojson"})

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sets))
	var doc struct {
		CRS struct {
			Type       string `json:"type"`
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "name", doc.CRS.Type)
	assert.Equal(t, "urn:ogc:def:crs:EPSG::3879", doc.CRS.Properties.Name)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "mountreal."+id.String(), doc.Features[0].ID)
	assert.Equal(t, []float64{25496751.5, 6673129.5, 1.5}, doc.Features[0].Geometry.Coordinates)
	assert.NotContains(t, doc.Features[0].Properties, "created_by")
}

func TestCentroidTypeProjectsGeometry(t *testing.T) {
	store := memstore.New()
	seedMount(t, store, "SRID=3879;LINESTRING Z (25496000 6673000 0, 25496010 6673000 2)")
	sets := getFeature(t, store, map[string]string{"service": "WFS", "request": "GetFeature", "typenames": "mountrealcentroid,mountplan"})
	require.Len(t, sets, 2)
	assert.True(t, sets[0].Type.Centroid)
	require.Len(t, sets[0].Features, 1)
	assert.Empty(t, sets[1].Features)

	var buf bytes.Buffer
	require.NoError(t, WriteGML(&buf, sets, AxisYX, time.Now()))
	assert.Contains(t, buf.String(), `<gml:pos>6673000 25496005 1</gml:pos>`)
	assert.Contains(t, buf.String(), `<app:mountrealcentroid gml:id="mountrealcentroid.`)
}

func TestGMLPolygonAndMulti(t *testing.T) {
	poly, err := geometry.ParseEWKT("SRID=3879;MULTIPOLYGON Z (((1 2 0, 3 2 0, 3 4 0, 1 2 0)))")
	require.NoError(t, err)
	ft, ok := ResolveType("barrierplan")
	require.True(t, ok)
	sets := []FeatureSet{{Type: ft, Features: []Feature{{ID: uuid.New(), Geometry: poly}}}}

	var buf bytes.Buffer
	require.NoError(t, WriteGML(&buf, sets, AxisYX, time.Now()))
	out := buf.String()
	assert.Contains(t, out, "<gml:MultiGeometry")
	assert.Contains(t, out, "<gml:geometryMember><gml:Polygon")
	assert.Contains(t, out, "<gml:exterior><gml:LinearRing><gml:posList>2 1 0 2 3 0 4 3 0 2 1 0</gml:posList>")
}

func TestParseRequest(t *testing.T) {
	base := func(extra map[string]string) map[string]string {
		p := map[string]string{"service": "WFS", "version": "2.0.0", "request": "GetFeature", "typenames": "trafficsignreal"}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	req, err := ParseRequest(base(map[string]string{"count": "5000"}), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, req.Count)
	assert.Equal(t, FormatGML, req.Format)
	assert.Equal(t, models.TrafficSignRealKind, req.Types[0].Kind)

	req, err = ParseRequest(base(map[string]string{"outputformat": "application/json", "srsname": "EPSG:3879", "count": "10"}), 1000)
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, req.Format)
	assert.Equal(t, 10, req.Count)

	req, err = ParseRequest(map[string]string{"service": "WFS", "request": "GetCapabilities"}, 0)
	require.NoError(t, err)
	assert.Equal(t, OpGetCapabilities, req.Operation)
	assert.Len(t, req.Types, 32)

	for name, params := range map[string]map[string]string{
		"service":   {"service": "WMS", "request": "GetFeature", "typenames": "mountreal"},
		"type":      base(map[string]string{"typenames": "bench"}),
		"missing":   base(map[string]string{"typenames": ""}),
		"srs":       base(map[string]string{"srsname": "EPSG:4326"}),
		"format":    base(map[string]string{"outputformat": "shape-zip"}),
		"count":     base(map[string]string{"count": "-1"}),
		"operation": base(map[string]string{"request": "Transaction"}),
	} {
		_, err := ParseRequest(params, 1000)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), name)
	}
}

func TestWriteCapabilities(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCapabilities(&buf, "/wfs"))
	assert.Contains(t, buf.String(), "<wfs:Name>app:trafficsignplancentroid</wfs:Name>")
	assert.Contains(t, buf.String(), `<ows:Operation name="GetFeature">`)
}
