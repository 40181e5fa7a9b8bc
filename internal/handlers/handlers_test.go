package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
	"infra-registry/internal/repository/memstore"
	"infra-registry/internal/services"
	"infra-registry/internal/wfs"
)

var testBBox = geometry.BBox{MinX: 25440000, MinY: 6640000, MaxX: 25520000, MaxY: 6720000}

type permissive struct{}

func (permissive) AncestorIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{id}, nil
}

func (permissive) IntersectsOperationalArea(context.Context, uuid.UUID, geometry.Geometry) (bool, error) {
	return true, nil
}

type userMap map[uuid.UUID]*models.User

func (u userMap) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockImporter struct {
	mock.Mock
}

func (m *mockImporter) Import(ctx context.Context, k models.Kind, ds *importexport.Dataset, user *models.User, dryRun bool) (*importexport.Result, error) {
	args := m.Called(ctx, k, ds, user, dryRun)
	res, _ := args.Get(0).(*importexport.Result)
	return res, args.Error(1)
}

type testServer struct {
	t        *testing.T
	app      *fiber.App
	store    *memstore.Store
	devices  *services.Devices
	types    *services.DeviceTypeService
	importer *mockImporter
	tokens   *middleware.TokenManager
	admin    *models.User
	reader   *models.User
	owner    uuid.UUID
	signType *models.DeviceType
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	st := memstore.New()
	checker := services.NewPermissionChecker(permissive{})
	opts := services.DeviceOptions{BBox: testBBox, PlanBuffer: 5, MaxPageSize: 100}

	s := &testServer{
		t:        t,
		store:    st,
		devices:  services.NewDevices(st, checker, opts, log),
		types:    services.NewDeviceTypeService(st, checker, log),
		importer: &mockImporter{},
		tokens:   middleware.NewTokenManager("secret", time.Hour),
		admin:    &models.User{ID: uuid.New(), Username: "admin", IsSuperuser: true},
		reader:   &models.User{ID: uuid.New(), Username: "reader"},
		owner:    uuid.New(),
	}
	st.AddCatalogRow("owners", s.owner, map[string]string{"name_fi": "Helsingin kaupunki"})
	s.signType = &models.DeviceType{Code: "C31", TargetModel: models.TargetTrafficSign}
	require.NoError(t, s.types.Create(context.Background(), s.admin, s.signType))

	s.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	Register(s.app, Deps{
		Devices:     func(k models.Kind) DeviceAPI { return s.devices.For(k) },
		Plans:       services.NewPlanService(st, checker, opts, log),
		DeviceType:  s.types,
		Exporter:    importexport.NewExporter(st, log),
		Importer:    s.importer,
		Features:    wfs.NewService(st, wfs.AxisYX, log),
		Tokens:      s.tokens,
		Users:       userMap{s.admin.ID: s.admin, s.reader.ID: s.reader},
		WFSMaxCount: 1000,
	}, log)
	return s
}

func (s *testServer) do(req *http.Request, user *models.User) (*http.Response, []byte) {
	s.t.Helper()
	if user != nil {
		token, err := s.tokens.GenerateToken(user)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, body
}

func (s *testServer) request(method, target string, body interface{}, user *models.User) (*http.Response, []byte) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, user)
}

func (s *testServer) signPlan() uuid.UUID {
	s.t.Helper()
	d := &models.TrafficSignPlan{}
	d.Location = geometry.NewPoint(25496000, 6673000, 0)
	d.OwnerID = s.owner
	d.DeviceTypeID = &s.signType.ID
	require.NoError(s.t, s.devices.For(models.TrafficSignPlanKind).Create(context.Background(), s.admin, d))
	return d.ID
}

func decodeMap(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m
}

func TestAnonymousReadersDoNotSeeUsers(t *testing.T) {
	s := newTestServer(t)
	id := s.signPlan()

	resp, body := s.request(http.MethodGet, "/api/v1/trafficsignplans/"+id.String(), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m := decodeMap(t, body)
	assert.NotContains(t, m, "created_by")
	assert.Equal(t, geometry.NewPoint(25496000, 6673000, 0).EWKT(), m["location"])

	resp, body = s.request(http.MethodGet, "/api/v1/trafficsignplans/"+id.String(), nil, s.reader)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, s.admin.ID.String(), decodeMap(t, body)["created_by"])
}

func TestGeoJSONFormat(t *testing.T) {
	s := newTestServer(t)
	s.signPlan()

	resp, body := s.request(http.MethodGet, "/api/v1/trafficsignplans?geo_format=geojson", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Count   int64                    `json:"count"`
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	require.EqualValues(t, 1, page.Count)
	loc, ok := page.Results[0]["location"].(map[string]interface{})
	require.True(t, ok, "location should be a GeoJSON object")
	assert.Equal(t, "Point", loc["type"])
}

func TestWriteErrors(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]interface{}{
		"location": "SRID=3879;POINT Z (25496000 6673000 0)",
		"owner":    s.owner,
	}

	resp, _ := s.request(http.MethodPost, "/api/v1/trafficsignplans", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.request(http.MethodPost, "/api/v1/trafficsignplans", payload, s.reader)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.request(http.MethodGet, "/api/v1/trafficsignplans/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := s.request(http.MethodGet, "/api/v1/trafficsignplans/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), InvalidUUIDError)

	resp, body = s.request(http.MethodPost, "/api/v1/trafficsignplans", map[string]interface{}{
		"location": "SRID=3879;POINT Z (100 100 0)",
		"owner":    s.owner,
	}, s.admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeMap(t, body)["fields"], "location")
}

func TestCreateAndPatch(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.request(http.MethodPost, "/api/v1/trafficsignplans", map[string]interface{}{
		"location":    "SRID=3879;POINT Z (25496000 6673000 0)",
		"owner":       s.owner,
		"device_type": s.signType.ID,
		"txt":         "old",
	}, s.admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	id := decodeMap(t, body)["id"].(string)

	resp, body = s.request(http.MethodPatch, "/api/v1/trafficsignplans/"+id, map[string]interface{}{"txt": "new"}, s.admin)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m := decodeMap(t, body)
	assert.Equal(t, "new", m["txt"])
	assert.Equal(t, s.signType.ID.String(), m["device_type"])
	assert.Equal(t, geometry.NewPoint(25496000, 6673000, 0).EWKT(), m["location"])

	resp, body = s.request(http.MethodGet, "/api/v1/trafficsignplans/"+id+"/history", nil, s.admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decodeMap(t, body)["count"])
}

func TestReplacementRoutes(t *testing.T) {
	s := newTestServer(t)
	oldID := s.signPlan()
	newID := s.signPlan()

	resp, body := s.request(http.MethodPost, "/api/v1/trafficsignplans/"+newID.String()+"/replacement",
		map[string]interface{}{"replaces": oldID}, s.admin)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, oldID.String(), decodeMap(t, body)["replaces"])

	resp, body = s.request(http.MethodGet, "/api/v1/trafficsignplans", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeMap(t, body)["count"])

	resp, body = s.request(http.MethodGet, "/api/v1/trafficsignplans?is_replaced=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decodeMap(t, body)["count"])

	resp, _ = s.request(http.MethodPost, "/api/v1/trafficsignplans/"+newID.String()+"/replacement", map[string]interface{}{}, s.admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.request(http.MethodDelete, "/api/v1/trafficsignplans/"+newID.String()+"/replacement", nil, s.admin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.request(http.MethodPost, "/api/v1/trafficsignreals/"+newID.String()+"/replacement",
		map[string]interface{}{"replaces": oldID}, s.admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	id := s.signPlan()

	resp, body := s.request(http.MethodGet, "/api/v1/export/trafficsignplan?format=csv", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "traffic_sign_plan-")
	assert.Contains(t, string(body), id.String())

	resp, _ = s.request(http.MethodGet, "/api/v1/export/trafficsignplan?format=pdf", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.request(http.MethodGet, "/api/v1/export/benches", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.request(http.MethodGet, "/api/v1/export/trafficsignreal/real-template", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportDryRun(t *testing.T) {
	s := newTestServer(t)
	s.importer.On("Import", mock.Anything, models.TrafficSignPlanKind,
		mock.MatchedBy(func(ds *importexport.Dataset) bool { return len(ds.Rows) == 1 }),
		mock.MatchedBy(func(u *models.User) bool { return u != nil && u.ID == s.admin.ID }),
		true,
	).Return(&importexport.Result{Kind: "traffic_sign_plan", DryRun: true, Totals: importexport.Totals{New: 1}}, nil).Once()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "signs.csv")
	require.NoError(t, err)
	_, err = fmt.Fprintf(part, "id;owner\n;%s\n", s.owner)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/trafficsignplan?dry_run=true", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, body := s.do(req, s.admin)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res importexport.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Totals.New)
	s.importer.AssertExpectations(t)
}

func TestWFSEndpoint(t *testing.T) {
	s := newTestServer(t)
	m := &models.MountReal{}
	m.ID = uuid.New()
	m.IsActive = true
	m.Location = geometry.NewPoint(25496751.5, 6673129.5, 1.5)
	require.NoError(t, s.store.Devices(models.MountRealKind).Create(context.Background(), m))

	resp, body := s.request(http.MethodGet, "/wfs?SERVICE=WFS&REQUEST=GetFeature&TYPENAMES=app:mountreal", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `<gml:pos>6673129.5 25496751.5 1.5</gml:pos>`)
	assert.Contains(t, string(body), `gml:id="mountreal.`+m.ID.String()+`"`)

	resp, body = s.request(http.MethodGet, "/wfs?service=WFS&request=GetFeature&typeNames=mountreal&outputFormat=geojson", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FeatureCollection", decodeMap(t, body)["type"])

	resp, body = s.request(http.MethodGet, "/wfs?service=WFS&request=GetCapabilities", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mountrealcentroid")

	resp, _ = s.request(http.MethodGet, "/wfs?service=WFS&request=GetFeature&typeNames=bench", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListFilterValidation(t *testing.T) {
	s := newTestServer(t)
	for _, q := range []string{"limit=-1", "plan=nope", "is_replaced=maybe"} {
		resp, _ := s.request(http.MethodGet, "/api/v1/trafficsignplans?"+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}
