package importexport

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
	"infra-registry/internal/repository/memstore"
	"infra-registry/internal/services"
)

const ownerName = "Helsingin kaupunki"

type allowAll struct{}

func (allowAll) AncestorIDs(ctx context.Context, entityID uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{entityID}, nil
}

func (allowAll) IntersectsOperationalArea(ctx context.Context, userID uuid.UUID, g geometry.Geometry) (bool, error) {
	return true, nil
}

type fixture struct {
	ctx       context.Context
	store     *memstore.Store
	devices   *services.Devices
	exporter  *Exporter
	importer  *Importer
	owner     uuid.UUID
	plainType *models.DeviceType
	limitType *models.DeviceType
	postType  *models.DeviceType
	admin     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	opts := services.DeviceOptions{
		BBox:       geometry.BBox{MinX: 25440000, MinY: 6640000, MaxX: 25520000, MaxY: 6720000},
		PlanBuffer: 5,
	}
	devices := services.NewDevices(st, services.NewPermissionChecker(allowAll{}), opts, zap.NewNop())
	f := &fixture{
		ctx:      context.Background(),
		store:    st,
		devices:  devices,
		exporter: NewExporter(st, zap.NewNop()),
		importer: NewImporter(st, devices, nil, zap.NewNop()),
		owner:    uuid.New(),
		admin:    &models.User{ID: uuid.New(), IsSuperuser: true},
	}
	st.AddCatalogRow("owners", f.owner, map[string]string{"name_fi": ownerName})

	f.plainType = &models.DeviceType{ID: uuid.New(), Code: "C31", TargetModel: models.TargetTrafficSign}
	f.limitType = &models.DeviceType{
		ID:            uuid.New(),
		Code:          "C32",
		TargetModel:   models.TargetTrafficSign,
		ContentSchema: datatypes.JSON(`{"type":"object","properties":{"limit":{"type":"integer"}},"required":["limit"]}`),
	}
	f.postType = &models.DeviceType{ID: uuid.New(), Code: "F1", TargetModel: models.TargetSignpost}
	for _, dt := range []*models.DeviceType{f.plainType, f.limitType, f.postType} {
		require.NoError(t, st.DeviceTypes().Create(f.ctx, dt))
	}
	return f
}

func ewkt(x, y float64) string {
	return geometry.NewPoint(x, y, 0).EWKT()
}

func (f *fixture) create(t *testing.T, d models.Device) uuid.UUID {
	t.Helper()
	base := d.Core()
	if base.Location.IsNull() {
		base.Location = geometry.NewPoint(25496000, 6673000, 0)
	}
	base.OwnerID = f.owner
	require.NoError(t, f.devices.For(d.Kind()).Create(f.ctx, f.admin, d))
	return base.ID
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	plain := &models.TrafficSignReal{}
	plain.DeviceTypeID = &f.plainType.ID
	plain.Txt = "Pysäköinti; kielletty"
	plainID := f.create(t, plain)

	limited := &models.TrafficSignReal{}
	limited.DeviceTypeID = &f.limitType.ID
	limited.ContentS = datatypes.JSON(`{"limit":30}`)
	limited.Location = geometry.NewPoint(25496100.5, 6673100.25, 1.5)
	limitedID := f.create(t, limited)

	ds, err := f.exporter.Export(f.ctx, models.TrafficSignRealKind, repository.DeviceFilter{})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Contains(t, ds.Headers, "owner__name_fi")
	assert.Contains(t, ds.Headers, "device_type__code")
	assert.Contains(t, ds.Headers, "content_s.limit")
	assert.NotContains(t, ds.Headers, "content_s")
	assert.NotContains(t, ds.Headers, "owner")
	assert.NotContains(t, ds.Headers, "replaces")

	second := ds.Record(1)
	assert.Equal(t, limitedID.String(), second["id"])
	assert.Equal(t, ownerName, second["owner__name_fi"])
	assert.Equal(t, "C32", second["device_type__code"])
	assert.Equal(t, "30", second["content_s.limit"])
	assert.Equal(t, "", ds.Record(0)["content_s.limit"])

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))
	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Headers, back.Headers)
	assert.Equal(t, ds.Rows, back.Rows)

	result, err := f.importer.Import(f.ctx, models.TrafficSignRealKind, back, f.admin, false)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, Totals{Update: 2}, result.Totals)

	got, err := f.devices.For(models.TrafficSignRealKind).Get(f.ctx, limitedID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit":30}`, string(got.Core().ContentS))
	assert.Equal(t, limited.Location.EWKT(), got.Core().Location.EWKT())

	got, err = f.devices.For(models.TrafficSignRealKind).Get(f.ctx, plainID)
	require.NoError(t, err)
	assert.Equal(t, "Pysäköinti; kielletty", got.(*models.TrafficSignReal).Txt)
}

func TestImportResolvesPlaceholders(t *testing.T) {
	f := newFixture(t)
	ds := NewDataset([]string{"id", "location", "owner__name_fi", "device_type__code", "parent", "txt"})
	ds.Append(map[string]string{"id": "1", "location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1", "txt": "Keskusta"})
	ds.Append(map[string]string{"id": "2", "location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1", "parent": "1", "txt": "Kamppi"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1", "parent": "7"})
	ds.Append(map[string]string{"id": "1", "location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1"})

	result, err := f.importer.Import(f.ctx, models.SignpostPlanKind, ds, f.admin, false)
	require.NoError(t, err)
	assert.Equal(t, Totals{New: 2, Error: 2}, result.Totals)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Fields, "parent")
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Contains(t, result.Errors[1].Fields, "id")

	items, _, err := f.store.Devices(models.SignpostPlanKind).List(f.ctx, repository.DeviceFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	parent, child := items[0].(*models.SignpostPlan), items[1].(*models.SignpostPlan)
	assert.Equal(t, "Keskusta", parent.Txt)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestImportRowErrorsKeepOtherRows(t *testing.T) {
	f := newFixture(t)
	ds := NewDataset([]string{"location", "owner__name_fi", "device_type__code", "content_s.limit", "height"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "X99"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": "Unknown owner", "device_type__code": "C31"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "C32", "content_s.limit": "1.5"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "C31", "height": "tall"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "C32", "content_s.limit": "40", "height": "220"})

	result, err := f.importer.Import(f.ctx, models.TrafficSignPlanKind, ds, f.admin, false)
	require.NoError(t, err)
	assert.Equal(t, Totals{New: 1, Error: 4}, result.Totals)
	assert.Contains(t, result.Errors[0].Fields, "device_type__code")
	assert.Contains(t, result.Errors[1].Fields, "owner__name_fi")
	assert.Contains(t, result.Errors[2].Fields, "content_s.limit")
	assert.Contains(t, result.Errors[3].Fields, "height")
	assert.Equal(t, "X99", result.Errors[0].Values["device_type__code"])

	items, _, err := f.store.Devices(models.TrafficSignPlanKind).List(f.ctx, repository.DeviceFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	sign := items[0].(*models.TrafficSignPlan)
	assert.JSONEq(t, `{"limit":40}`, string(sign.ContentS))
	require.NotNil(t, sign.Height)
	assert.Equal(t, 220, *sign.Height)
}

func TestImportRejectsResponsibleEntityOutsideUser(t *testing.T) {
	f := newFixture(t)
	entity := uuid.New()
	f.store.AddCatalogRow("responsible_entities", entity, map[string]string{"name": "Liikennesuunnittelu"})
	writer := &models.User{ID: uuid.New(), WritePermissions: []string{"traffic_sign_plan"}, BypassOperationalArea: true}

	ds := NewDataset([]string{"location", "owner__name_fi", "device_type__code", "responsible_entity__name"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "C31", "responsible_entity__name": "Liikennesuunnittelu"})
	ds.Append(map[string]string{"location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "C31"})

	result, err := f.importer.Import(f.ctx, models.TrafficSignPlanKind, ds, writer, false)
	require.NoError(t, err)
	assert.Equal(t, Totals{New: 1, Error: 1}, result.Totals)
	assert.Equal(t, "permission denied", result.Errors[0].Message)

	_, err = f.importer.Import(f.ctx, models.TrafficSignPlanKind, ds, nil, false)
	assert.Error(t, err)
}

func TestImportDryRunCommitsNothing(t *testing.T) {
	f := newFixture(t)
	ds := NewDataset([]string{"id", "location", "owner__name_fi", "device_type__code", "parent"})
	ds.Append(map[string]string{"id": "1", "location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1"})
	ds.Append(map[string]string{"id": "2", "location": ewkt(25496000, 6673000), "owner__name_fi": ownerName, "device_type__code": "F1", "parent": "1"})

	result, err := f.importer.Import(f.ctx, models.SignpostRealKind, ds, f.admin, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, Totals{New: 2}, result.Totals)

	_, total, err := f.store.Devices(models.SignpostRealKind).List(f.ctx, repository.DeviceFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.store.AuditLog())
}

func TestImportReplacesMovesReal(t *testing.T) {
	f := newFixture(t)
	old := &models.TrafficSignPlan{}
	old.DeviceTypeID = &f.plainType.ID
	oldID := f.create(t, old)
	attached := &models.TrafficSignReal{}
	attached.DeviceTypeID = &f.plainType.ID
	attached.DevicePlanID = &oldID
	realID := f.create(t, attached)

	ds := NewDataset([]string{"location", "owner__name_fi", "device_type__code", "replaces"})
	ds.Append(map[string]string{"location": ewkt(25496005, 6673005), "owner__name_fi": ownerName, "device_type__code": "C31", "replaces": oldID.String()})

	result, err := f.importer.Import(f.ctx, models.TrafficSignPlanKind, ds, f.admin, false)
	require.NoError(t, err)
	require.Equal(t, Totals{New: 1}, result.Totals, result.Errors)

	edges := f.store.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, oldID, edges[0].OldID)
	moved := f.store.Raw(models.TrafficSignRealKind, realID).(*models.TrafficSignReal)
	assert.Equal(t, edges[0].NewID, *moved.DevicePlanID)

	exported, err := f.exporter.Export(f.ctx, models.TrafficSignPlanKind, repository.DeviceFilter{})
	require.NoError(t, err)
	require.Len(t, exported.Rows, 2)
	assert.Equal(t, oldID.String(), exported.Record(1)["replaces"])
}

func TestPlanRealTemplate(t *testing.T) {
	f := newFixture(t)
	plan := func(parent *uuid.UUID, txt string) uuid.UUID {
		d := &models.SignpostPlan{}
		d.DeviceTypeID = &f.postType.ID
		d.ParentID = parent
		d.Txt = txt
		return f.create(t, d)
	}
	s1 := plan(nil, "s1")
	s2 := plan(&s1, "s2")
	s3 := plan(nil, "s3")
	s4 := plan(&s3, "s4")

	r1 := &models.SignpostReal{}
	r1.DeviceTypeID = &f.postType.ID
	r1.DevicePlanID = &s1
	r1ID := f.create(t, r1)

	ds, err := f.exporter.PlanRealTemplate(f.ctx, models.SignpostPlanKind, repository.DeviceFilter{})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 4)
	assert.Contains(t, ds.Headers, "device_plan")
	assert.Contains(t, ds.Headers, "installation_date")
	assert.NotContains(t, ds.Headers, "plan")

	rows := map[string]map[string]string{}
	for i := range ds.Rows {
		rec := ds.Record(i)
		rows[rec["txt"]] = rec
	}
	assert.Equal(t, r1ID.String(), rows["s1"]["id"])
	assert.Equal(t, s1.String(), rows["s1"]["device_plan"])
	assert.Equal(t, "1", rows["s2"]["id"])
	assert.Equal(t, r1ID.String(), rows["s2"]["parent"])
	assert.Equal(t, "2", rows["s3"]["id"])
	assert.Equal(t, "3", rows["s4"]["id"])
	assert.Equal(t, "2", rows["s4"]["parent"])
	assert.Equal(t, s4.String(), rows["s4"]["device_plan"])
	assert.Equal(t, "F1", rows["s4"]["device_type__code"])
	assert.Equal(t, ownerName, rows["s4"]["owner__name_fi"])

	result, err := f.importer.Import(f.ctx, models.SignpostRealKind, ds, f.admin, false)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	assert.Equal(t, Totals{New: 3, Update: 1}, result.Totals)

	reals, err := f.store.Tables().RealsForPlans(f.ctx, models.SignpostRealKind, []uuid.UUID{s1, s2, s3, s4})
	require.NoError(t, err)
	require.Len(t, reals, 4)
	assert.Equal(t, r1ID, reals[s1])
	child := f.store.Raw(models.SignpostRealKind, reals[s4]).(*models.SignpostReal)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, reals[s3], *child.ParentID)

	again, err := f.exporter.PlanRealTemplate(f.ctx, models.SignpostPlanKind, repository.DeviceFilter{})
	require.NoError(t, err)
	for i := range again.Rows {
		_, isPlaceholder := placeholder(again.Record(i)["id"])
		assert.False(t, isPlaceholder)
	}

	_, err = f.exporter.PlanRealTemplate(f.ctx, models.SignpostRealKind, repository.DeviceFilter{})
	assert.Error(t, err)
}

func TestParentsFirst(t *testing.T) {
	parent, child, other := &models.SignpostPlan{}, &models.SignpostPlan{}, &models.SignpostPlan{}
	parent.ID, child.ID, other.ID = uuid.New(), uuid.New(), uuid.New()
	child.ParentID = &parent.ID

	ordered := parentsFirst([]models.Device{child, other, parent}, models.Info(models.SignpostPlanKind).Parents, models.SignpostPlanKind)
	assert.Equal(t, []uuid.UUID{other.ID, parent.ID, child.ID}, deviceIDs(ordered))
}

func TestReadCSVAcceptsBOMAndQuotes(t *testing.T) {
	input := "\xef\xbb\xbfid;location;txt\n;\"SRID=3879;POINT Z (25496000 6673000 0)\";\"a \"\"b\"\"\"\n\n"
	ds, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "location", "txt"}, ds.Headers)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "SRID=3879;POINT Z (25496000 6673000 0)", ds.Record(0)["location"])
	assert.Equal(t, `a "b"`, ds.Record(0)["txt"])

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestXLSXRoundTrip(t *testing.T) {
	ds := NewDataset([]string{"id", "height", "content_s.limit"})
	ds.Append(map[string]string{"id": uuid.NewString(), "height": "0220", "content_s.limit": "30"})
	ds.Append(map[string]string{"id": "1"})

	var buf bytes.Buffer
	require.NoError(t, ds.Write(FormatXLSX, &buf))
	back, err := Read(FormatXLSX, &buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Headers, back.Headers)
	assert.Equal(t, ds.Rows, back.Rows)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, "xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("ods")
	assert.Error(t, err)
}
