package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

func TestCreateDevice(t *testing.T) {
	f := newFixture(t)
	d := f.signPlan(nil)
	d.Location = geometry.NewPoint2D(25496000, 6673000)

	id := f.mustCreate(t, d)

	got, err := f.devices.For(models.TrafficSignPlanKind).Get(f.ctx, id)
	require.NoError(t, err)
	base := got.Core()
	assert.True(t, base.IsActive)
	assert.Equal(t, models.LifecycleActive, base.Lifecycle)
	assert.True(t, base.Location.HasZ())
	require.NotNil(t, base.CreatedByID)
	assert.Equal(t, f.admin.ID, *base.CreatedByID)

	history, err := f.devices.For(models.TrafficSignPlanKind).History(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AuditCreate, history[0].Action)
}

func TestCreateDeviceCollectsFieldErrors(t *testing.T) {
	f := newFixture(t)
	d := f.signPlan(nil)
	d.Location = point(100, 100)
	d.OwnerID = uuid.Nil
	d.Size = "XL"

	err := f.devices.For(models.TrafficSignPlanKind).Create(f.ctx, f.admin, d)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	fields := apperrors.Fields(err)
	assert.Contains(t, fields, "location")
	assert.Contains(t, fields, "owner")
	assert.Contains(t, fields, "size")

	list, total, err := f.devices.For(models.TrafficSignPlanKind).List(f.ctx, repository.DeviceFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

func TestCreateDeviceRejectsUnknownOwner(t *testing.T) {
	f := newFixture(t)
	d := f.signPlan(nil)
	d.OwnerID = uuid.New()

	err := f.devices.For(models.TrafficSignPlanKind).Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "owner")
}

func TestCreateDeviceUsesDefaultOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.owner
	svc := NewDeviceService(models.TrafficSignPlanKind, f.store, f.checker,
		DeviceOptions{BBox: testBBox, PlanBuffer: 5, DefaultOwnerID: &owner}, zap.NewNop())
	d := f.signPlan(nil)
	d.OwnerID = uuid.Nil

	require.NoError(t, svc.Create(f.ctx, f.admin, d))
	assert.Equal(t, owner, d.OwnerID)
}

func TestCreateDeviceRejectsForeignDeviceType(t *testing.T) {
	f := newFixture(t)
	barrierType := &models.DeviceType{Code: "B1", TargetModel: models.TargetBarrier}
	require.NoError(t, f.types.Create(f.ctx, f.admin, barrierType))

	d := f.signPlan(nil)
	d.DeviceTypeID = &barrierType.ID
	err := f.devices.For(models.TrafficSignPlanKind).Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "device_type")
}

func TestCreateDeviceValidatesContent(t *testing.T) {
	f := newFixture(t)
	dt := &models.DeviceType{
		Code:          "H20.8",
		TargetModel:   models.TargetTrafficSign,
		ContentSchema: datatypes.JSON(`{"type":"object","properties":{"permit":{"type":"string"}},"required":["permit"]}`),
	}
	require.NoError(t, f.types.Create(f.ctx, f.admin, dt))
	svc := f.devices.For(models.TrafficSignPlanKind)

	d := f.signPlan(nil)
	d.DeviceTypeID = &dt.ID
	err := svc.Create(f.ctx, f.admin, d)
	assert.Equal(t, []string{"this field is required"}, apperrors.Fields(err)["content_s"])

	d = f.signPlan(nil)
	d.DeviceTypeID = &dt.ID
	d.ContentS = datatypes.JSON(`{"permit":1}`)
	err = svc.Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "content_s.permit")

	d = f.signPlan(nil)
	d.DeviceTypeID = &dt.ID
	d.ContentS = datatypes.JSON(`{"permit":"A"}`)
	assert.NoError(t, svc.Create(f.ctx, f.admin, d))

	d = f.signPlan(nil)
	d.ContentS = datatypes.JSON(`{"permit":"A"}`)
	err = svc.Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "content_s")
}

func TestMissingContentForbidsContent(t *testing.T) {
	f := newFixture(t)
	addType := &models.DeviceType{Code: "H1", TargetModel: models.TargetAdditionalSign}
	require.NoError(t, f.types.Create(f.ctx, f.admin, addType))

	d := &models.AdditionalSignPlan{}
	d.Location = point(25496000, 6673000)
	d.OwnerID = f.owner
	d.DeviceTypeID = &addType.ID
	d.MissingContent = true
	d.ContentS = datatypes.JSON(`{"text":"x"}`)

	err := f.devices.For(models.AdditionalSignPlanKind).Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "content_s")

	d.ContentS = nil
	assert.NoError(t, f.devices.For(models.AdditionalSignPlanKind).Create(f.ctx, f.admin, d))
}

func TestCreateDeviceRejectsDuplicateSource(t *testing.T) {
	f := newFixture(t)
	first := f.signPlan(nil)
	first.SourceName, first.SourceID = "survey", "17"
	f.mustCreate(t, first)

	second := f.signPlan(nil)
	second.SourceName, second.SourceID = "survey", "17"
	err := f.devices.For(models.TrafficSignPlanKind).Create(f.ctx, f.admin, second)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestDevicePlanHasOneActiveReal(t *testing.T) {
	f := newFixture(t)
	planID := f.mustCreate(t, f.signPlan(nil))
	f.mustCreate(t, f.signReal(&planID))

	err := f.devices.For(models.TrafficSignRealKind).Create(f.ctx, f.admin, f.signReal(&planID))
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	missing := uuid.New()
	err = f.devices.For(models.TrafficSignRealKind).Create(f.ctx, f.admin, f.signReal(&missing))
	assert.Contains(t, apperrors.Fields(err), "device_plan")
}

func TestParentReferencesMustExist(t *testing.T) {
	f := newFixture(t)
	d := &models.SignpostPlan{}
	d.Location = point(25496000, 6673000)
	d.OwnerID = f.owner
	spType := &models.DeviceType{Code: "F1", TargetModel: models.TargetSignpost}
	require.NoError(t, f.types.Create(f.ctx, f.admin, spType))
	d.DeviceTypeID = &spType.ID
	d.ID = uuid.New()
	self := d.ID
	d.ParentID = &self

	err := f.devices.For(models.SignpostPlanKind).Create(f.ctx, f.admin, d)
	assert.Equal(t, []string{"a device cannot reference itself"}, apperrors.Fields(err)["parent"])

	other := uuid.New()
	d.ParentID = &other
	err = f.devices.For(models.SignpostPlanKind).Create(f.ctx, f.admin, d)
	assert.Contains(t, apperrors.Fields(err), "parent")
}

func TestUpdateDeviceRecordsDiff(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, f.signPlan(nil))
	svc := f.devices.For(models.TrafficSignPlanKind)

	editor := &models.User{ID: uuid.New(), WritePermissions: []string{"traffic_sign_plan"}, BypassOperationalArea: true}
	got, err := svc.Get(f.ctx, id)
	require.NoError(t, err)
	got.(*models.TrafficSignPlan).Txt = "Pysäköinti"
	require.NoError(t, svc.Update(f.ctx, editor, got))

	stored, err := svc.Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, *stored.Core().CreatedByID)
	assert.Equal(t, editor.ID, *stored.Core().UpdatedByID)

	history, err := svc.History(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.AuditUpdate, history[1].Action)
	var changes map[string]Change
	require.NoError(t, json.Unmarshal(history[1].Changes, &changes))
	assert.Equal(t, Change{Old: "", New: "Pysäköinti"}, changes["txt"])
	assert.NotContains(t, changes, "updated_at")
}

func TestUpdateMissingDevice(t *testing.T) {
	f := newFixture(t)
	d := f.signPlan(nil)
	d.ID = uuid.New()
	err := f.devices.For(models.TrafficSignPlanKind).Update(f.ctx, f.admin, d)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestSoftDeleteCascadesToAdditionalSigns(t *testing.T) {
	f := newFixture(t)
	addType := &models.DeviceType{Code: "H2", TargetModel: models.TargetAdditionalSign}
	require.NoError(t, f.types.Create(f.ctx, f.admin, addType))

	signID := f.mustCreate(t, f.signReal(nil))
	otherID := f.mustCreate(t, f.signReal(nil))
	child := func(parent uuid.UUID) uuid.UUID {
		d := &models.AdditionalSignReal{}
		d.Location = point(25496000, 6673000)
		d.OwnerID = f.owner
		d.DeviceTypeID = &addType.ID
		d.ParentID = &parent
		return f.mustCreate(t, d)
	}
	first, second, unrelated := child(signID), child(signID), child(otherID)

	deleter := &models.User{ID: uuid.New(), WritePermissions: []string{"*"}, BypassOperationalArea: true}
	require.NoError(t, f.devices.For(models.TrafficSignRealKind).SoftDelete(f.ctx, deleter, signID))

	_, err := f.devices.For(models.TrafficSignRealKind).Get(f.ctx, signID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	for _, id := range []uuid.UUID{first, second} {
		raw := f.store.Raw(models.AdditionalSignRealKind, id).Core()
		assert.False(t, raw.IsActive)
		require.NotNil(t, raw.DeletedByID)
		assert.Equal(t, deleter.ID, *raw.DeletedByID)
		assert.NotNil(t, raw.DeletedAt)
	}
	assert.True(t, f.store.Raw(models.AdditionalSignRealKind, unrelated).Core().IsActive)

	deletes := 0
	for _, entry := range f.store.AuditLog() {
		if entry.Action == models.AuditSoftDelete {
			deletes++
		}
	}
	assert.Equal(t, 3, deletes)

	err = f.devices.For(models.TrafficSignRealKind).SoftDelete(f.ctx, deleter, signID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestListCapsPageSize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.mustCreate(t, f.signPlan(nil))
	}
	svc := NewDeviceService(models.TrafficSignPlanKind, f.store, f.checker, DeviceOptions{BBox: testBBox, MaxPageSize: 2}, zap.NewNop())
	items, total, err := svc.List(f.ctx, repository.DeviceFilter{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(3), total)
}

func TestPlanLocationFollowsPlannedDevices(t *testing.T) {
	f := newFixture(t)
	plan := &models.Plan{Name: "Mannerheimintie", DiaryNumber: "HEL 2024-1", DeriveLocation: true}
	require.NoError(t, f.plans.Create(f.ctx, f.admin, plan))

	first := f.signPlan(&plan.ID)
	firstID := f.mustCreate(t, first)
	second := f.signPlan(&plan.ID)
	second.Location = point(25496100, 6673100)
	secondID := f.mustCreate(t, second)

	got, err := f.plans.Get(f.ctx, plan.ID)
	require.NoError(t, err)
	require.False(t, got.Location.IsNull())
	assert.Equal(t, geometry.TypeMultiPolygon, got.Location.Type())
	assert.True(t, geometry.Contains(got.Location, 25496050, 6673050))

	svc := f.devices.For(models.TrafficSignPlanKind)
	require.NoError(t, svc.SoftDelete(f.ctx, f.admin, firstID))
	require.NoError(t, svc.SoftDelete(f.ctx, f.admin, secondID))
	got, err = f.plans.Get(f.ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, got.Location.IsNull())
}

func TestPlanDiaryNumberIsUnique(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.plans.Create(f.ctx, f.admin, &models.Plan{Name: "A", DiaryNumber: "HEL 2024-2"}))
	err := f.plans.Create(f.ctx, f.admin, &models.Plan{Name: "B", DiaryNumber: "HEL 2024-2"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	err = f.plans.Create(f.ctx, f.admin, &models.Plan{Name: " "})
	assert.Contains(t, apperrors.Fields(err), "name")
}

func TestPlanSoftDeleteKeepsDevices(t *testing.T) {
	f := newFixture(t)
	plan := &models.Plan{Name: "A"}
	require.NoError(t, f.plans.Create(f.ctx, f.admin, plan))
	id := f.mustCreate(t, f.signPlan(&plan.ID))

	require.NoError(t, f.plans.SoftDelete(f.ctx, f.admin, plan.ID))
	got, err := f.devices.For(models.TrafficSignPlanKind).Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, *got.(*models.TrafficSignPlan).PlanID)
}
