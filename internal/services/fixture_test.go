package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository/memstore"
)

var testBBox = geometry.BBox{MinX: 25440000, MinY: 6640000, MaxX: 25520000, MaxY: 6720000}

type fakePermissionStore struct {
	ancestors  map[uuid.UUID][]uuid.UUID
	intersects bool
}

func (f *fakePermissionStore) AncestorIDs(ctx context.Context, entityID uuid.UUID) ([]uuid.UUID, error) {
	if chain, ok := f.ancestors[entityID]; ok {
		return chain, nil
	}
	return []uuid.UUID{entityID}, nil
}

func (f *fakePermissionStore) IntersectsOperationalArea(ctx context.Context, userID uuid.UUID, g geometry.Geometry) (bool, error) {
	return f.intersects, nil
}

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	perms    *fakePermissionStore
	checker  *PermissionChecker
	devices  *Devices
	plans    *PlanService
	types    *DeviceTypeService
	owner    uuid.UUID
	signType *models.DeviceType
	admin    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	perms := &fakePermissionStore{ancestors: map[uuid.UUID][]uuid.UUID{}, intersects: true}
	checker := NewPermissionChecker(perms)
	opts := DeviceOptions{BBox: testBBox, PlanBuffer: 5, MaxPageSize: 100}
	log := zap.NewNop()

	f := &fixture{
		ctx:     context.Background(),
		store:   st,
		perms:   perms,
		checker: checker,
		devices: NewDevices(st, checker, opts, log),
		plans:   NewPlanService(st, checker, opts, log),
		types:   NewDeviceTypeService(st, checker, log),
		owner:   uuid.New(),
		admin:   &models.User{ID: uuid.New(), Username: "admin", IsSuperuser: true},
	}
	st.AddCatalogRow("owners", f.owner, map[string]string{"name_fi": "Helsingin kaupunki"})
	f.signType = &models.DeviceType{Code: "C31", TargetModel: models.TargetTrafficSign}
	require.NoError(t, f.types.Create(f.ctx, f.admin, f.signType))
	return f
}

func point(x, y float64) geometry.Geometry { return geometry.NewPoint(x, y, 0) }

func (f *fixture) signPlan(planID *uuid.UUID) *models.TrafficSignPlan {
	d := &models.TrafficSignPlan{}
	d.Location = point(25496000, 6673000)
	d.OwnerID = f.owner
	d.DeviceTypeID = &f.signType.ID
	d.PlanID = planID
	return d
}

func (f *fixture) signReal(devicePlan *uuid.UUID) *models.TrafficSignReal {
	d := &models.TrafficSignReal{}
	d.Location = point(25496010, 6673010)
	d.OwnerID = f.owner
	d.DeviceTypeID = &f.signType.ID
	d.DevicePlanID = devicePlan
	return d
}

func (f *fixture) mustCreate(t *testing.T, d models.Device) uuid.UUID {
	t.Helper()
	require.NoError(t, f.devices.For(d.Kind()).Create(f.ctx, f.admin, d))
	return d.Core().ID
}
