package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

func TestCanWrite(t *testing.T) {
	checker := NewPermissionChecker(&fakePermissionStore{})
	tests := []struct {
		name     string
		user     *models.User
		resource string
		want     bool
	}{
		{name: "anonymous", user: nil, resource: "plan", want: false},
		{name: "superuser", user: &models.User{IsSuperuser: true}, resource: "plan", want: true},
		{name: "granted", user: &models.User{WritePermissions: []string{"traffic_sign_plan"}}, resource: "traffic_sign_plan", want: true},
		{name: "other resource", user: &models.User{WritePermissions: []string{"traffic_sign_plan"}}, resource: "traffic_sign_real", want: false},
		{name: "wildcard", user: &models.User{WritePermissions: []string{WildcardPermission}}, resource: "device_type", want: true},
		{name: "none", user: &models.User{}, resource: "plan", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.CanWrite(tt.user, tt.resource))
		})
	}
}

func TestCanUseResponsibleEntity(t *testing.T) {
	root, district, street := uuid.New(), uuid.New(), uuid.New()
	store := &fakePermissionStore{ancestors: map[uuid.UUID][]uuid.UUID{
		street:   {street, district, root},
		district: {district, root},
		root:     {root},
	}}
	checker := NewPermissionChecker(store)
	ctx := context.Background()

	member := &models.User{ResponsibleEntities: []models.ResponsibleEntity{{ID: district}}}
	ok, err := checker.CanUseResponsibleEntity(ctx, member, street)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.CanUseResponsibleEntity(ctx, member, root)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = checker.CanUseResponsibleEntity(ctx, &models.User{BypassResponsibleEntity: true}, root)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.CanUseResponsibleEntity(ctx, &models.User{}, street)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInOperationalArea(t *testing.T) {
	store := &fakePermissionStore{intersects: false}
	checker := NewPermissionChecker(store)
	ctx := context.Background()
	p := point(25496000, 6673000)
	withArea := &models.User{OperationalAreas: []models.OperationalArea{{Name: "Kallio"}}}

	ok, err := checker.InOperationalArea(ctx, withArea, p)
	require.NoError(t, err)
	assert.False(t, ok)

	store.intersects = true
	ok, err = checker.InOperationalArea(ctx, withArea, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.InOperationalArea(ctx, &models.User{}, geometry.Geometry{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.InOperationalArea(ctx, &models.User{}, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeviceWritesCheckPermissions(t *testing.T) {
	f := newFixture(t)
	svc := f.devices.For(models.TrafficSignPlanKind)
	entity, other := uuid.New(), uuid.New()
	f.store.AddCatalogRow("responsible_entities", entity, nil)
	f.store.AddCatalogRow("responsible_entities", other, nil)

	err := svc.Create(f.ctx, nil, f.signPlan(nil))
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	err = svc.Create(f.ctx, &models.User{ID: uuid.New()}, f.signPlan(nil))
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))

	writer := &models.User{
		ID:                    uuid.New(),
		WritePermissions:      []string{"traffic_sign_plan"},
		BypassOperationalArea: true,
		ResponsibleEntities:   []models.ResponsibleEntity{{ID: entity}},
	}
	d := f.signPlan(nil)
	d.ResponsibleEntityID = &other
	err = svc.Create(f.ctx, writer, d)
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))

	d = f.signPlan(nil)
	d.ResponsibleEntityID = &entity
	require.NoError(t, svc.Create(f.ctx, writer, d))

	f.perms.intersects = false
	areaBound := &models.User{
		ID:               uuid.New(),
		WritePermissions: []string{"traffic_sign_plan"},
		OperationalAreas: []models.OperationalArea{{Name: "Vuosaari"}},
	}
	err = svc.SoftDelete(f.ctx, areaBound, d.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))
}
