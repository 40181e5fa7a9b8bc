package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

func TestDeviceTypeValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		dt    models.DeviceType
		field string
	}{
		{name: "missing code", dt: models.DeviceType{Code: "  "}, field: "code"},
		{name: "long code", dt: models.DeviceType{Code: strings.Repeat("A", 33)}, field: "code"},
		{name: "unknown target", dt: models.DeviceType{Code: "X1", TargetModel: "bench"}, field: "target_model"},
		{name: "broken schema", dt: models.DeviceType{Code: "X2", ContentSchema: datatypes.JSON(`{"type": 12}`)}, field: "content_schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := tt.dt
			err := f.types.Create(f.ctx, f.admin, &dt)
			assert.Contains(t, apperrors.Fields(err), tt.field)
		})
	}

	err := f.types.Create(f.ctx, f.admin, &models.DeviceType{Code: "C31"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	err = f.types.Create(f.ctx, &models.User{}, &models.DeviceType{Code: "C32"})
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))
}

func TestDeviceTypeTargetChangeRejectedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.signPlan(nil))
	f.mustCreate(t, f.signReal(nil))

	changed := *f.signType
	changed.TargetModel = models.TargetBarrier
	err := f.types.Update(f.ctx, f.admin, &changed)
	require.Error(t, err)
	assert.Equal(t,
		[]string{"device type C31 is referenced by: traffic_sign_plans (1), traffic_sign_reals (1)"},
		apperrors.Fields(err)["target_model"])

	changed.TargetModel = models.TargetNone
	require.NoError(t, f.types.Update(f.ctx, f.admin, &changed))
}

func TestDeviceTypeDeleteRequiresNoReferences(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreate(t, f.signPlan(nil))

	err := f.types.Delete(f.ctx, f.admin, f.signType.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	require.NoError(t, f.devices.For(models.TrafficSignPlanKind).SoftDelete(f.ctx, f.admin, id))
	require.NoError(t, f.types.Delete(f.ctx, f.admin, f.signType.ID))

	_, err = f.types.Get(f.ctx, f.signType.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestValidateContent(t *testing.T) {
	schema := datatypes.JSON(`{"type":"object","properties":{"limit":{"type":"integer"}},"required":["limit"]}`)
	withSchema := &models.DeviceType{Code: "C32", TargetModel: models.TargetTrafficSign, ContentSchema: schema}
	plain := &models.DeviceType{Code: "C1"}

	tests := []struct {
		name   string
		dt     *models.DeviceType
		family models.Family
		data   string
		fields []string
	}{
		{name: "valid", dt: withSchema, family: models.FamilyTrafficSign, data: `{"limit":30}`},
		{name: "wrong family", dt: withSchema, family: models.FamilyBarrier, data: `{"limit":30}`, fields: []string{"device_type"}},
		{name: "missing content", dt: withSchema, family: models.FamilyTrafficSign, data: `null`, fields: []string{"content_s"}},
		{name: "wrong type", dt: withSchema, family: models.FamilyTrafficSign, data: `{"limit":"x"}`, fields: []string{"content_s.limit"}},
		{name: "no schema no content", dt: plain, family: models.FamilyMount, data: ``},
		{name: "no schema with content", dt: plain, family: models.FamilyMount, data: `{"a":1}`, fields: []string{"content_s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := ValidateContent(tt.dt, tt.family, []byte(tt.data))
			require.NoError(t, err)
			if len(tt.fields) == 0 {
				assert.Nil(t, errs)
				return
			}
			require.NotNil(t, errs)
			for _, field := range tt.fields {
				assert.Contains(t, errs.Fields, field)
			}
		})
	}
}
