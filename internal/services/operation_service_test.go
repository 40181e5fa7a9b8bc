package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

func TestCreateOperation(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	inspection := uuid.New()
	f.store.AddCatalogRow("operation_types", inspection, map[string]string{"name": "inspection"})
	ops := &mockOperationStore{}
	svc := NewOperationService(ops, f.store.Tables(), f.store.Lookups(), f.checker)

	ops.On("Create", mock.Anything, mock.MatchedBy(func(op *models.DeviceOperation) bool {
		return op.DeviceID == deviceID && op.Kind == "traffic_sign_real" && op.OperationTypeID == inspection
	})).Return(nil).Once()

	op := &models.DeviceOperation{OperationDate: models.NewDate(2024, time.May, 2), OperationTypeID: inspection}
	require.NoError(t, svc.Create(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, op))
	assert.NotEqual(t, uuid.Nil, op.ID)
	ops.AssertExpectations(t)

	err := svc.Create(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, &models.DeviceOperation{OperationTypeID: uuid.New()})
	fields := apperrors.Fields(err)
	assert.Contains(t, fields, "operation_date")
	assert.Contains(t, fields, "operation_type")
}

func TestOperationsBelongToRealDevices(t *testing.T) {
	f := newFixture(t)
	planID := f.mustCreate(t, f.signPlan(nil))
	svc := NewOperationService(&mockOperationStore{}, f.store.Tables(), f.store.Lookups(), f.checker)

	_, err := svc.List(f.ctx, models.TrafficSignPlanKind, planID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.List(f.ctx, models.TrafficSignRealKind, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestUpdateOperationRequiresSuperuser(t *testing.T) {
	f := newFixture(t)
	deviceID := f.mustCreate(t, f.signReal(nil))
	repair := uuid.New()
	f.store.AddCatalogRow("operation_types", repair, nil)
	ops := &mockOperationStore{}
	svc := NewOperationService(ops, f.store.Tables(), f.store.Lookups(), f.checker)
	opID := uuid.New()
	update := &models.DeviceOperation{OperationDate: models.NewDate(2024, time.June, 1), OperationTypeID: repair}

	writer := &models.User{WritePermissions: []string{"traffic_sign_real"}}
	err := svc.Update(f.ctx, writer, models.TrafficSignRealKind, deviceID, opID, update)
	assert.True(t, apperrors.Is(err, apperrors.KindPermission))

	stored := &models.DeviceOperation{ID: opID, DeviceID: deviceID, Kind: "traffic_sign_real", OperationTypeID: uuid.New()}
	ops.On("Get", mock.Anything, models.TrafficSignRealKind, deviceID, opID).Return(stored, nil)
	ops.On("Update", mock.Anything, stored).Return(nil).Once()
	require.NoError(t, svc.Update(f.ctx, f.admin, models.TrafficSignRealKind, deviceID, opID, update))
	assert.Equal(t, opID, update.ID)
	assert.Equal(t, repair, update.OperationTypeID)
	ops.AssertExpectations(t)
}
