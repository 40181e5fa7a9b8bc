package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// OperationStore is implemented by *repository.OperationRepository.
type OperationStore interface {
	List(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceOperation, error)
	Get(ctx context.Context, kind models.Kind, deviceID, id uuid.UUID) (*models.DeviceOperation, error)
	Create(ctx context.Context, op *models.DeviceOperation) error
	Update(ctx context.Context, op *models.DeviceOperation) error
}

// OperationService keeps the maintenance log of real devices. Entries are
// appended by writers and corrected by superusers only.
type OperationService struct {
	ops     OperationStore
	devices repository.TableStore
	lookups repository.LookupStore
	perms   *PermissionChecker
}

func NewOperationService(ops OperationStore, devices repository.TableStore, lookups repository.LookupStore, perms *PermissionChecker) *OperationService {
	return &OperationService{ops: ops, devices: devices, lookups: lookups, perms: perms}
}

// List returns the log ordered by operation date.
func (s *OperationService) List(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceOperation, error) {
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return nil, err
	}
	return s.ops.List(ctx, kind, deviceID)
}

func (s *OperationService) Create(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID, op *models.DeviceOperation) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, kind.String()) {
		return apperrors.Forbidden()
	}
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return err
	}
	if err := s.validate(ctx, op); err != nil {
		return err
	}
	op.ID = uuid.New()
	op.Kind, op.DeviceID = kind.String(), deviceID
	op.CreatedAt, op.UpdatedAt = time.Now(), time.Now()
	op.CreatedByID, op.UpdatedByID = userID(user), userID(user)
	return errors.Wrap(s.ops.Create(ctx, op), "saving operation")
}

// Update corrects an entry; superusers only.
func (s *OperationService) Update(ctx context.Context, user *models.User, kind models.Kind, deviceID, id uuid.UUID, op *models.DeviceOperation) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !user.IsSuperuser {
		return apperrors.Forbidden()
	}
	if err := s.requireDevice(ctx, kind, deviceID); err != nil {
		return err
	}
	existing, err := s.ops.Get(ctx, kind, deviceID, id)
	if err != nil {
		return apperrors.FromDB(err, "operation")
	}
	if err := s.validate(ctx, op); err != nil {
		return err
	}
	existing.OperationDate = op.OperationDate
	existing.OperationTypeID = op.OperationTypeID
	existing.UpdatedAt, existing.UpdatedByID = time.Now(), userID(user)
	if err := s.ops.Update(ctx, existing); err != nil {
		return errors.Wrap(err, "saving operation")
	}
	*op = *existing
	return nil
}

func (s *OperationService) validate(ctx context.Context, op *models.DeviceOperation) error {
	fields := apperrors.Validation("validation failed")
	if op.OperationDate.IsZero() {
		fields.Add("operation_date", "this field is required")
	}
	if op.OperationTypeID == uuid.Nil {
		fields.Add("operation_type", "this field is required")
	} else {
		ok, err := s.lookups.Exists(ctx, "operation_types", op.OperationTypeID)
		if err != nil {
			return errors.Wrap(err, "checking operation type")
		}
		if !ok {
			fields.Add("operation_type", op.OperationTypeID.String()+" does not exist")
		}
	}
	if fields.HasFields() {
		return fields
	}
	return nil
}

func (s *OperationService) requireDevice(ctx context.Context, kind models.Kind, deviceID uuid.UUID) error {
	if kind.IsPlan() {
		return apperrors.NotFound("operations of " + kind.String())
	}
	ok, err := s.devices.ActiveExists(ctx, kind, deviceID)
	if err != nil {
		return errors.Wrap(err, "checking device")
	}
	if !ok {
		return apperrors.NotFound(kind.String())
	}
	return nil
}
