package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/content"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// DeviceTypeResource is the write-permission name of the device type catalog.
const DeviceTypeResource = "device_type"

const maxDeviceTypeCode = 32

// DeviceTypeService manages the device type catalog and validates device
// content against it.
type DeviceTypeService struct {
	store repository.Store
	perms *PermissionChecker
	log   *zap.Logger
}

func NewDeviceTypeService(store repository.Store, perms *PermissionChecker, log *zap.Logger) *DeviceTypeService {
	return &DeviceTypeService{store: store, perms: perms, log: log}
}

func (s *DeviceTypeService) Get(ctx context.Context, id uuid.UUID) (*models.DeviceType, error) {
	dt, err := s.store.DeviceTypes().Get(ctx, id)
	return dt, apperrors.FromDB(err, "device type")
}

func (s *DeviceTypeService) GetByCode(ctx context.Context, code string) (*models.DeviceType, error) {
	dt, err := s.store.DeviceTypes().GetByCode(ctx, code)
	return dt, apperrors.FromDB(err, "device type")
}

func (s *DeviceTypeService) List(ctx context.Context, targetModel string) ([]models.DeviceType, error) {
	return s.store.DeviceTypes().List(ctx, targetModel)
}

func (s *DeviceTypeService) Create(ctx context.Context, user *models.User, dt *models.DeviceType) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	if err := validateDeviceType(dt); err != nil {
		return err
	}
	if dt.ID == uuid.Nil {
		dt.ID = uuid.New()
	}
	if err := s.store.DeviceTypes().Create(ctx, dt); err != nil {
		return apperrors.FromDB(err, "device type")
	}
	s.log.Info("device type created", zap.String("code", dt.Code))
	return nil
}

// Update saves dt. Changing the target model is rejected while devices of
// other families still reference the type.
func (s *DeviceTypeService) Update(ctx context.Context, user *models.User, dt *models.DeviceType) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	existing, err := s.store.DeviceTypes().Get(ctx, dt.ID)
	if err != nil {
		return apperrors.FromDB(err, "device type")
	}
	if err := validateDeviceType(dt); err != nil {
		return err
	}
	if dt.TargetModel != existing.TargetModel {
		if err := s.ValidateTargetModelChange(ctx, existing, dt.TargetModel); err != nil {
			return err
		}
	}
	dt.CreatedAt = existing.CreatedAt
	return apperrors.FromDB(s.store.DeviceTypes().Update(ctx, dt), "device type")
}

// Delete removes an unreferenced device type.
func (s *DeviceTypeService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	dt, err := s.store.DeviceTypes().Get(ctx, id)
	if err != nil {
		return apperrors.FromDB(err, "device type")
	}
	refs, err := s.references(ctx, dt, func(models.Kind) bool { return true })
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return apperrors.Conflict(fmt.Sprintf("device type %s is still referenced by: %s", dt.Code, strings.Join(refs, ", ")))
	}
	return apperrors.FromDB(s.store.DeviceTypes().Delete(ctx, id), "device type")
}

// ValidateTargetModelChange rejects newTarget when any device of a family
// other than newTarget references dt.
func (s *DeviceTypeService) ValidateTargetModelChange(ctx context.Context, dt *models.DeviceType, newTarget models.TargetModel) error {
	if newTarget == models.TargetNone {
		return nil
	}
	refs, err := s.references(ctx, dt, func(k models.Kind) bool { return !newTarget.Allows(k.Family) })
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	return apperrors.FieldError("target_model",
		fmt.Sprintf("device type %s is referenced by: %s", dt.Code, strings.Join(refs, ", ")))
}

func (s *DeviceTypeService) references(ctx context.Context, dt *models.DeviceType, include func(models.Kind) bool) ([]string, error) {
	var refs []string
	for _, k := range models.AllKinds() {
		if !include(k) {
			continue
		}
		n, err := s.store.Tables().CountDeviceTypeReferences(ctx, k, dt.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "counting %s references", k.Table())
		}
		if n > 0 {
			refs = append(refs, fmt.Sprintf("%s (%d)", k.Table(), n))
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// ValidateContent checks that devices of family may use dt and that data
// satisfies its content schema. The returned field errors belong to the
// device, keyed "content_s" or "content_s.<path>".
func ValidateContent(dt *models.DeviceType, family models.Family, data []byte) (*apperrors.Error, error) {
	fields := apperrors.Validation("validation failed")
	if !dt.TargetModel.Allows(family) {
		fields.Add("device_type", fmt.Sprintf("device type %s is meant for %s, not %s", dt.Code, dt.TargetModel, family))
	}
	empty := isNullJSON(data)
	switch {
	case !dt.HasSchema() && !empty:
		fields.Add("content_s", fmt.Sprintf("device type %s does not define content", dt.Code))
	case dt.HasSchema() && empty:
		fields.Add("content_s", "this field is required")
	case dt.HasSchema():
		errs, err := content.Validate(dt.ContentSchema, data)
		if err != nil {
			return nil, errors.Wrapf(err, "validating content of %s", dt.Code)
		}
		for _, fe := range errs {
			key := "content_s"
			if fe.Path != "" {
				key += "." + fe.Path
			}
			fields.Add(key, fe.Message)
		}
	}
	if !fields.HasFields() {
		return nil, nil
	}
	return fields, nil
}

func (s *DeviceTypeService) authorize(user *models.User) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, DeviceTypeResource) {
		return apperrors.Forbidden()
	}
	return nil
}

func validateDeviceType(dt *models.DeviceType) error {
	fields := apperrors.Validation("validation failed")
	dt.Code = strings.TrimSpace(dt.Code)
	if dt.Code == "" {
		fields.Add("code", "this field is required")
	} else if len(dt.Code) > maxDeviceTypeCode {
		fields.Add("code", fmt.Sprintf("ensure this field has no more than %d characters", maxDeviceTypeCode))
	}
	if dt.TargetModel != models.TargetNone && !dt.TargetModel.Valid() {
		fields.Add("target_model", fmt.Sprintf("%q is not a valid choice", dt.TargetModel))
	}
	if dt.HasSchema() {
		if _, err := content.Compile(dt.ContentSchema); err != nil {
			fields.Add("content_schema", err.Error())
		} else if _, err := content.ParseSchema(dt.ContentSchema); err != nil {
			fields.Add("content_schema", err.Error())
		}
	}
	if fields.HasFields() {
		return fields
	}
	return nil
}

func isNullJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
