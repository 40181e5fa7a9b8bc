package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// DeviceOptions are the settings shared by all device services.
type DeviceOptions struct {
	BBox           geometry.BBox
	PlanBuffer     float64
	MaxPageSize    int
	DefaultOwnerID *uuid.UUID
}

// DeviceService implements create, read, update, soft delete and
// replacement for the devices of one kind.
type DeviceService struct {
	kind  models.Kind
	info  models.KindInfo
	store repository.Store
	perms *PermissionChecker
	opts  DeviceOptions
	log   *zap.Logger
	now   func() time.Time
}

func NewDeviceService(kind models.Kind, store repository.Store, perms *PermissionChecker, opts DeviceOptions, log *zap.Logger) *DeviceService {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 1000
	}
	return &DeviceService{
		kind:  kind,
		info:  models.Info(kind),
		store: store,
		perms: perms,
		opts:  opts,
		log:   log.With(zap.String("kind", kind.String())),
		now:   time.Now,
	}
}

func (s *DeviceService) Kind() models.Kind { return s.kind }

// New returns an empty model of the service's kind.
func (s *DeviceService) New() models.Device { return models.NewDevice(s.kind) }

// WithStore returns a copy of the service bound to st, typically a
// transaction of the caller.
func (s *DeviceService) WithStore(st repository.Store) *DeviceService {
	c := *s
	c.store = st
	return &c
}

// Get returns an active device.
func (s *DeviceService) Get(ctx context.Context, id uuid.UUID) (models.Device, error) {
	d, err := s.store.Devices(s.kind).Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromDB(err, s.kind.String())
	}
	if err := s.populateReplacements(ctx, s.store, []models.Device{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns one page of active devices. Plan lists hide replaced
// devices unless the filter asks for them.
func (s *DeviceService) List(ctx context.Context, f repository.DeviceFilter) ([]models.Device, int64, error) {
	if f.Limit <= 0 || f.Limit > s.opts.MaxPageSize {
		f.Limit = s.opts.MaxPageSize
	}
	if s.kind.IsPlan() && f.IsReplaced == nil && !f.IncludeReplaced {
		notReplaced := false
		f.IsReplaced = &notReplaced
	}
	items, total, err := s.store.Devices(s.kind).List(ctx, f)
	if err != nil {
		return nil, 0, pkgerrors.Wrapf(err, "listing %s", s.kind.Table())
	}
	if err := s.populateReplacements(ctx, s.store, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Create validates and inserts d. For plan kinds a set Replaces links the
// new device to its predecessor in the same transaction.
func (s *DeviceService) Create(ctx context.Context, user *models.User, d models.Device) error {
	if err := s.checkKind(d); err != nil {
		return err
	}
	if err := s.authorize(ctx, user, d, nil); err != nil {
		return err
	}
	base := d.Core()
	now := s.now()
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	base.CreatedAt, base.UpdatedAt = now, now
	base.CreatedByID, base.UpdatedByID = userID(user), userID(user)
	base.IsActive, base.DeletedAt, base.DeletedByID = true, nil, nil

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.validate(ctx, tx, d); err != nil {
			return err
		}
		if err := tx.Devices(s.kind).Create(ctx, d); err != nil {
			return apperrors.FromDB(err, s.kind.String())
		}
		if p, ok := d.(models.PlannedDevice); ok && p.Planned().Replaces != nil {
			if err := s.link(ctx, tx, user, base.ID, *p.Planned().Replaces); err != nil {
				return err
			}
		}
		if err := tx.Audit().Record(ctx, s.kind.String(), base.ID, models.AuditCreate, userID(user), d); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
		return recomputePlans(ctx, tx, s.opts.PlanBuffer, planOf(d))
	})
	if err != nil {
		return err
	}
	s.log.Info("device created", zap.String("id", base.ID.String()))
	return nil
}

// Update validates and saves d over the stored row with the same id.
// Creation metadata is kept from the stored row.
func (s *DeviceService) Update(ctx context.Context, user *models.User, d models.Device) error {
	if err := s.checkKind(d); err != nil {
		return err
	}
	if user == nil {
		return apperrors.Unauthorized()
	}
	base := d.Core()
	existing, err := s.store.Devices(s.kind).Get(ctx, base.ID)
	if err != nil {
		return apperrors.FromDB(err, s.kind.String())
	}
	if err := s.authorize(ctx, user, d, existing); err != nil {
		return err
	}
	old := existing.Core()
	base.CreatedAt, base.CreatedByID = old.CreatedAt, old.CreatedByID
	base.IsActive, base.DeletedAt, base.DeletedByID = true, nil, nil
	base.UpdatedAt, base.UpdatedByID = s.now(), userID(user)

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.validate(ctx, tx, d); err != nil {
			return err
		}
		changes, err := diff(existing, d)
		if err != nil {
			return err
		}
		if err := tx.Devices(s.kind).Save(ctx, d); err != nil {
			return apperrors.FromDB(err, s.kind.String())
		}
		if p, ok := d.(models.PlannedDevice); ok {
			if err := s.applyReplaces(ctx, tx, user, base.ID, p.Planned().Replaces); err != nil {
				return err
			}
		}
		if err := tx.Audit().Record(ctx, s.kind.String(), base.ID, models.AuditUpdate, userID(user), changes); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
		return recomputePlans(ctx, tx, s.opts.PlanBuffer, planOf(existing), planOf(d))
	})
	if err != nil {
		return err
	}
	s.log.Info("device updated", zap.String("id", base.ID.String()))
	return nil
}

// SoftDelete deactivates a device together with its cascading children.
// A planned device is cut out of its replacement chain and its real device
// moves back to the predecessor.
func (s *DeviceService) SoftDelete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	existing, err := s.store.Devices(s.kind).Get(ctx, id)
	if err != nil {
		return apperrors.FromDB(err, s.kind.String())
	}
	if err := s.authorize(ctx, user, existing, existing); err != nil {
		return err
	}
	at := s.now()
	by := userID(user)

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		found, err := tx.Devices(s.kind).SoftDelete(ctx, id, by, at)
		if err != nil {
			return pkgerrors.Wrapf(err, "deleting %s", s.kind)
		}
		if !found {
			return apperrors.NotFound(s.kind.String())
		}
		if err := tx.Audit().Record(ctx, s.kind.String(), id, models.AuditSoftDelete, by, nil); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
		for _, child := range s.info.Cascade {
			ids, err := tx.Tables().SoftDeleteChildren(ctx, child.Kind, child.Column, id, by, at)
			if err != nil {
				return pkgerrors.Wrapf(err, "deleting %s children", child.Kind)
			}
			for _, childID := range ids {
				if err := tx.Audit().Record(ctx, child.Kind.String(), childID, models.AuditSoftDelete, by, nil); err != nil {
					return pkgerrors.Wrap(err, "writing audit log")
				}
			}
		}
		if s.kind.IsPlan() {
			if err := s.unlinkOnDelete(ctx, tx, id, by); err != nil {
				return err
			}
		}
		return recomputePlans(ctx, tx, s.opts.PlanBuffer, planOf(existing))
	})
	if err != nil {
		return err
	}
	s.log.Info("device deleted", zap.String("id", id.String()), zap.Int("cascade", len(s.info.Cascade)))
	return nil
}

// History returns the audit trail of a device.
func (s *DeviceService) History(ctx context.Context, id uuid.UUID) ([]models.AuditLog, error) {
	return s.store.Audit().History(ctx, s.kind.String(), id)
}

func (s *DeviceService) checkKind(d models.Device) error {
	if d == nil || d.Kind() != s.kind {
		return fmt.Errorf("device service for %s got %T", s.kind, d)
	}
	return nil
}

// authorize checks write permission on the kind and on the responsible
// entity and operational area of d and of the stored row, if any.
func (s *DeviceService) authorize(ctx context.Context, user *models.User, d, existing models.Device) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, s.kind.String()) {
		return apperrors.Forbidden()
	}
	rows := []models.Device{d}
	if existing != nil && existing != d {
		rows = append(rows, existing)
	}
	for _, row := range rows {
		base := row.Core()
		if base.ResponsibleEntityID != nil {
			ok, err := s.perms.CanUseResponsibleEntity(ctx, user, *base.ResponsibleEntityID)
			if err != nil {
				return pkgerrors.Wrap(err, "checking responsible entity")
			}
			if !ok {
				return apperrors.Forbidden()
			}
		}
		ok, err := s.perms.InOperationalArea(ctx, user, base.Location)
		if err != nil {
			return pkgerrors.Wrap(err, "checking operational area")
		}
		if !ok {
			return apperrors.Forbidden()
		}
	}
	return nil
}

// validate normalizes and checks d. Field problems are reported together;
// uniqueness conflicts after them.
func (s *DeviceService) validate(ctx context.Context, st repository.Store, d models.Device) error {
	base := d.Core()
	fields := apperrors.Validation("validation failed")
	validateEnums(d, fields)

	if base.Lifecycle == "" {
		base.Lifecycle = models.LifecycleActive
	}
	if base.OwnerID == uuid.Nil && s.opts.DefaultOwnerID != nil {
		base.OwnerID = *s.opts.DefaultOwnerID
	}

	if base.Location.IsNull() {
		fields.Add("location", "this field is required")
	} else {
		base.Location = geometry.Force3D(base.Location)
		if err := s.opts.BBox.Validate(base.Location, s.info.GeometryTypes...); err != nil {
			fields.Add("location", err.Error())
		}
	}

	if err := s.checkReference(ctx, st, fields, "owner", "owners", base.OwnerID, true); err != nil {
		return err
	}
	if base.ResponsibleEntityID != nil {
		if err := s.checkReference(ctx, st, fields, "responsible_entity", "responsible_entities", *base.ResponsibleEntityID, true); err != nil {
			return err
		}
	}
	if base.MountTypeID != nil {
		if err := s.checkReference(ctx, st, fields, "mount_type", "mount_types", *base.MountTypeID, true); err != nil {
			return err
		}
	}
	if err := s.validateContent(ctx, st, d, fields); err != nil {
		return err
	}
	if err := s.validateLinks(ctx, st, d, fields); err != nil {
		return err
	}
	if fields.HasFields() {
		return fields
	}

	if base.HasSource() {
		taken, err := st.Tables().SourceTaken(ctx, s.kind, base.SourceName, base.SourceID, base.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking source identity")
		}
		if taken {
			return apperrors.Conflict(fmt.Sprintf("%s with source_name %q and source_id %q already exists", s.kind, base.SourceName, base.SourceID))
		}
	}
	if r, ok := d.(models.RealDevice); ok && r.Realized().DevicePlanID != nil {
		other, err := st.Tables().ActiveRealFor(ctx, s.kind, *r.Realized().DevicePlanID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking device plan")
		}
		if other != nil && *other != base.ID {
			return apperrors.Conflict(fmt.Sprintf("device plan %s already has an active %s", *r.Realized().DevicePlanID, s.kind))
		}
	}
	return nil
}

func (s *DeviceService) checkReference(ctx context.Context, st repository.Store, fields *apperrors.Error, field, table string, id uuid.UUID, required bool) error {
	if id == uuid.Nil {
		if required {
			fields.Add(field, "this field is required")
		}
		return nil
	}
	ok, err := st.Lookups().Exists(ctx, table, id)
	if err != nil {
		return pkgerrors.Wrapf(err, "checking %s", field)
	}
	if !ok {
		fields.Add(field, fmt.Sprintf("%s does not exist", id))
	}
	return nil
}

func (s *DeviceService) validateContent(ctx context.Context, st repository.Store, d models.Device, fields *apperrors.Error) error {
	base := d.Core()
	missing := false
	if a, ok := d.(interface {
		Attributes() *models.AdditionalSignAttrs
	}); ok {
		missing = a.Attributes().MissingContent
	}
	if missing && !isNullJSON(base.ContentS) {
		fields.Add("content_s", "content must be empty when missing_content is set")
		return nil
	}
	if base.DeviceTypeID == nil {
		if !s.info.DeviceTypeOptional {
			fields.Add("device_type", "this field is required")
		} else if !isNullJSON(base.ContentS) {
			fields.Add("content_s", "content requires a device type")
		}
		return nil
	}
	dt, err := st.DeviceTypes().Get(ctx, *base.DeviceTypeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fields.Add("device_type", fmt.Sprintf("%s does not exist", *base.DeviceTypeID))
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "loading device type")
	}
	if missing {
		if !dt.TargetModel.Allows(s.kind.Family) {
			fields.Add("device_type", fmt.Sprintf("device type %s is meant for %s, not %s", dt.Code, dt.TargetModel, s.kind.Family))
		}
		return nil
	}
	contentErrs, err := ValidateContent(dt, s.kind.Family, base.ContentS)
	if err != nil {
		return err
	}
	if contentErrs != nil {
		for field, messages := range contentErrs.Fields {
			for _, m := range messages {
				fields.Add(field, m)
			}
		}
	}
	return nil
}

// validateLinks checks the plan, device plan and parent references.
func (s *DeviceService) validateLinks(ctx context.Context, st repository.Store, d models.Device, fields *apperrors.Error) error {
	base := d.Core()
	if p, ok := d.(models.PlannedDevice); ok && p.Planned().PlanID != nil {
		_, err := st.Plans().GetPlan(ctx, *p.Planned().PlanID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fields.Add("plan", fmt.Sprintf("%s does not exist", *p.Planned().PlanID))
		} else if err != nil {
			return pkgerrors.Wrap(err, "loading plan")
		}
	}
	if r, ok := d.(models.RealDevice); ok && r.Realized().DevicePlanID != nil {
		ok, err := st.Tables().ActiveExists(ctx, s.kind.Counterpart(), *r.Realized().DevicePlanID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking device plan")
		}
		if !ok {
			fields.Add("device_plan", fmt.Sprintf("%s does not exist", *r.Realized().DevicePlanID))
		}
	}
	refs, err := parentRefs(d)
	if err != nil {
		return err
	}
	for ref, id := range refs {
		if ref.Target == s.kind && id == base.ID {
			fields.Add(ref.Field, "a device cannot reference itself")
			continue
		}
		ok, err := st.Tables().ActiveExists(ctx, ref.Target, id)
		if err != nil {
			return pkgerrors.Wrapf(err, "checking %s", ref.Field)
		}
		if !ok {
			fields.Add(ref.Field, fmt.Sprintf("%s does not exist", id))
		}
	}
	return nil
}

func userID(user *models.User) *uuid.UUID {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

func planOf(d models.Device) *uuid.UUID {
	if p, ok := d.(models.PlannedDevice); ok {
		return p.Planned().PlanID
	}
	return nil
}
