package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

// PlanResource is the write-permission name of plans.
const PlanResource = "plan"

// PlanService manages plans and their derived locations.
type PlanService struct {
	store       repository.Store
	perms       *PermissionChecker
	bbox        geometry.BBox
	buffer      float64
	maxPageSize int
	log         *zap.Logger
	now         func() time.Time
}

func NewPlanService(store repository.Store, perms *PermissionChecker, opts DeviceOptions, log *zap.Logger) *PlanService {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 1000
	}
	return &PlanService{
		store:       store,
		perms:       perms,
		bbox:        opts.BBox,
		buffer:      opts.PlanBuffer,
		maxPageSize: opts.MaxPageSize,
		log:         log,
		now:         time.Now,
	}
}

// WithStore returns a copy bound to st.
func (s *PlanService) WithStore(st repository.Store) *PlanService {
	c := *s
	c.store = st
	return &c
}

func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.store.Plans().GetPlan(ctx, id)
	return plan, apperrors.FromDB(err, "plan")
}

func (s *PlanService) FindByDiaryNumber(ctx context.Context, diaryNumber string) (*models.Plan, error) {
	plan, err := s.store.Plans().FindByDiaryNumber(ctx, diaryNumber)
	return plan, apperrors.FromDB(err, "plan")
}

func (s *PlanService) List(ctx context.Context, f repository.PlanFilter) ([]models.Plan, int64, error) {
	if f.Limit <= 0 || f.Limit > s.maxPageSize {
		f.Limit = s.maxPageSize
	}
	return s.store.Plans().ListPlans(ctx, f)
}

func (s *PlanService) Create(ctx context.Context, user *models.User, plan *models.Plan) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	now := s.now()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	plan.CreatedAt, plan.UpdatedAt = now, now
	plan.CreatedByID, plan.UpdatedByID = userID(user), userID(user)
	plan.IsActive, plan.DeletedAt, plan.DeletedByID = true, nil, nil

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.validate(ctx, tx, plan); err != nil {
			return err
		}
		if err := tx.Plans().CreatePlan(ctx, plan); err != nil {
			return apperrors.FromDB(err, "plan")
		}
		if err := tx.Audit().Record(ctx, PlanResource, plan.ID, models.AuditCreate, userID(user), plan); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
		return recomputePlanLocation(ctx, tx, plan.ID, s.buffer)
	})
	if err != nil {
		return err
	}
	s.log.Info("plan created", zap.String("id", plan.ID.String()), zap.String("diary_number", plan.DiaryNumber))
	return nil
}

func (s *PlanService) Update(ctx context.Context, user *models.User, plan *models.Plan) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	existing, err := s.store.Plans().GetPlan(ctx, plan.ID)
	if err != nil {
		return apperrors.FromDB(err, "plan")
	}
	plan.CreatedAt, plan.CreatedByID = existing.CreatedAt, existing.CreatedByID
	plan.IsActive, plan.DeletedAt, plan.DeletedByID = true, nil, nil
	plan.UpdatedAt, plan.UpdatedByID = s.now(), userID(user)

	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.validate(ctx, tx, plan); err != nil {
			return err
		}
		changes, err := diff(existing, plan)
		if err != nil {
			return err
		}
		if err := tx.Plans().UpdatePlan(ctx, plan); err != nil {
			return apperrors.FromDB(err, "plan")
		}
		if err := tx.Audit().Record(ctx, PlanResource, plan.ID, models.AuditUpdate, userID(user), changes); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
		return recomputePlanLocation(ctx, tx, plan.ID, s.buffer)
	})
}

// SoftDelete deactivates only the plan row; its planned devices keep
// their plan reference.
func (s *PlanService) SoftDelete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if err := s.authorize(user); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		found, err := tx.Plans().SoftDeletePlan(ctx, id, userID(user), s.now())
		if err != nil {
			return pkgerrors.Wrap(err, "deleting plan")
		}
		if !found {
			return apperrors.NotFound("plan")
		}
		return tx.Audit().Record(ctx, PlanResource, id, models.AuditSoftDelete, userID(user), nil)
	})
}

// RecomputeLocation derives the plan location from its planned devices.
func (s *PlanService) RecomputeLocation(ctx context.Context, id uuid.UUID) error {
	return recomputePlanLocation(ctx, s.store, id, s.buffer)
}

func (s *PlanService) validate(ctx context.Context, st repository.Store, plan *models.Plan) error {
	fields := apperrors.Validation("validation failed")
	plan.Name = strings.TrimSpace(plan.Name)
	plan.DiaryNumber = strings.TrimSpace(plan.DiaryNumber)
	if plan.Name == "" {
		fields.Add("name", "this field is required")
	}
	if !plan.Location.IsNull() {
		plan.Location = geometry.Force3D(geometry.Multi(plan.Location))
		if err := s.bbox.Validate(plan.Location, geometry.TypeMultiPolygon); err != nil {
			fields.Add("location", err.Error())
		}
	}
	if fields.HasFields() {
		return fields
	}
	if plan.DiaryNumber != "" {
		taken, err := st.Plans().DiaryNumberTaken(ctx, plan.DiaryNumber, plan.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "checking diary number")
		}
		if taken {
			return apperrors.Conflict(fmt.Sprintf("plan with diary_number %q already exists", plan.DiaryNumber))
		}
	}
	return nil
}

func (s *PlanService) authorize(user *models.User) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, PlanResource) {
		return apperrors.Forbidden()
	}
	return nil
}
