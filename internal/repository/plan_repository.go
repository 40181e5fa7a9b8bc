package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

// PlanFilter narrows plan lists. Zero fields do not filter.
type PlanFilter struct {
	Name        string
	DecisionID  string
	DiaryNumber string
	Limit       int
	Offset      int
}

// PlanRepository provides methods to interact with the Plan model in the database.
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new PlanRepository instance with the provided GORM database connection.
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) WithTx(tx *gorm.DB) *PlanRepository {
	return &PlanRepository{db: tx}
}

// CreatePlan creates a new Plan in the database.
func (r *PlanRepository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

// GetPlan retrieves an active Plan by its ID.
func (r *PlanRepository) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByDiaryNumber retrieves the active Plan with the diary number.
func (r *PlanRepository) FindByDiaryNumber(ctx context.Context, diaryNumber string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("diary_number = ? AND is_active", diaryNumber).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// DiaryNumberTaken reports whether another active plan uses the diary number.
func (r *PlanRepository) DiaryNumberTaken(ctx context.Context, diaryNumber string, exclude uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Plan{}).
		Where("diary_number = ? AND is_active AND id <> ?", diaryNumber, exclude).
		Count(&n).Error
	return n > 0, err
}

// UpdatePlan writes every column of the plan.
func (r *PlanRepository) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// UpdateLocation sets only the derived location column.
func (r *PlanRepository) UpdateLocation(ctx context.Context, id uuid.UUID, location geometry.Geometry) error {
	return r.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).
		Update("location", location).Error
}

// SoftDeletePlan deactivates the plan row only; planned devices keep their
// plan reference.
func (r *PlanRepository) SoftDeletePlan(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Plan{}).
		Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{"is_active": false, "deleted_at": at, "deleted_by_id": by, "updated_at": at})
	return res.RowsAffected > 0, res.Error
}

// ListPlans retrieves active Plans.
func (r *PlanRepository) ListPlans(ctx context.Context, f PlanFilter) ([]models.Plan, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Plan{}).Where("is_active")
	if f.Name != "" {
		q = q.Where("name ILIKE ?", "%"+f.Name+"%")
	}
	if f.DecisionID != "" {
		q = q.Where("decision_id = ?", f.DecisionID)
	}
	if f.DiaryNumber != "" {
		q = q.Where("diary_number = ?", f.DiaryNumber)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := q.Order("created_at, id")
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if f.Offset > 0 {
		page = page.Offset(f.Offset)
	}
	var plans []models.Plan
	err := page.Find(&plans).Error
	return plans, total, err
}

// DecisionIDs maps plan ids to their decision ids.
func (r *PlanRepository) DecisionIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var plans []models.Plan
	if err := r.db.WithContext(ctx).Select("id", "decision_id").Where("id IN ?", ids).Find(&plans).Error; err != nil {
		return nil, err
	}
	for _, p := range plans {
		out[p.ID] = p.DecisionID
	}
	return out, nil
}

// CreateImportLog records a plan geometry import run.
func (r *PlanRepository) CreateImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FinishImportLog stores the results and end time of a run.
func (r *PlanRepository) FinishImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error {
	return r.db.WithContext(ctx).Model(entry).
		Updates(map[string]interface{}{"end_time": entry.EndTime, "results": entry.Results}).Error
}
