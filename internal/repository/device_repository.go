package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"infra-registry/internal/models"
)

// DeviceFilter narrows device lists. Zero fields do not filter.
type DeviceFilter struct {
	IDs                 []uuid.UUID
	PlanID              *uuid.UUID
	DevicePlanID        *uuid.UUID
	DeviceTypeID        *uuid.UUID
	DeviceTypeCode      string
	SourceName          string
	SourceID            string
	Lifecycle           string
	ResponsibleEntityID *uuid.UUID
	// IsReplaced applies to plan kinds only.
	IsReplaced *bool
	// IncludeReplaced disables the default is_replaced=false filter applied
	// to plan lists by the device service.
	IncludeReplaced bool
	Limit           int
	Offset          int
}

// DeviceRepository reads and writes one device table. M is the model type,
// e.g. models.TrafficSignPlan.
type DeviceRepository[M any] struct {
	db   *gorm.DB
	kind models.Kind
}

func NewDeviceRepository[M any](db *gorm.DB, kind models.Kind) *DeviceRepository[M] {
	return &DeviceRepository[M]{db: db, kind: kind}
}

// WithTx returns a repository bound to tx.
func (r *DeviceRepository[M]) WithTx(tx *gorm.DB) *DeviceRepository[M] {
	return &DeviceRepository[M]{db: tx, kind: r.kind}
}

// Get returns an active row.
func (r *DeviceRepository[M]) Get(ctx context.Context, id uuid.UUID) (*M, error) {
	var m M
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns one page of active rows and the total count.
func (r *DeviceRepository[M]) List(ctx context.Context, f DeviceFilter) ([]M, int64, error) {
	table := r.kind.Table()
	q := r.db.WithContext(ctx).Model(new(M)).Where(table + ".is_active")
	if len(f.IDs) > 0 {
		q = q.Where(table+".id IN ?", f.IDs)
	}
	if f.PlanID != nil && r.kind.IsPlan() {
		q = q.Where("plan_id = ?", *f.PlanID)
	}
	if f.DevicePlanID != nil && !r.kind.IsPlan() {
		q = q.Where("device_plan_id = ?", *f.DevicePlanID)
	}
	if f.DeviceTypeID != nil {
		q = q.Where("device_type_id = ?", *f.DeviceTypeID)
	}
	if f.DeviceTypeCode != "" {
		q = q.Where("device_type_id IN (SELECT id FROM device_types WHERE code = ?)", f.DeviceTypeCode)
	}
	if f.SourceName != "" {
		q = q.Where("source_name = ?", f.SourceName)
	}
	if f.SourceID != "" {
		q = q.Where("source_id = ?", f.SourceID)
	}
	if f.Lifecycle != "" {
		q = q.Where("lifecycle = ?", f.Lifecycle)
	}
	if f.ResponsibleEntityID != nil {
		q = q.Where("responsible_entity_id = ?", *f.ResponsibleEntityID)
	}
	if f.IsReplaced != nil && r.kind.IsPlan() {
		exists := "EXISTS (SELECT 1 FROM device_replacements dr WHERE dr.kind = ? AND dr.old_id = " + table + ".id)"
		if !*f.IsReplaced {
			exists = "NOT " + exists
		}
		q = q.Where(exists, r.kind.String())
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []M
	page := q.Order(table + ".created_at, " + table + ".id")
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if f.Offset > 0 {
		page = page.Offset(f.Offset)
	}
	if err := page.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *DeviceRepository[M]) Create(ctx context.Context, m *M) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Save writes every column of m.
func (r *DeviceRepository[M]) Save(ctx context.Context, m *M) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// SoftDelete deactivates an active row and reports whether one was found.
func (r *DeviceRepository[M]) SoftDelete(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(new(M)).
		Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{
			"is_active":     false,
			"deleted_at":    at,
			"deleted_by_id": by,
			"updated_at":    at,
		})
	return res.RowsAffected > 0, res.Error
}

// CreateIgnoringSource inserts items, skipping rows whose source pair is
// already used by an active row. Returns the number of inserted rows.
func (r *DeviceRepository[M]) CreateIgnoringSource(ctx context.Context, items []M) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "source_name"}, {Name: "source_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: SourceConflictPredicate}}},
			DoNothing:   true,
		}).
		Create(&items)
	return res.RowsAffected, res.Error
}

// FindBySource returns the active rows of one source with the given ids.
func (r *DeviceRepository[M]) FindBySource(ctx context.Context, sourceName string, sourceIDs []string) ([]M, error) {
	var items []M
	if len(sourceIDs) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("source_name = ? AND source_id IN ? AND is_active", sourceName, sourceIDs).
		Find(&items).Error
	return items, err
}

// UpdateColumns writes only the given columns of one row.
func (r *DeviceRepository[M]) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	if len(columns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(new(M)).Where("id = ?", id).Updates(columns).Error
}
