package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

// DeviceTables runs statements that address device tables by kind rather
// than by model type. Table and column names come from the kind registry.
type DeviceTables struct {
	db *gorm.DB
}

func NewDeviceTables(db *gorm.DB) *DeviceTables {
	return &DeviceTables{db: db}
}

func (r *DeviceTables) WithTx(tx *gorm.DB) *DeviceTables {
	return &DeviceTables{db: tx}
}

// ActiveExists reports whether an active row with id exists in the table of k.
func (r *DeviceTables) ActiveExists(ctx context.Context, k models.Kind, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT count(*) FROM %s WHERE id = ? AND is_active", k.Table()), id).
		Scan(&n).Error
	return n > 0, err
}

// SourceTaken reports whether another active row uses the source pair.
func (r *DeviceTables) SourceTaken(ctx context.Context, k models.Kind, name, sourceID string, exclude uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT count(*) FROM %s WHERE source_name = ? AND source_id = ? AND is_active AND id <> ?", k.Table()),
			name, sourceID, exclude).
		Scan(&n).Error
	return n > 0, err
}

// SoftDeleteChildren deactivates active rows of k whose column points at
// parentID and returns their ids.
func (r *DeviceTables) SoftDeleteChildren(ctx context.Context, k models.Kind, column string, parentID uuid.UUID, by *uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf(
			"UPDATE %s SET is_active = false, deleted_at = ?, deleted_by_id = ?, updated_at = ? WHERE %s = ? AND is_active RETURNING id",
			k.Table(), column), at, by, at, parentID).
		Scan(&ids).Error
	return ids, err
}

// ActiveRealFor returns the id of the active real device attached to the
// planned device planDeviceID, if any.
func (r *DeviceTables) ActiveRealFor(ctx context.Context, realKind models.Kind, planDeviceID uuid.UUID) (*uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT id FROM %s WHERE device_plan_id = ? AND is_active LIMIT 1", realKind.Table()), planDeviceID).
		Scan(&ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

// RealsForPlans maps planned device ids to the ids of their active reals.
func (r *DeviceTables) RealsForPlans(ctx context.Context, realKind models.Kind, planDeviceIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(planDeviceIDs))
	if len(planDeviceIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ID           uuid.UUID
		DevicePlanID uuid.UUID
	}
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT id, device_plan_id FROM %s WHERE device_plan_id IN ? AND is_active", realKind.Table()), planDeviceIDs).
		Scan(&rows).Error
	for _, row := range rows {
		out[row.DevicePlanID] = row.ID
	}
	return out, err
}

// MoveReals re-points active reals of realKind from one planned device to
// another.
func (r *DeviceTables) MoveReals(ctx context.Context, realKind models.Kind, from, to uuid.UUID) error {
	return r.db.WithContext(ctx).
		Exec(fmt.Sprintf("UPDATE %s SET device_plan_id = ?, updated_at = ? WHERE device_plan_id = ? AND is_active", realKind.Table()),
			to, time.Now(), from).Error
}

// CountDeviceTypeReferences counts active rows of k using the device type.
func (r *DeviceTables) CountDeviceTypeReferences(ctx context.Context, k models.Kind, deviceTypeID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT count(*) FROM %s WHERE device_type_id = ? AND is_active", k.Table()), deviceTypeID).
		Scan(&n).Error
	return n, err
}

// PlanDeviceLocations returns the locations of every active planned device
// attached to the plan, across all plan kinds.
func (r *DeviceTables) PlanDeviceLocations(ctx context.Context, planID uuid.UUID) ([]geometry.Geometry, error) {
	kinds := models.PlanKinds()
	parts := make([]string, len(kinds))
	args := make([]interface{}, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("SELECT location FROM %s WHERE plan_id = ? AND is_active AND location IS NOT NULL", k.Table())
		args[i] = planID
	}
	var rows []struct {
		Location geometry.Geometry
	}
	if err := r.db.WithContext(ctx).Raw(strings.Join(parts, " UNION ALL "), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]geometry.Geometry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Location)
	}
	return out, nil
}

// PlanIDOf returns the plan of an active planned device.
func (r *DeviceTables) PlanIDOf(ctx context.Context, k models.Kind, id uuid.UUID) (*uuid.UUID, error) {
	var ids []*uuid.UUID
	err := r.db.WithContext(ctx).
		Raw(fmt.Sprintf("SELECT plan_id FROM %s WHERE id = ?", k.Table()), id).
		Scan(&ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return ids[0], nil
}
